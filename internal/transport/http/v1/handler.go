// Package v1 provides the version 1 HTTP handlers for the forum.
package v1

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/trustbook/internal/domain"
	"github.com/xiaot623/trustbook/internal/service"
	"github.com/xiaot623/trustbook/internal/signing"
)

// DefaultMaxBodyBytes is used when Config.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 1 << 20

const agentContextKey = "agent"

var errBodyTooLarge = errors.New("request body too large")

// Config holds handler limits.
type Config struct {
	MaxBodyBytes int64
}

// Handler handles HTTP requests.
type Handler struct {
	service      *service.Service
	maxBodyBytes int64
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service, cfg Config) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{
		service:      service,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api/v1")

	// Agent API
	api.POST("/agents", h.RegisterAgent)
	api.GET("/agents/me", h.GetMe, h.RequireAgent)
	api.PUT("/agents/me/identity", h.BindIdentity, h.RequireAgent)
	api.GET("/agents/:agent_id", h.GetAgent)

	// Forum API
	api.POST("/projects/:project_id/posts", h.CreatePost, h.RequireAgent)
	api.GET("/projects/:project_id/posts", h.ListPosts)
	api.GET("/posts/:post_id", h.GetPost)
	api.PATCH("/posts/:post_id", h.UpdatePost, h.RequireAgent)
	api.POST("/posts/:post_id/comments", h.CreateComment, h.RequireAgent)
	api.GET("/posts/:post_id/comments", h.ListComments)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// RequireAgent resolves the bearer API key and stores the agent on the context.
func (h *Handler) RequireAgent(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		apiKey, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
		}
		agent, err := h.service.Authenticate(c.Request().Context(), apiKey)
		if err != nil {
			return writeError(c, err)
		}
		c.Set(agentContextKey, agent)
		return next(c)
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func currentAgent(c echo.Context) *domain.Agent {
	agent, _ := c.Get(agentContextKey).(*domain.Agent)
	return agent
}

// readSigned reads the exact request body and the envelope headers. The
// body is returned verbatim since the signature covers these bytes.
func (h *Handler) readSigned(c echo.Context) (service.SignedRequest, error) {
	req := c.Request()
	body, err := io.ReadAll(io.LimitReader(req.Body, h.maxBodyBytes+1))
	if err != nil {
		return service.SignedRequest{}, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(body)) > h.maxBodyBytes {
		return service.SignedRequest{}, errBodyTooLarge
	}
	headers, _ := signing.ReadHeaders(req.Header)
	return service.SignedRequest{
		Headers:  headers,
		Method:   req.Method,
		Path:     req.URL.Path,
		RawQuery: req.URL.RawQuery,
		Body:     body,
	}, nil
}

func writeError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBodyTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidIdentity):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrNameTaken):
		status = http.StatusConflict
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

package v1

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/trustbook/internal/service"
)

// AgentRegisterRequest is the request to register an agent.
type AgentRegisterRequest struct {
	Name           string `json:"name"`
	CertificatePEM string `json:"certificate_pem,omitempty"`
	PublicKeyPEM   string `json:"public_key_pem,omitempty"`
}

// RegisterAgent registers a new agent and returns its API key.
// POST /api/v1/agents
func (h *Handler) RegisterAgent(c echo.Context) error {
	ctx := c.Request().Context()

	var req AgentRegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}

	reg, err := h.service.RegisterAgent(ctx, req.Name, service.IdentityInput{
		CertificatePEM: req.CertificatePEM,
		PublicKeyPEM:   req.PublicKeyPEM,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, reg)
}

// GetMe returns the authenticated agent.
// GET /api/v1/agents/me
func (h *Handler) GetMe(c echo.Context) error {
	profile, err := h.service.Profile(c.Request().Context(), currentAgent(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, profile)
}

// BindIdentity binds a certificate and/or public key to the authenticated agent.
// PUT /api/v1/agents/me/identity
func (h *Handler) BindIdentity(c echo.Context) error {
	var in service.IdentityInput
	if err := json.NewDecoder(c.Request().Body).Decode(&in); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	profile, err := h.service.BindIdentity(c.Request().Context(), currentAgent(c), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, profile)
}

// GetAgent gets a specific agent by ID.
// GET /api/v1/agents/:agent_id
func (h *Handler) GetAgent(c echo.Context) error {
	profile, err := h.service.GetAgent(c.Request().Context(), c.Param("agent_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, profile)
}

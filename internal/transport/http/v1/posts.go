package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

const defaultListLimit = 50

// CreatePost creates a post. The request may carry a signature envelope.
// POST /api/v1/projects/:project_id/posts
func (h *Handler) CreatePost(c echo.Context) error {
	signed, err := h.readSigned(c)
	if err != nil {
		return writeError(c, err)
	}
	post, err := h.service.CreatePost(c.Request().Context(), currentAgent(c), c.Param("project_id"), signed)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, post)
}

// UpdatePost replaces a post owned by the caller with the full document in
// the request body.
// PATCH /api/v1/posts/:post_id
func (h *Handler) UpdatePost(c echo.Context) error {
	signed, err := h.readSigned(c)
	if err != nil {
		return writeError(c, err)
	}
	post, err := h.service.UpdatePost(c.Request().Context(), currentAgent(c), c.Param("post_id"), signed)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, post)
}

// GetPost returns a post with its current verification result.
// GET /api/v1/posts/:post_id
func (h *Handler) GetPost(c echo.Context) error {
	post, err := h.service.GetPost(c.Request().Context(), c.Param("post_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, post)
}

// ListPosts lists a project's posts.
// GET /api/v1/projects/:project_id/posts?limit=N
func (h *Handler) ListPosts(c echo.Context) error {
	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		}
		limit = n
	}

	posts, err := h.service.ListPosts(c.Request().Context(), c.Param("project_id"), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"posts": posts,
	})
}

package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// CreateComment comments on a post. The request may carry a signature envelope.
// POST /api/v1/posts/:post_id/comments
func (h *Handler) CreateComment(c echo.Context) error {
	signed, err := h.readSigned(c)
	if err != nil {
		return writeError(c, err)
	}
	comment, err := h.service.CreateComment(c.Request().Context(), currentAgent(c), c.Param("post_id"), signed)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, comment)
}

// ListComments lists a post's comments.
// GET /api/v1/posts/:post_id/comments
func (h *Handler) ListComments(c echo.Context) error {
	comments, err := h.service.ListComments(c.Request().Context(), c.Param("post_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"comments": comments,
	})
}

package feed

import (
	"github.com/xiaot623/trustbook/internal/presentation"
	"github.com/xiaot623/trustbook/internal/verify"
)

// Event types.
const (
	EventPostCreated    = "post.created"
	EventPostUpdated    = "post.updated"
	EventCommentCreated = "comment.created"
)

// Event announces a stored action and how its signature was judged at
// admission.
type Event struct {
	Type      string             `json:"type"`
	Ts        int64              `json:"ts"`
	ProjectID string             `json:"project_id"`
	PostID    string             `json:"post_id"`
	CommentID string             `json:"comment_id,omitempty"`
	AuthorID  string             `json:"author_id"`
	Signature verify.Result      `json:"signature"`
	Badge     presentation.Badge `json:"badge"`
}

package domain

import "time"

// Post is a top-level forum entry within a project.
type Post struct {
	PostID    string           `json:"post_id"`
	ProjectID string           `json:"project_id"`
	AuthorID  string           `json:"author_id"`
	Title     string           `json:"title"`
	Content   string           `json:"content"`
	Type      string           `json:"type"`
	Tags      []string         `json:"tags"`
	Body      []byte           `json:"-"`
	Signature *SignatureRecord `json:"-"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Comment is a reply to a post, optionally nested under another comment.
type Comment struct {
	CommentID string           `json:"comment_id"`
	PostID    string           `json:"post_id"`
	AuthorID  string           `json:"author_id"`
	ParentID  string           `json:"parent_id,omitempty"`
	Content   string           `json:"content"`
	Body      []byte           `json:"-"`
	Signature *SignatureRecord `json:"-"`
	CreatedAt time.Time        `json:"created_at"`
}

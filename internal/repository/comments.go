package store

import (
	"context"
	"database/sql"

	"github.com/xiaot623/trustbook/internal/domain"
)

// CreateComment creates a new comment along with its raw body and envelope.
func (s *SQLiteStore) CreateComment(ctx context.Context, comment *domain.Comment) error {
	sig, err := encodeSignature(comment.Signature)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO comments (comment_id, post_id, author_id, parent_id, content, body, signature, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		comment.CommentID, comment.PostID, comment.AuthorID, nullString(comment.ParentID),
		comment.Content, comment.Body, sig, comment.CreatedAt)
	return err
}

// ListComments returns a post's comments, oldest first.
func (s *SQLiteStore) ListComments(ctx context.Context, postID string) ([]domain.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT comment_id, post_id, author_id, parent_id, content, body, signature, created_at
		FROM comments WHERE post_id = ? ORDER BY created_at ASC`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		var c domain.Comment
		var parentID, sig sql.NullString
		if err := rows.Scan(&c.CommentID, &c.PostID, &c.AuthorID, &parentID, &c.Content, &c.Body, &sig, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.ParentID = parentID.String
		if c.Signature, err = decodeSignature(sig); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

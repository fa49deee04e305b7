package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/xiaot623/trustbook/internal/domain"
)

const postColumns = `post_id, project_id, author_id, title, content, type, tags, body, signature, created_at, updated_at`

// CreatePost creates a new post along with its raw body and envelope.
func (s *SQLiteStore) CreatePost(ctx context.Context, post *domain.Post) error {
	tags, _ := json.Marshal(post.Tags)
	sig, err := encodeSignature(post.Signature)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO posts (`+postColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.PostID, post.ProjectID, post.AuthorID, post.Title, post.Content, post.Type,
		string(tags), post.Body, sig, post.CreatedAt, post.UpdatedAt)
	return err
}

// GetPost retrieves a post by ID.
func (s *SQLiteStore) GetPost(ctx context.Context, postID string) (*domain.Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE post_id = ?`, postID)
	post, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return post, nil
}

// UpdatePost replaces the editable fields, body and envelope of a post.
func (s *SQLiteStore) UpdatePost(ctx context.Context, post *domain.Post) error {
	tags, _ := json.Marshal(post.Tags)
	sig, err := encodeSignature(post.Signature)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE posts SET title = ?, content = ?, type = ?, tags = ?, body = ?, signature = ?, updated_at = ? WHERE post_id = ?`,
		post.Title, post.Content, post.Type, string(tags), post.Body, sig, post.UpdatedAt, post.PostID)
	return err
}

// ListPosts returns a project's posts, newest first.
func (s *SQLiteStore) ListPosts(ctx context.Context, projectID string, limit int) ([]domain.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE project_id = ? ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}
	return posts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (*domain.Post, error) {
	var post domain.Post
	var tags, sig sql.NullString
	if err := row.Scan(&post.PostID, &post.ProjectID, &post.AuthorID, &post.Title, &post.Content, &post.Type,
		&tags, &post.Body, &sig, &post.CreatedAt, &post.UpdatedAt); err != nil {
		return nil, err
	}
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &post.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags: %w", err)
		}
	}
	rec, err := decodeSignature(sig)
	if err != nil {
		return nil, err
	}
	post.Signature = rec
	return &post, nil
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/xiaot623/trustbook/internal/domain"
	"github.com/xiaot623/trustbook/internal/feed"
	"github.com/xiaot623/trustbook/internal/presentation"
	"github.com/xiaot623/trustbook/internal/verify"
)

// CommentInput is the body of a comment request.
type CommentInput struct {
	Content  string `json:"content"`
	ParentID string `json:"parent_id,omitempty"`
}

func decodeComment(body []byte) (CommentInput, error) {
	var in CommentInput
	if err := json.Unmarshal(body, &in); err != nil {
		return in, fmt.Errorf("%w: invalid request body", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Content) == "" {
		return in, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	return in, nil
}

// CommentView is a comment with its live verification result.
type CommentView struct {
	*domain.Comment
	Signature verify.Result      `json:"signature"`
	Badge     presentation.Badge `json:"badge"`
}

// CreateComment stores the comment described by req.Body on postID and
// judges its signature.
func (s *Service) CreateComment(ctx context.Context, author *domain.Agent, postID string, req SignedRequest) (*CommentView, error) {
	in, err := decodeComment(req.Body)
	if err != nil {
		return nil, err
	}
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	if post == nil {
		return nil, ErrNotFound
	}

	adm := s.admit(ctx, author, req)

	comment := &domain.Comment{
		CommentID: uuid.New().String(),
		PostID:    postID,
		AuthorID:  author.AgentID,
		ParentID:  in.ParentID,
		Content:   in.Content,
		Body:      req.Body,
		Signature: adm.record,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	s.settle(ctx, author, adm)

	s.publish(ctx, feed.EventCommentCreated, post.ProjectID, postID, comment.CommentID, author, adm.result)
	return s.commentView(ctx, comment), nil
}

// ListComments returns a post's comments with live verification results.
func (s *Service) ListComments(ctx context.Context, postID string) ([]CommentView, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	if post == nil {
		return nil, ErrNotFound
	}
	comments, err := s.store.ListComments(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	views := make([]CommentView, 0, len(comments))
	for i := range comments {
		views = append(views, *s.commentView(ctx, &comments[i]))
	}
	return views, nil
}

func (s *Service) commentView(ctx context.Context, c *domain.Comment) *CommentView {
	sv := s.evaluate(ctx, c.AuthorID, c.Body, c.Signature, commentMatchesBody(c))
	return &CommentView{Comment: c, Signature: sv.Result, Badge: sv.Badge}
}

func commentMatchesBody(c *domain.Comment) bool {
	in, err := decodeComment(c.Body)
	return err == nil && in.Content == c.Content && in.ParentID == c.ParentID
}

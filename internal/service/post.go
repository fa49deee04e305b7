package service

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiaot623/trustbook/internal/domain"
	"github.com/xiaot623/trustbook/internal/feed"
	"github.com/xiaot623/trustbook/internal/presentation"
	"github.com/xiaot623/trustbook/internal/verify"
)

const defaultPostType = "discussion"

// PostInput is the body of a create or edit request. It is decoded from the
// exact bytes the signature covers.
type PostInput struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Body    string   `json:"body,omitempty"`
	Type    string   `json:"type,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// normalize folds the body alias into Content and fills the default type.
func (in PostInput) normalize() PostInput {
	if in.Content == "" {
		in.Content = in.Body
	}
	in.Body = ""
	if in.Type == "" {
		in.Type = defaultPostType
	}
	return in
}

func decodePost(body []byte) (PostInput, error) {
	var in PostInput
	if err := json.Unmarshal(body, &in); err != nil {
		return in, fmt.Errorf("%w: invalid request body", ErrInvalidInput)
	}
	in = in.normalize()
	if strings.TrimSpace(in.Title) == "" {
		return in, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	return in, nil
}

// PostView is a post with its live verification result.
type PostView struct {
	*domain.Post
	Signature verify.Result      `json:"signature"`
	Badge     presentation.Badge `json:"badge"`
}

// CreatePost stores the post described by req.Body and judges its
// signature. The signature outcome never blocks the post.
func (s *Service) CreatePost(ctx context.Context, author *domain.Agent, projectID string, req SignedRequest) (*PostView, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("%w: project_id is required", ErrInvalidInput)
	}
	in, err := decodePost(req.Body)
	if err != nil {
		return nil, err
	}

	adm := s.admit(ctx, author, req)

	now := s.now().UTC()
	post := &domain.Post{
		PostID:    uuid.New().String(),
		ProjectID: projectID,
		AuthorID:  author.AgentID,
		Title:     in.Title,
		Content:   in.Content,
		Type:      in.Type,
		Tags:      in.Tags,
		Body:      req.Body,
		Signature: adm.record,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	s.settle(ctx, author, adm)

	s.publish(ctx, feed.EventPostCreated, post.ProjectID, post.PostID, "", author, adm.result)
	return s.postView(ctx, post), nil
}

// UpdatePost replaces a post owned by author with the full document in
// req.Body. The new request's envelope replaces the stored one, so the
// signature always covers every displayed field.
func (s *Service) UpdatePost(ctx context.Context, author *domain.Agent, postID string, req SignedRequest) (*PostView, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	if post == nil {
		return nil, ErrNotFound
	}
	if post.AuthorID != author.AgentID {
		return nil, fmt.Errorf("%w: only the author can edit a post", ErrForbidden)
	}
	in, err := decodePost(req.Body)
	if err != nil {
		return nil, err
	}

	adm := s.admit(ctx, author, req)
	post.Title = in.Title
	post.Content = in.Content
	post.Type = in.Type
	post.Tags = in.Tags
	post.Body = req.Body
	post.Signature = adm.record
	post.UpdatedAt = s.now().UTC()
	if err := s.store.UpdatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	s.settle(ctx, author, adm)

	s.publish(ctx, feed.EventPostUpdated, post.ProjectID, post.PostID, "", author, adm.result)
	return s.postView(ctx, post), nil
}

// GetPost returns a post with its signature recomputed now.
func (s *Service) GetPost(ctx context.Context, postID string) (*PostView, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	if post == nil {
		return nil, ErrNotFound
	}
	return s.postView(ctx, post), nil
}

// ListPosts returns a project's posts, newest first.
func (s *Service) ListPosts(ctx context.Context, projectID string, limit int) ([]PostView, error) {
	posts, err := s.store.ListPosts(ctx, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	views := make([]PostView, 0, len(posts))
	for i := range posts {
		views = append(views, *s.postView(ctx, &posts[i]))
	}
	return views, nil
}

func (s *Service) postView(ctx context.Context, post *domain.Post) *PostView {
	sv := s.evaluate(ctx, post.AuthorID, post.Body, post.Signature, postMatchesBody(post))
	return &PostView{Post: post, Signature: sv.Result, Badge: sv.Badge}
}

// postMatchesBody reports whether the displayed fields are the ones the
// stored body states.
func postMatchesBody(post *domain.Post) bool {
	in, err := decodePost(post.Body)
	if err != nil {
		return false
	}
	return in.Title == post.Title &&
		in.Content == post.Content &&
		in.Type == post.Type &&
		slices.Equal(in.Tags, post.Tags)
}

// publish announces an admitted action on the project feed.
func (s *Service) publish(ctx context.Context, eventType, projectID, postID, commentID string, author *domain.Agent, res verify.Result) {
	if s.publisher == nil {
		return
	}
	binding, _ := s.registry.Binding(ctx, author.AgentID)
	event := feed.Event{
		Type:      eventType,
		Ts:        s.now().UnixMilli(),
		ProjectID: projectID,
		PostID:    postID,
		CommentID: commentID,
		AuthorID:  author.AgentID,
		Signature: res,
		Badge:     s.renderer.Render(ctx, res, binding.Status()),
	}
	if err := s.publisher.PublishJSON(projectID, event); err != nil {
		s.logger.Warn("failed to publish feed event", zap.String("type", eventType), zap.Error(err))
	}
}

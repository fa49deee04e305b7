// Package client provides an HTTP client for the forum API that signs
// agent actions.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xiaot623/trustbook/internal/service"
	"github.com/xiaot623/trustbook/internal/signing"
)

// Config configures a Client.
type Config struct {
	BaseURL   string
	APIKey    string
	AgentName string
	Timeout   time.Duration
}

// Client talks to the forum API. Writes are signed when a signer is set.
type Client struct {
	baseURL    string
	apiKey     string
	agentName  string
	signer     *signing.Signer
	httpClient *http.Client
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

// NewClient creates a client. signer may be nil for unsigned use.
func NewClient(cfg Config, signer *signing.Signer) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		agentName: cfg.AgentName,
		signer:    signer,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Register creates an agent. The returned API key is shown only once.
func (c *Client) Register(ctx context.Context, name string, in service.IdentityInput) (*service.Registration, error) {
	body, err := json.Marshal(map[string]string{
		"name":            name,
		"certificate_pem": in.CertificatePEM,
		"public_key_pem":  in.PublicKeyPEM,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	var reg service.Registration
	if err := c.do(ctx, http.MethodPost, "/api/v1/agents", body, false, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Me returns the authenticated agent's profile.
func (c *Client) Me(ctx context.Context) (*service.AgentProfile, error) {
	var profile service.AgentProfile
	if err := c.do(ctx, http.MethodGet, "/api/v1/agents/me", nil, false, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// BindIdentity binds a certificate and/or public key to the agent.
func (c *Client) BindIdentity(ctx context.Context, in service.IdentityInput) (*service.AgentProfile, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	var profile service.AgentProfile
	if err := c.do(ctx, http.MethodPut, "/api/v1/agents/me/identity", body, false, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// CreatePost publishes a signed post in projectID.
func (c *Client) CreatePost(ctx context.Context, projectID string, in service.PostInput) (*service.PostView, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	var post service.PostView
	path := "/api/v1/projects/" + url.PathEscape(projectID) + "/posts"
	if err := c.do(ctx, http.MethodPost, path, body, true, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// UpdatePost replaces a post with the signed document in.
func (c *Client) UpdatePost(ctx context.Context, postID string, in service.PostInput) (*service.PostView, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	var post service.PostView
	if err := c.do(ctx, http.MethodPatch, "/api/v1/posts/"+url.PathEscape(postID), body, true, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// GetPost fetches a post with its current verification result.
func (c *Client) GetPost(ctx context.Context, postID string) (*service.PostView, error) {
	var post service.PostView
	if err := c.do(ctx, http.MethodGet, "/api/v1/posts/"+url.PathEscape(postID), nil, false, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// ListPosts lists a project's posts.
func (c *Client) ListPosts(ctx context.Context, projectID string, limit int) ([]service.PostView, error) {
	path := "/api/v1/projects/" + url.PathEscape(projectID) + "/posts"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Posts []service.PostView `json:"posts"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, false, &resp); err != nil {
		return nil, err
	}
	return resp.Posts, nil
}

// CreateComment posts a signed comment on postID.
func (c *Client) CreateComment(ctx context.Context, postID string, in service.CommentInput) (*service.CommentView, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	var comment service.CommentView
	if err := c.do(ctx, http.MethodPost, "/api/v1/posts/"+url.PathEscape(postID)+"/comments", body, true, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListComments lists a post's comments.
func (c *Client) ListComments(ctx context.Context, postID string) ([]service.CommentView, error) {
	var resp struct {
		Comments []service.CommentView `json:"comments"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/posts/"+url.PathEscape(postID)+"/comments", nil, false, &resp); err != nil {
		return nil, err
	}
	return resp.Comments, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, sign bool, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if sign && c.signer != nil {
		if _, err := c.signer.SignRequest(ctx, httpReq, c.agentName, body); err != nil {
			return fmt.Errorf("failed to sign request: %w", err)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &errBody) == nil && errBody.Error != "" {
			msg = errBody.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

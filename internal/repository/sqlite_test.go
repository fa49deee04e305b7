package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xiaot623/trustbook/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func seedAgent(t *testing.T, store *SQLiteStore, id, name string) *domain.Agent {
	t.Helper()
	agent := &domain.Agent{AgentID: id, Name: name, APIKey: "key-" + id, CreatedAt: time.Now().UTC()}
	if err := store.CreateAgent(context.Background(), agent); err != nil {
		t.Fatalf("CreateAgent failed: %v", err)
	}
	return agent
}

func TestSQLiteStoreAgents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	seedAgent(t, store, "a1", "alice")

	got, err := store.GetAgentByAPIKey(ctx, "key-a1")
	if err != nil {
		t.Fatalf("GetAgentByAPIKey failed: %v", err)
	}
	if got == nil || got.Name != "alice" || got.LastSeen != nil {
		t.Fatalf("unexpected agent: %+v", got)
	}

	dup := &domain.Agent{AgentID: "a2", Name: "alice", APIKey: "other", CreatedAt: time.Now()}
	if err := store.CreateAgent(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate name, got %v", err)
	}

	if err := store.TouchAgent(ctx, "a1", time.Now().UTC()); err != nil {
		t.Fatalf("TouchAgent failed: %v", err)
	}
	got, _ = store.GetAgentByName(ctx, "alice")
	if got.LastSeen == nil {
		t.Fatalf("expected last_seen to be set")
	}

	missing, err := store.GetAgent(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for missing agent, got %+v, %v", missing, err)
	}

	if err := store.SaveIdentity(ctx, &domain.IdentityBinding{AgentID: "a1", PublicKeyPEM: "pem"}); err != nil {
		t.Fatalf("SaveIdentity failed: %v", err)
	}
	if err := store.DeleteAgent(ctx, "a1"); err != nil {
		t.Fatalf("DeleteAgent failed: %v", err)
	}
	if got, _ := store.GetAgentByName(ctx, "alice"); got != nil {
		t.Fatalf("expected agent to be deleted, got %+v", got)
	}
	if b, _ := store.GetIdentity(ctx, "a1"); b != nil {
		t.Fatalf("expected identity to be deleted, got %+v", b)
	}
	seedAgent(t, store, "a3", "alice")
}

func TestSQLiteStoreIdentity(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()
	seedAgent(t, store, "a1", "alice")

	none, err := store.GetIdentity(ctx, "a1")
	if err != nil || none != nil {
		t.Fatalf("expected no binding, got %+v, %v", none, err)
	}

	now := time.Now().UTC()
	binding := &domain.IdentityBinding{
		AgentID:         "a1",
		CertificatePEM:  "-----BEGIN CERTIFICATE-----\nA\n-----END CERTIFICATE-----\n",
		CertFingerprint: "AA:BB",
		BoundAt:         &now,
	}
	if err := store.SaveIdentity(ctx, binding); err != nil {
		t.Fatalf("SaveIdentity failed: %v", err)
	}

	changed, err := store.MarkIdentityVerified(ctx, "a1", "CC:DD", now)
	if err != nil || changed {
		t.Fatalf("verification of another certificate must not mark the binding: %v, %v", changed, err)
	}
	changed, err = store.MarkIdentityVerified(ctx, "a1", "AA:BB", now)
	if err != nil || !changed {
		t.Fatalf("expected binding to be marked verified: %v, %v", changed, err)
	}
	changed, _ = store.MarkIdentityVerified(ctx, "a1", "AA:BB", now.Add(time.Minute))
	if changed {
		t.Fatalf("verified_at must only be set once")
	}

	got, err := store.GetIdentity(ctx, "a1")
	if err != nil {
		t.Fatalf("GetIdentity failed: %v", err)
	}
	if got.Status() != domain.IdentityStatusVerified {
		t.Fatalf("expected verified, got %s", got.Status())
	}

	// Rebinding replaces the row and clears verification.
	rebind := &domain.IdentityBinding{
		AgentID:         "a1",
		CertificatePEM:  "-----BEGIN CERTIFICATE-----\nB\n-----END CERTIFICATE-----\n",
		CertFingerprint: "CC:DD",
		BoundAt:         &now,
	}
	if err := store.SaveIdentity(ctx, rebind); err != nil {
		t.Fatalf("SaveIdentity failed: %v", err)
	}
	got, _ = store.GetIdentity(ctx, "a1")
	if got.CertFingerprint != "CC:DD" || got.VerifiedAt != nil {
		t.Fatalf("unexpected binding after rebind: %+v", got)
	}
	if got.Status() != domain.IdentityStatusBound {
		t.Fatalf("expected bound, got %s", got.Status())
	}
}

func TestSQLiteStorePostsAndComments(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()
	seedAgent(t, store, "a1", "alice")

	now := time.Now().UTC()
	body := []byte(`{"title":"Hello","content":"Hi"}`)
	post := &domain.Post{
		PostID:    "p-1",
		ProjectID: "p1",
		AuthorID:  "a1",
		Title:     "Hello",
		Content:   "Hi",
		Type:      "discussion",
		Tags:      []string{"intro"},
		Body:      body,
		Signature: &domain.SignatureRecord{
			Signature:  "c2ln",
			Timestamp:  "1700000000",
			Nonce:      "abc123",
			Method:     "POST",
			Path:       "/api/v1/projects/p1/posts",
			SignerName: "alice",
			NonceCheck: domain.NonceCheckFresh,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.CreatePost(ctx, post); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}

	got, err := store.GetPost(ctx, "p-1")
	if err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}
	if string(got.Body) != string(body) {
		t.Fatalf("body must round-trip byte for byte, got %q", got.Body)
	}
	if got.Signature == nil || got.Signature.Nonce != "abc123" || got.Signature.NonceCheck != domain.NonceCheckFresh {
		t.Fatalf("unexpected signature: %+v", got.Signature)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "intro" {
		t.Fatalf("unexpected tags: %v", got.Tags)
	}

	got.Title = "Hello again"
	got.Signature = nil
	got.UpdatedAt = now.Add(time.Minute)
	if err := store.UpdatePost(ctx, got); err != nil {
		t.Fatalf("UpdatePost failed: %v", err)
	}
	got, _ = store.GetPost(ctx, "p-1")
	if got.Title != "Hello again" || got.Signature != nil {
		t.Fatalf("unexpected post after update: %+v", got)
	}

	posts, err := store.ListPosts(ctx, "p1", 10)
	if err != nil || len(posts) != 1 {
		t.Fatalf("ListPosts: %d posts, %v", len(posts), err)
	}

	comment := &domain.Comment{
		CommentID: "c-1",
		PostID:    "p-1",
		AuthorID:  "a1",
		Content:   "first",
		CreatedAt: now,
	}
	if err := store.CreateComment(ctx, comment); err != nil {
		t.Fatalf("CreateComment failed: %v", err)
	}
	comments, err := store.ListComments(ctx, "p-1")
	if err != nil || len(comments) != 1 {
		t.Fatalf("ListComments: %d comments, %v", len(comments), err)
	}
	if comments[0].Signature != nil || comments[0].ParentID != "" {
		t.Fatalf("unexpected comment: %+v", comments[0])
	}

	missing, err := store.GetPost(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for missing post, got %+v, %v", missing, err)
	}
}

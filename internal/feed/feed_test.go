package feed

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/trustbook/internal/domain"
	"github.com/xiaot623/trustbook/internal/verify"
)

func startFeed(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	go hub.Run(ctx)

	srv := NewServer(ServerConfig{PingInterval: time.Second, PongWait: 2 * time.Second, WriteWait: time.Second}, hub, nil)
	e := echo.New()
	e.GET("/api/v1/projects/:project_id/feed", srv.HandleProjectFeed)
	ts := httptest.NewServer(e)

	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return hub, ts
}

func dial(t *testing.T, ts *httptest.Server, project string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/projects/" + project + "/feed"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitSubscribers(t *testing.T, hub *Hub, topic string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Subscribers(topic) == n }, 2*time.Second, 10*time.Millisecond)
}

func TestFeedDeliversToProjectSubscribers(t *testing.T) {
	hub, ts := startFeed(t)
	p1 := dial(t, ts, "p1")
	p2 := dial(t, ts, "p2")
	waitSubscribers(t, hub, "p1", 1)
	waitSubscribers(t, hub, "p2", 1)

	event := Event{
		Type:      EventPostCreated,
		ProjectID: "p1",
		PostID:    "post-1",
		Signature: verify.Result{Status: domain.SignatureStatusVerified},
	}
	require.NoError(t, hub.PublishJSON("p1", event))

	_ = p1.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := p1.ReadMessage()
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "post-1", got.PostID)
	assert.Equal(t, domain.SignatureStatusVerified, got.Signature.Status)

	_ = p2.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = p2.ReadMessage()
	assert.Error(t, err, "other projects receive nothing")
}

func TestFeedUnregistersOnClose(t *testing.T) {
	hub, ts := startFeed(t)
	conn := dial(t, ts, "p1")
	waitSubscribers(t, hub, "p1", 1)

	conn.Close()
	waitSubscribers(t, hub, "p1", 0)
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestPublishAfterStopDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	for i := 0; i < 300; i++ {
		hub.Publish("p1", []byte("x"))
	}
}

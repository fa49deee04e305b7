package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/xiaot623/trustbook/internal/feed"
)

// EventHandler is called for each feed event. Returning an error stops the
// watch.
type EventHandler func(event feed.Event) error

// Watch subscribes to a project's verification feed until ctx is done, the
// server closes the connection or handler fails.
func (c *Client) Watch(ctx context.Context, projectID string, handler EventHandler) error {
	addr := c.baseURL + "/api/v1/projects/" + url.PathEscape(projectID) + "/feed"
	switch {
	case strings.HasPrefix(addr, "https://"):
		addr = "wss://" + strings.TrimPrefix(addr, "https://")
	case strings.HasPrefix(addr, "http://"):
		addr = "ws://" + strings.TrimPrefix(addr, "http://")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		var event feed.Event
		if err := json.Unmarshal(data, &event); err != nil {
			return fmt.Errorf("unmarshal event: %w", err)
		}
		if err := handler(event); err != nil {
			return err
		}
	}
}

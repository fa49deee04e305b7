// Package feed streams verification events to websocket observers, one
// topic per project.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrBufferFull is returned when a connection's send buffer is full.
var ErrBufferFull = errors.New("send buffer full")

// Connection represents a single observer connection.
type Connection struct {
	ID    string
	Topic string
	Conn  *websocket.Conn
	Send  chan []byte
	mu    sync.Mutex
}

// Hub manages observer connections.
type Hub struct {
	// Connections indexed by connection ID
	connections map[string]*Connection

	// Topics maps a project ID to the set of subscribed connection IDs
	topics map[string]map[string]bool

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *topicMessage
	done       chan struct{}

	logger *zap.Logger
	mu     sync.RWMutex
}

type topicMessage struct {
	topic string
	data  []byte
}

// NewHub creates a new Hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		connections: make(map[string]*Connection),
		topics:      make(map[string]map[string]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *topicMessage, 256),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Run is the hub's main loop. It returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			if h.topics[conn.Topic] == nil {
				h.topics[conn.Topic] = make(map[string]bool)
			}
			h.topics[conn.Topic][conn.ID] = true
			h.mu.Unlock()
			h.logger.Debug("feed connection registered", zap.String("conn_id", conn.ID), zap.String("project_id", conn.Topic))

		case conn := <-h.unregister:
			h.remove(conn)

		case msg := <-h.broadcast:
			h.mu.RLock()
			var slow []*Connection
			for connID := range h.topics[msg.topic] {
				conn, ok := h.connections[connID]
				if !ok {
					continue
				}
				select {
				case conn.Send <- msg.data:
				default:
					slow = append(slow, conn)
				}
			}
			h.mu.RUnlock()
			for _, conn := range slow {
				h.logger.Warn("feed connection buffer full, closing", zap.String("conn_id", conn.ID))
				h.remove(conn)
			}
		}
	}
}

func (h *Hub) remove(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return
	}
	delete(h.connections, conn.ID)
	if ids := h.topics[conn.Topic]; ids != nil {
		delete(ids, conn.ID)
		if len(ids) == 0 {
			delete(h.topics, conn.Topic)
		}
	}
	close(conn.Send)
	h.logger.Debug("feed connection unregistered", zap.String("conn_id", conn.ID))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, conn := range h.connections {
		close(conn.Send)
		delete(h.connections, id)
	}
	h.topics = make(map[string]map[string]bool)
}

// NewConnection creates a connection subscribed to topic.
func (h *Hub) NewConnection(ws *websocket.Conn, topic string) *Connection {
	return &Connection{
		ID:    uuid.New().String(),
		Topic: topic,
		Conn:  ws,
		Send:  make(chan []byte, 256),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
		close(conn.Send)
	}
}

// Unregister removes a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Publish sends data to every connection subscribed to topic. It never
// blocks the caller once the hub has stopped.
func (h *Hub) Publish(topic string, data []byte) {
	select {
	case h.broadcast <- &topicMessage{topic: topic, data: data}:
	case <-h.done:
	}
}

// PublishJSON marshals v and publishes it to topic.
func (h *Hub) PublishJSON(topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Publish(topic, data)
	return nil
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Subscribers returns the number of connections subscribed to topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

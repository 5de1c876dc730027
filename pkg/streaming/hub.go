// Package streaming broadcasts conversation events to WebSocket
// observers, for dashboards watching turns and simulated bets live.
package streaming

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// EventType classifies a streaming event.
type EventType string

const (
	EventTypeTurn      EventType = "turn"
	EventTypeToolCall  EventType = "tool_call"
	EventTypeBet       EventType = "bet"
	EventTypeStatus    EventType = "status"
	EventTypeError     EventType = "error"
	EventTypeHeartbeat EventType = "heartbeat"
)

// Event is one message sent to clients.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Hub manages WebSocket connections and fans events out to them.
type Hub struct {
	log *logrus.Entry

	clients    map[*client]bool
	broadcast  chan Event
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex

	upgrader websocket.Upgrader
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	subscriptions map[EventType]bool
	subMu         sync.RWMutex
}

// NewHub creates a hub; call Run to start delivery.
func NewHub(log *logrus.Entry) *Hub {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Hub{
		log:        log,
		clients:    make(map[*client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Run delivers events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.WithField("clients", total).Debug("websocket client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.deliver(event)

		case <-heartbeat.C:
			h.deliver(Event{
				Type:      EventTypeHeartbeat,
				Timestamp: time.Now().UTC(),
				Data:      map[string]any{"clients": h.ClientCount()},
			})
		}
	}
}

func (h *Hub) deliver(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).Warn("dropping unmarshalable event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.subscribed(event.Type) {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Slow consumer; drop the connection rather than block
			// delivery.
			close(c.send)
			delete(h.clients, c)
		}
	}
}

// Broadcast queues an event for delivery. Never blocks; under pressure
// the event is dropped.
func (h *Hub) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case h.broadcast <- event:
	default:
		h.log.Warn("broadcast buffer full, dropping event")
	}
}

// BroadcastTurn announces a finished conversation turn.
func (h *Hub) BroadcastTurn(sessionID, status string, roundTrips int) {
	h.Broadcast(Event{Type: EventTypeTurn, Data: map[string]any{
		"session_id":  sessionID,
		"status":      status,
		"round_trips": roundTrips,
	}})
}

// BroadcastToolCall announces one tool dispatch.
func (h *Hub) BroadcastToolCall(sessionID, tool, status string) {
	h.Broadcast(Event{Type: EventTypeToolCall, Data: map[string]any{
		"session_id": sessionID,
		"tool":       tool,
		"status":     status,
	}})
}

// BroadcastBet announces a placed simulated bet.
func (h *Hub) BroadcastBet(sessionID string, bet any) {
	h.Broadcast(Event{Type: EventTypeBet, Data: map[string]any{
		"session_id": sessionID,
		"bet":        bet,
	}})
}

// BroadcastStatus announces a service state change, such as the feed
// snapshot becoming ready.
func (h *Hub) BroadcastStatus(status any) {
	h.Broadcast(Event{Type: EventTypeStatus, Data: status})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades an HTTP request to a streaming connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, 256),
		subscriptions: make(map[EventType]bool),
	}
	for _, t := range []EventType{EventTypeTurn, EventTypeToolCall, EventTypeBet, EventTypeStatus, EventTypeError, EventTypeHeartbeat} {
		c.subscriptions[t] = true
	}

	h.register <- c
	go c.writePump()
	go c.readPump()
}

func (c *client) subscribed(t EventType) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.subscriptions[t]
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.handleMessage(message)
	}
}

// handleMessage applies client subscribe/unsubscribe requests.
func (c *client) handleMessage(message []byte) {
	var msg struct {
		Type   string   `json:"type"`
		Events []string `json:"events"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}

	c.subMu.Lock()
	defer c.subMu.Unlock()
	switch msg.Type {
	case "subscribe":
		for _, e := range msg.Events {
			c.subscriptions[EventType(e)] = true
		}
	case "unsubscribe":
		for _, e := range msg.Events {
			delete(c.subscriptions, EventType(e))
		}
	}
}

func (c *client) writePump() {
	ping := time.NewTicker(54 * time.Second)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

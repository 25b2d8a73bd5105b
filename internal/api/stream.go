package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"nil-match/backend/internal/matching"
	"nil-match/backend/internal/store"
)

// MatchEvent describes websocket payloads emitted when the match set changes.
type MatchEvent struct {
	Type      string            `json:"type"`
	Summary   *matching.Summary `json:"summary,omitempty"`
	Top       []MatchDTO        `json:"top,omitempty"`
	Message   string            `json:"message,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// MatchNotifier keeps track of active websocket clients and broadcasts recompute events.
type MatchNotifier struct {
	mu         sync.Mutex
	clients    map[*wsClient]struct{}
	lastStatus *MatchEvent
}

// NewMatchNotifier constructs a notifier instance.
func NewMatchNotifier() *MatchNotifier {
	return &MatchNotifier{clients: make(map[*wsClient]struct{})}
}

// Register attaches a websocket connection and replays the latest recompute event to it.
func (n *MatchNotifier) Register(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	status := n.lastStatus
	n.mu.Unlock()

	if status != nil {
		_ = client.writeJSON(*status)
	}
	return client
}

// Unregister removes the websocket client from the notifier and closes the socket.
func (n *MatchNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	delete(n.clients, client)
	n.mu.Unlock()
	_ = client.conn.Close()
}

// MatchesRecomputed implements matching.Listener.
func (n *MatchNotifier) MatchesRecomputed(summary matching.Summary, top []store.Evaluation) {
	dtos := make([]MatchDTO, 0, len(top))
	for _, eval := range top {
		dtos = append(dtos, MatchFromModel(eval, nil, nil))
	}
	n.Broadcast(MatchEvent{Type: "recomputed", Summary: &summary, Top: dtos})
}

// Broadcast sends the supplied event to all registered websocket clients.
func (n *MatchNotifier) Broadcast(event MatchEvent) {
	event.Timestamp = time.Now().UTC()

	n.mu.Lock()
	if event.Type == "recomputed" {
		snapshot := event
		n.lastStatus = &snapshot
	}

	for client := range n.clients {
		if err := client.writeJSON(event); err != nil {
			delete(n.clients, client)
			_ = client.conn.Close()
		}
	}
	n.mu.Unlock()
}

// ClientCount returns the number of connected websocket clients.
func (n *MatchNotifier) ClientCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.clients)
}

func (c *wsClient) writeJSON(payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}

// LastStatus returns a copy of the most recent recompute event.
func (n *MatchNotifier) LastStatus() *MatchEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastStatus == nil {
		return nil
	}
	snapshot := *n.lastStatus
	return &snapshot
}

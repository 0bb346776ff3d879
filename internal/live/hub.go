// Package live is the realtime fan-out for watching clients: when a node
// applies a SEND_MESSAGE mutation (locally or via replication), it pushes the
// new chatproto.Message to every websocket connection the recipient has open
// on this node. A client connected to a different node than the sender
// receives the push once that node applies the replicated commit.
package live

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/chatmesh/chatmesh/internal/chatproto"
)

// Op mirrors the teacher's websocket envelope shape, trimmed to what a
// single-purpose message feed needs.
type Op int

const (
	OpHello     Op = iota // server -> client, sent on connect
	OpMessage             // server -> client, a new chatproto.Message
	OpHeartbeat           // client -> server, keepalive
)

// Envelope is the wire frame sent over the websocket connection.
type Envelope struct {
	Op   Op              `json:"op"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Hub fans new messages out to connected recipients. One Hub per node.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*Connection]struct{} // username -> connections

	log *slog.Logger
}

// NewHub builds an empty Hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		conns: make(map[string]map[*Connection]struct{}),
		log:   log,
	}
}

// Register adds a connection for username, to be torn down by the caller via
// Unregister once the socket closes.
func (h *Hub) Register(username string, c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[username] == nil {
		h.conns[username] = make(map[*Connection]struct{})
	}
	h.conns[username][c] = struct{}{}
	h.log.Info("live: connection registered", slog.String("user", username))
}

// Unregister removes a connection.
func (h *Hub) Unregister(username string, c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.conns[username]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.conns, username)
		}
	}
}

// PushMessage delivers msg to every connection username currently has open.
// A recipient with no open connections simply drops the push; GET_MESSAGES
// remains the durable path.
func (h *Hub) PushMessage(username string, msg chatproto.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("live: marshal message for push", slog.Any("error", err))
		return
	}
	env := Envelope{Op: OpMessage, Data: data}
	frame, err := json.Marshal(env)
	if err != nil {
		h.log.Error("live: marshal envelope", slog.Any("error", err))
		return
	}

	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.conns[username]))
	for c := range h.conns[username] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.Send(frame)
	}
}

// IsOnline reports whether username has at least one open connection.
func (h *Hub) IsOnline(username string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[username]) > 0
}

// OnlineUsernames returns every username with at least one open connection.
func (h *Hub) OnlineUsernames() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.conns))
	for u := range h.conns {
		out = append(out, u)
	}
	return out
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

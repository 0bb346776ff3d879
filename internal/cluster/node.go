// Package cluster implements the Election Engine, Heartbeat Monitor, and
// Server Facade: a Node guards leader_id and election_in_progress with its
// own mutex and drives the Bully algorithm and commit synchronization across
// peers. Storage mutations are serialized by the Applier's separate mutex,
// not by the Node's.
package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/chatmesh/chatmesh/internal/applier"
	"github.com/chatmesh/chatmesh/internal/chatproto"
	"github.com/chatmesh/chatmesh/internal/live"
	"github.com/chatmesh/chatmesh/internal/storage"
	"github.com/chatmesh/chatmesh/internal/transport"
)

// Config is the static cluster membership and timing every node loads
// identically at startup.
type Config struct {
	SelfID            int
	Peers             map[int]string // server_id -> "host:port", excludes SelfID
	HeartbeatInterval time.Duration
	ElectionTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 2 * time.Second
	}
	if c.ElectionTimeout <= 0 {
		c.ElectionTimeout = transport.ElectionRPCTimeout
	}
	return c
}

// Node is one cluster member: the Server Facade, Election Engine, and
// Heartbeat Monitor in one struct. mu guards leaderID and electing only;
// request application and storage writes are serialized inside the Applier
// under a different mutex, so there is no single process-wide lock.
type Node struct {
	cfg       Config
	store     storage.Store
	applier   *applier.Applier
	transport *transport.Client
	log       *slog.Logger

	mu       sync.Mutex
	leaderID *int
	electing bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New builds a Node. Call Start before serving RPC traffic.
func New(cfg Config, store storage.Store, app *applier.Applier, tc *transport.Client, log *slog.Logger) *Node {
	if log == nil {
		log = slog.Default()
	}
	return &Node{
		cfg:       cfg.withDefaults(),
		store:     store,
		applier:   app,
		transport: tc,
		log:       log,
		done:      make(chan struct{}),
	}
}

// AttachHub wires hub so SEND_MESSAGE mutations push the new message to the
// recipient's live connections on this node as soon as they commit, whether
// the request arrived from a client or from commit synchronization with a
// peer.
func (n *Node) AttachHub(hub *live.Hub) {
	n.applier.OnApplied = func(req chatproto.Request) {
		if req.Type != chatproto.SendMessage || req.Message == nil {
			return
		}
		hub.PushMessage(req.Message.Recipient, *req.Message)
	}
}

// ID returns this node's server_id.
func (n *Node) ID() int { return n.cfg.SelfID }

// LeaderID reports the currently known leader, or (0, false) if none.
func (n *Node) LeaderID() (int, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.leaderID == nil {
		return 0, false
	}
	return *n.leaderID, true
}

// Start runs the Server Facade startup sequence (§4.6, steps 2-4; step 1,
// opening storage and running migrations, and step 5, registering RPC
// handlers via transport.Mount, are the caller's responsibility since they
// depend on the chosen storage backend and HTTP router):
//
//  1. Reload request_ids from the full commit log.
//  2. Run an initial Synchronize Commits against peers.
//  3. Start the Heartbeat Monitor.
func (n *Node) Start(ctx context.Context) error {
	if err := n.applier.Recover(ctx); err != nil {
		return fmt.Errorf("cluster: recover applier: %w", err)
	}
	n.log.Info("cluster: starting", slog.Int("self", n.cfg.SelfID), slog.Any("peers", n.sortedPeerIDs()))
	n.synchronizeCommits(ctx)

	n.wg.Add(1)
	go n.heartbeatLoop()
	return nil
}

// Stop signals shutdown and waits for the Heartbeat Monitor to exit.
func (n *Node) Stop() {
	close(n.done)
	n.wg.Wait()
}

func (n *Node) peerAddrs() map[int]string { return n.cfg.Peers }

func (n *Node) sortedPeerIDs() []int {
	ids := make([]int, 0, len(n.cfg.Peers))
	for id := range n.cfg.Peers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// HandleExecute applies a client request via the Request Applier.
func (n *Node) HandleExecute(ctx context.Context, req chatproto.Request) (chatproto.Response, error) {
	return n.applier.ApplyRequest(ctx, req)
}

// HandleHeartbeat acknowledges a liveness probe. The design does not ask a
// follower to act on a received heartbeat, only to answer it.
func (n *Node) HandleHeartbeat(ctx context.Context, serverID int) error {
	return nil
}

// HandleGetCommits returns every local commit strictly after latestCommitID.
func (n *Node) HandleGetCommits(ctx context.Context, serverID int, latestCommitID uint64) ([]chatproto.Commit, error) {
	return n.store.CommitsSince(ctx, latestCommitID)
}

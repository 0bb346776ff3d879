package cluster

import (
	"context"
	"log/slog"
	"time"
)

// heartbeatLoop is the Heartbeat Monitor (§4.5): every HeartbeatInterval it
// checks on the known leader, triggering an election if there is none, or
// probing the leader otherwise and clearing leader_id on transport failure.
// It exits when Stop closes n.done.
func (n *Node) heartbeatLoop() {
	defer n.wg.Done()

	ticker := time.NewTicker(n.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-n.done:
			return
		case <-ticker.C:
			n.heartbeatTick()
		}
	}
}

func (n *Node) heartbeatTick() {
	n.mu.Lock()
	leader := n.leaderID
	electing := n.electing
	n.mu.Unlock()

	if electing {
		return
	}

	if leader == nil {
		n.startElection(context.Background())
		return
	}
	if *leader == n.cfg.SelfID {
		return
	}

	addr, ok := n.cfg.Peers[*leader]
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.ElectionTimeout)
	defer cancel()

	if err := n.transport.Heartbeat(ctx, addr); err != nil {
		n.log.Warn("cluster: leader heartbeat failed, clearing leader", slog.Int("leader", *leader), slog.Any("error", err))
		n.mu.Lock()
		if n.leaderID != nil && *n.leaderID == *leader {
			n.leaderID = nil
		}
		n.mu.Unlock()
	}
}

package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chatmesh/chatmesh/internal/chatproto"
)

// HandleElection answers an Election RPC from a lower-id candidate. Per
// invariant I5's mirror image, a candidate only contacts peers with a
// higher id, so receiving one here asserts candidateID < self.ID(); a
// violation is a protocol error the design treats as fatal to the RPC.
// The receiver acknowledges immediately and starts its own election in the
// background — that is what "I outrank you and will take over" means.
func (n *Node) HandleElection(ctx context.Context, candidateID int) error {
	if candidateID >= n.cfg.SelfID {
		return fmt.Errorf("cluster: election from candidate %d >= self %d", candidateID, n.cfg.SelfID)
	}
	go n.startElection(context.Background())
	return nil
}

// HandleCoordinator installs a new leader announced by a higher-id node and
// merges its commit history (§4.4a). leaderID > self.ID() is asserted per
// invariant I5.
func (n *Node) HandleCoordinator(ctx context.Context, leaderID int, history []chatproto.Commit) error {
	if leaderID <= n.cfg.SelfID {
		return fmt.Errorf("cluster: coordinator leader %d <= self %d", leaderID, n.cfg.SelfID)
	}

	if err := n.mergeCommits(ctx, history); err != nil {
		return err
	}

	n.mu.Lock()
	n.leaderID = &leaderID
	n.electing = false
	n.mu.Unlock()
	return nil
}

// mergeCommits applies every commit in history whose seq exceeds the local
// max, in seq order. Application goes through the Applier, which dedupes by
// request.id — the safety net the design relies on since seq values are
// only locally meaningful (see design note in §9).
func (n *Node) mergeCommits(ctx context.Context, history []chatproto.Commit) error {
	localMax, err := n.store.MaxSeq(ctx)
	if err != nil {
		return fmt.Errorf("cluster: merge commits: max seq: %w", err)
	}

	sorted := append([]chatproto.Commit(nil), history...)
	sortCommits(sorted)

	for _, c := range sorted {
		if c.Seq <= localMax {
			continue
		}
		req, err := c.DecodeRequest()
		if err != nil {
			n.log.Warn("cluster: skipping malformed commit during merge", slog.Uint64("seq", c.Seq), slog.Any("error", err))
			continue
		}
		if _, err := n.applier.ApplyRequest(ctx, req); err != nil {
			return fmt.Errorf("cluster: apply merged commit %d: %w", c.Seq, err)
		}
	}
	return nil
}

func sortCommits(commits []chatproto.Commit) {
	for i := 1; i < len(commits); i++ {
		for j := i; j > 0 && commits[j].Seq < commits[j-1].Seq; j-- {
			commits[j], commits[j-1] = commits[j-1], commits[j]
		}
	}
}

// startElection runs the Bully candidacy procedure for self (§4.4). It is
// single-flight: a node already electing ignores a second trigger, and the
// electing flag is cleared on every exit path.
func (n *Node) startElection(ctx context.Context) {
	n.mu.Lock()
	if n.electing {
		n.mu.Unlock()
		return
	}
	n.electing = true
	n.leaderID = nil
	n.mu.Unlock()

	accepted := n.challengeHigherPeers(ctx)

	if !accepted {
		n.mu.Lock()
		n.electing = false
		n.mu.Unlock()
		n.log.Info("cluster: election deferred, a higher peer answered", slog.Int("self", n.cfg.SelfID))
		return
	}

	n.synchronizeCommits(ctx)

	history, err := n.store.AllCommits(ctx)
	if err != nil {
		n.log.Error("cluster: election: read commit history for coordinator broadcast", slog.Any("error", err))
		history = nil
	}
	n.broadcastCoordinator(ctx, history)

	self := n.cfg.SelfID
	n.mu.Lock()
	n.leaderID = &self
	n.electing = false
	n.mu.Unlock()
	n.log.Info("cluster: won election", slog.Int("self", n.cfg.SelfID))
}

// challengeHigherPeers sends Election to every peer with a higher id and
// reports whether none of them answered (meaning self may proceed to
// leadership).
func (n *Node) challengeHigherPeers(ctx context.Context) bool {
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := true

	for id, addr := range n.peerAddrs() {
		if id <= n.cfg.SelfID {
			continue
		}
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			if err := n.transport.Election(ctx, addr, n.cfg.SelfID); err == nil {
				mu.Lock()
				accepted = false
				mu.Unlock()
			}
		}(addr)
	}
	wg.Wait()
	return accepted
}

// broadcastCoordinator announces self as leader to every peer, swallowing
// transport failures (§7: "degrades... treats that peer as absent").
func (n *Node) broadcastCoordinator(ctx context.Context, history []chatproto.Commit) {
	var wg sync.WaitGroup
	for id, addr := range n.peerAddrs() {
		if id == n.cfg.SelfID {
			continue
		}
		wg.Add(1)
		go func(id int, addr string) {
			defer wg.Done()
			if err := n.transport.Coordinator(ctx, addr, n.cfg.SelfID, history); err != nil {
				n.log.Warn("cluster: coordinator broadcast failed", slog.Int("peer", id), slog.Any("error", err))
			}
		}(id, addr)
	}
	wg.Wait()
}

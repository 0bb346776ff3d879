package cluster

import (
	"context"
	"log/slog"
	"sync"

	"github.com/chatmesh/chatmesh/internal/chatproto"
)

// synchronizeCommits is Synchronize Commits (§4.4a): for each peer, pull
// every commit after the local max and apply it through the Applier, which
// dedupes by request.id. Used by a new leader before announcing itself, and
// at node startup to recover any missed history. Transport failures are
// swallowed; a peer that cannot be reached is simply skipped for this round.
func (n *Node) synchronizeCommits(ctx context.Context) {
	localMax, err := n.store.MaxSeq(ctx)
	if err != nil {
		n.log.Error("cluster: sync: read local max seq", slog.Any("error", err))
		return
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var pulled []chatproto.Commit

	for id, addr := range n.peerAddrs() {
		if id == n.cfg.SelfID {
			continue
		}
		wg.Add(1)
		go func(id int, addr string) {
			defer wg.Done()
			commits, err := n.transport.GetCommits(ctx, addr, localMax)
			if err != nil {
				n.log.Debug("cluster: sync: peer unreachable", slog.Int("peer", id), slog.Any("error", err))
				return
			}
			mu.Lock()
			pulled = append(pulled, commits...)
			mu.Unlock()
		}(id, addr)
	}
	wg.Wait()

	sortCommits(pulled)
	for _, c := range pulled {
		req, err := c.DecodeRequest()
		if err != nil {
			n.log.Warn("cluster: sync: skipping malformed commit", slog.Uint64("seq", c.Seq), slog.Any("error", err))
			continue
		}
		if _, err := n.applier.ApplyRequest(ctx, req); err != nil {
			n.log.Error("cluster: sync: apply pulled commit failed", slog.Uint64("seq", c.Seq), slog.Any("error", err))
		}
	}
}

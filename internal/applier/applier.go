// Package applier is the request applier / state machine: it turns a raw
// request blob into a response, deduplicating by request id and keeping a
// mutation plus its commit-log entry atomic. It is the only place that
// touches storage.Store's write path.
package applier

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chatmesh/chatmesh/internal/chatproto"
	"github.com/chatmesh/chatmesh/internal/storage"
)

// Applier applies chatproto.Request blobs to a storage.Store, one at a time,
// deduplicating by request id. The zero value is not usable; use New.
type Applier struct {
	store storage.Store

	mu   sync.Mutex
	seen map[string]struct{}

	// OnApplied, if set, is called after a mutating request successfully
	// commits (never for dedup replays). It exists so a Node can wire
	// live.Hub.PushMessage into SEND_MESSAGE without the applier importing
	// the live package.
	OnApplied func(req chatproto.Request)
}

// New builds an Applier over store. Call Recover once before serving traffic
// to seed the dedup set from the existing commit log.
func New(store storage.Store) *Applier {
	return &Applier{store: store, seen: make(map[string]struct{})}
}

// Recover replays the full commit log to rebuild the in-memory request id
// set. It does not re-apply mutations — commits are already reflected in the
// users/messages tables — it only restores dedup state lost on restart.
func (a *Applier) Recover(ctx context.Context) error {
	commits, err := a.store.AllCommits(ctx)
	if err != nil {
		return fmt.Errorf("applier: recover: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range commits {
		req, err := c.DecodeRequest()
		if err != nil {
			return fmt.Errorf("applier: recover: decode commit %d: %w", c.Seq, err)
		}
		a.seen[req.ID] = struct{}{}
	}
	return nil
}

// Apply parses blob as a chatproto.Request and applies it.
func (a *Applier) Apply(ctx context.Context, blob []byte) (chatproto.Response, error) {
	var req chatproto.Request
	if err := json.Unmarshal(blob, &req); err != nil {
		return chatproto.Response{}, fmt.Errorf("applier: decode request: %w", err)
	}
	return a.ApplyRequest(ctx, req)
}

// ApplyRequest applies a decoded Request. Callers that already hold the
// request (commit synchronization, tests) can skip the JSON round trip.
//
// A request already present in the dedup set returns an Ok() response with
// Deduped set, per invariant I1; it is never re-dispatched.
func (a *Applier) ApplyRequest(ctx context.Context, req chatproto.Request) (chatproto.Response, error) {
	if err := req.Validate(); err != nil {
		return chatproto.Err(err.Error()), nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, dup := a.seen[req.ID]; dup {
		resp := chatproto.Ok()
		resp.Deduped = true
		return resp, nil
	}

	h, ok := handlers[req.Type]
	if !ok {
		return chatproto.Err(fmt.Sprintf("unknown request_type %q", req.Type)), nil
	}

	resp, mutate, err := h(ctx, a.store, req)
	if err != nil {
		return chatproto.Response{}, err
	}

	if resp.Status == chatproto.OK && mutate != nil {
		blob, err := chatproto.EncodeRequest(req)
		if err != nil {
			return chatproto.Response{}, fmt.Errorf("applier: encode commit: %w", err)
		}
		err = a.store.Atomic(ctx, func(tx storage.Tx) error {
			if err := mutate(ctx, tx); err != nil {
				return err
			}
			_, err := tx.AppendCommit(ctx, blob)
			return err
		})
		if err != nil {
			return chatproto.Response{}, err
		}
		if a.OnApplied != nil {
			a.OnApplied(req)
		}
	}

	a.seen[req.ID] = struct{}{}
	return resp, nil
}

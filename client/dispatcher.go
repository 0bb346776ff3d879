// Package client is the external-facing dispatcher: it fans a single client
// request out to every node in the cluster and returns the last successful
// response, per spec's client dispatcher contract (§6).
package client

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/chatmesh/chatmesh/internal/chatproto"
	"github.com/chatmesh/chatmesh/internal/transport"
)

// Dispatcher is the thin client library a chatmeshctl or any other external
// caller links against. It owns no cluster state beyond the static address
// map and is safe for concurrent use.
type Dispatcher struct {
	nodes     map[int]string
	transport *transport.Client
	log       *slog.Logger
}

// New builds a Dispatcher over the given server_id -> "host:port" map. tc is
// typically transport.NewClient(0, signer): an external client has no server
// id of its own, and signer is the cluster's clusterauth Signer when the
// cluster has a cluster_secret (nodes then reject unsigned calls) or nil
// when it has none.
func New(nodes map[int]string, tc *transport.Client, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{nodes: nodes, transport: tc, log: log}
}

// Send delivers req to every node in ascending server_id order and returns
// the last response any node returned without a transport error. Because
// requests carry unique ids and application is idempotent, delivering to a
// node that already applied the request is a harmless no-op (§7). If every
// node is unreachable, the last transport error is returned.
//
// Per spec's design notes (§9), a later node's response unconditionally
// overwrites an earlier one's, even when an earlier node answered OK and a
// later one answered ERROR — "last wins", preserved here rather than
// tightened to "first OK wins".
func (d *Dispatcher) Send(ctx context.Context, req chatproto.Request) (chatproto.Response, error) {
	ids := make([]int, 0, len(d.nodes))
	for id := range d.nodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var last chatproto.Response
	var lastErr error
	got := false

	for _, id := range ids {
		addr := d.nodes[id]
		resp, err := d.transport.Execute(ctx, addr, req)
		if err != nil {
			d.log.Debug("client: node unreachable", slog.Int("node", id), slog.Any("error", err))
			lastErr = err
			continue
		}
		last = resp
		got = true
	}

	if !got {
		return chatproto.Response{}, fmt.Errorf("client: no node reachable: %w", lastErr)
	}
	return last, nil
}

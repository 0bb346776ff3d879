package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chatmesh/chatmesh/internal/chatproto"
	"github.com/chatmesh/chatmesh/internal/httpkit"
	"github.com/chatmesh/chatmesh/internal/transport"
)

type fakeNode struct {
	resp chatproto.Response
}

func (f *fakeNode) HandleExecute(ctx context.Context, req chatproto.Request) (chatproto.Response, error) {
	return f.resp, nil
}
func (f *fakeNode) HandleHeartbeat(ctx context.Context, serverID int) error { return nil }
func (f *fakeNode) HandleElection(ctx context.Context, candidateID int) error { return nil }
func (f *fakeNode) HandleCoordinator(ctx context.Context, leaderID int, history []chatproto.Commit) error {
	return nil
}
func (f *fakeNode) HandleGetCommits(ctx context.Context, serverID int, latestCommitID uint64) ([]chatproto.Commit, error) {
	return nil, nil
}

func newFakeServer(t *testing.T, resp chatproto.Response) string {
	t.Helper()
	r := httpkit.NewRouter()
	transport.Mount(r, &fakeNode{resp: resp})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestDispatcher_LastWins(t *testing.T) {
	addr1 := newFakeServer(t, chatproto.Ok())
	addr2 := newFakeServer(t, chatproto.Err("no such user"))

	d := New(map[int]string{1: addr1, 2: addr2}, transport.NewClient(0, nil), nil)
	resp, err := d.Send(context.Background(), chatproto.Request{ID: "1", Type: chatproto.Login, Username: "jason"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.Status != chatproto.ERROR {
		t.Fatalf("expected the higher-id node's (last) response to win, got %+v", resp)
	}
}

func TestDispatcher_SkipsUnreachableNodes(t *testing.T) {
	addr := newFakeServer(t, chatproto.Ok())

	d := New(map[int]string{1: addr, 2: "127.0.0.1:1"}, transport.NewClient(0, nil), nil)
	resp, err := d.Send(context.Background(), chatproto.Request{ID: "1", Type: chatproto.Login, Username: "jason"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.Status != chatproto.OK {
		t.Fatalf("expected the reachable node's response, got %+v", resp)
	}
}

func TestDispatcher_AllUnreachable(t *testing.T) {
	d := New(map[int]string{1: "127.0.0.1:1", 2: "127.0.0.1:2"}, transport.NewClient(0, nil), nil)
	if _, err := d.Send(context.Background(), chatproto.Request{ID: "1", Type: chatproto.Login, Username: "jason"}); err == nil {
		t.Fatal("expected error when every node is unreachable")
	}
}

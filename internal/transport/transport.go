// Package transport is the node-to-node Peer Transport: connection-per-call
// HTTP RPC with a per-call timeout for each of the five message kinds
// (Execute, Heartbeat, Election, Coordinator, GetCommits). Transport
// failures (dial, timeout, any non-200 status) are reported as
// ErrUnreachable, distinct from a business-level error in a 200 response
// body, so callers can treat "peer is down" uniformly.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chatmesh/chatmesh/internal/chatproto"
)

// ErrUnreachable means the peer could not be reached, did not answer within
// the call's timeout, or answered with a status other than 200.
var ErrUnreachable = errors.New("transport: peer unreachable")

const (
	pathExecute    = "/cluster/execute"
	pathHeartbeat  = "/cluster/heartbeat"
	pathElection   = "/cluster/election"
	pathCoordinate = "/cluster/coordinator"
	pathGetCommits = "/cluster/commits"
)

// Signer attaches per-call cluster authentication to outbound requests.
// Satisfied by *clusterauth.Signer; kept as an interface here so transport
// does not import clusterauth (authentication is a separable concern).
type Signer interface {
	AttachHeader(req *http.Request, serverID int) error
}

// Client issues peer RPCs. The zero value is not usable; use NewClient.
type Client struct {
	self   int
	http   *http.Client
	signer Signer
}

// NewClient builds a Client that identifies outbound calls as coming from
// selfServerID and signs them with signer (nil disables signing, used in
// tests and single-process setups without clusterauth configured).
func NewClient(selfServerID int, signer Signer) *Client {
	return &Client{self: selfServerID, http: &http.Client{}, signer: signer}
}

// ElectionRPCTimeout bounds Election/Coordinator/Heartbeat calls per spec
// §4.3 ("e.g. 2s").
const ElectionRPCTimeout = 2 * time.Second

// DataRPCTimeout bounds Execute/GetCommits calls, which may carry larger
// payloads (a full commit history) than a bare ack.
const DataRPCTimeout = 10 * time.Second

type heartbeatReq struct {
	ServerID int `json:"server_id"`
}

type electionReq struct {
	CandidateID int `json:"candidate_id"`
}

type coordinatorReq struct {
	LeaderID      int                `json:"leader_id"`
	CommitHistory []chatproto.Commit `json:"commit_history"`
}

type getCommitsReq struct {
	ServerID       int    `json:"server_id"`
	LatestCommitID uint64 `json:"latest_commit_id"`
}

type getCommitsResp struct {
	Commits []chatproto.Commit `json:"commits"`
}

type executeReq struct {
	Request string `json:"request"`
}

type executeResp struct {
	Response string `json:"response"`
}

// Execute submits req to the node at addr and returns its decoded response.
func (c *Client) Execute(ctx context.Context, addr string, req chatproto.Request) (chatproto.Response, error) {
	blob, err := chatproto.EncodeRequest(req)
	if err != nil {
		return chatproto.Response{}, err
	}
	var out executeResp
	if err := c.call(ctx, DataRPCTimeout, addr, pathExecute, executeReq{Request: string(blob)}, &out); err != nil {
		return chatproto.Response{}, err
	}
	var resp chatproto.Response
	if err := json.Unmarshal([]byte(out.Response), &resp); err != nil {
		return chatproto.Response{}, fmt.Errorf("transport: decode execute response: %w", err)
	}
	return resp, nil
}

// Heartbeat probes addr for liveness. A nil error means the peer
// acknowledged; any error (including ErrUnreachable) means treat it as down.
func (c *Client) Heartbeat(ctx context.Context, addr string) error {
	return c.call(ctx, ElectionRPCTimeout, addr, pathHeartbeat, heartbeatReq{ServerID: c.self}, nil)
}

// Election announces a candidacy to addr. A nil error means the peer
// accepted the RPC (i.e. outranks the candidate and will take over).
func (c *Client) Election(ctx context.Context, addr string, candidateID int) error {
	return c.call(ctx, ElectionRPCTimeout, addr, pathElection, electionReq{CandidateID: candidateID}, nil)
}

// Coordinator announces a new leader and its full commit history to addr.
func (c *Client) Coordinator(ctx context.Context, addr string, leaderID int, history []chatproto.Commit) error {
	return c.call(ctx, ElectionRPCTimeout, addr, pathCoordinate, coordinatorReq{LeaderID: leaderID, CommitHistory: history}, nil)
}

// GetCommits fetches every commit strictly after latestCommitID from addr,
// in seq order.
func (c *Client) GetCommits(ctx context.Context, addr string, latestCommitID uint64) ([]chatproto.Commit, error) {
	var out getCommitsResp
	err := c.call(ctx, DataRPCTimeout, addr, pathGetCommits,
		getCommitsReq{ServerID: c.self, LatestCommitID: latestCommitID}, &out)
	if err != nil {
		return nil, err
	}
	return out.Commits, nil
}

func (c *Client) call(ctx context.Context, timeout time.Duration, addr, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := "http://" + addr + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.signer != nil {
		if err := c.signer.AttachHeader(req, c.self); err != nil {
			return err
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

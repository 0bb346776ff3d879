package transport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/chatmesh/chatmesh/internal/chatproto"
	"github.com/chatmesh/chatmesh/internal/httpkit"
)

// NodeHandlers is the set of operations the Server Facade exposes over the
// wire; internal/cluster.Node satisfies it. Keeping transport decoupled
// from cluster avoids an import cycle (cluster depends on transport.Client
// to call peers).
type NodeHandlers interface {
	HandleExecute(ctx context.Context, req chatproto.Request) (chatproto.Response, error)
	HandleHeartbeat(ctx context.Context, serverID int) error
	HandleElection(ctx context.Context, candidateID int) error
	HandleCoordinator(ctx context.Context, leaderID int, history []chatproto.Commit) error
	HandleGetCommits(ctx context.Context, serverID int, latestCommitID uint64) ([]chatproto.Commit, error)
}

// Mount registers the five cluster RPC endpoints on r, dispatching to n.
func Mount(r *httpkit.Router, n NodeHandlers) {
	r.Post(pathExecute, func(c *httpkit.Ctx) error {
		var in executeReq
		if err := c.Bind(&in, 1<<20); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		var req chatproto.Request
		if err := unmarshalRequest(in.Request, &req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		resp, err := n.HandleExecute(c.Context(), req)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		blob, err := marshalResponse(resp)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, executeResp{Response: string(blob)})
	})

	r.Post(pathHeartbeat, func(c *httpkit.Ctx) error {
		var in heartbeatReq
		if err := c.Bind(&in, 1<<10); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		if err := n.HandleHeartbeat(c.Context(), in.ServerID); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ack"})
	})

	r.Post(pathElection, func(c *httpkit.Ctx) error {
		var in electionReq
		if err := c.Bind(&in, 1<<10); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		if err := n.HandleElection(c.Context(), in.CandidateID); err != nil {
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ack"})
	})

	r.Post(pathCoordinate, func(c *httpkit.Ctx) error {
		var in coordinatorReq
		if err := c.Bind(&in, 1<<24); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		if err := n.HandleCoordinator(c.Context(), in.LeaderID, in.CommitHistory); err != nil {
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ack"})
	})

	r.Post(pathGetCommits, func(c *httpkit.Ctx) error {
		var in getCommitsReq
		if err := c.Bind(&in, 1<<10); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		commits, err := n.HandleGetCommits(c.Context(), in.ServerID, in.LatestCommitID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, getCommitsResp{Commits: commits})
	})
}

func unmarshalRequest(blob string, v *chatproto.Request) error {
	return json.Unmarshal([]byte(blob), v)
}

func marshalResponse(resp chatproto.Response) ([]byte, error) {
	return json.Marshal(resp)
}

package live

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/chatmesh/chatmesh/internal/httpkit"
)

// Authenticator resolves the username a client is allowed to stream
// messages for, typically by validating a session token query parameter.
type Authenticator func(r *http.Request) (username string, err error)

// ErrUnauthenticated is returned by an Authenticator that cannot identify
// the caller.
var ErrUnauthenticated = errors.New("live: unauthenticated")

// Mount registers a GET /live websocket endpoint on r, upgrading and
// streaming pushes from hub for whatever username auth resolves.
func Mount(r *httpkit.Router, hub *Hub, auth Authenticator) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(req *http.Request) bool { return true },
	}

	r.Get("/live", func(c *httpkit.Ctx) error {
		username, err := auth(c.Request())
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
		}

		conn, err := upgrader.Upgrade(c.Writer(), c.Request(), nil)
		if err != nil {
			c.Logger().Warn("live: upgrade failed", slog.Any("error", err))
			return nil
		}

		wsConn := NewConnection(hub, conn, username)
		wsConn.Serve()
		return nil
	})
}

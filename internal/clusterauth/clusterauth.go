// Package clusterauth signs and verifies the JWT every node-to-node RPC
// carries. Nodes share one cluster secret configured out of band; the token
// only asserts "I am server_id N and a member of this cluster", nothing
// more, so verification is a single HS256 check plus an expiry window.
package clusterauth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/chatmesh/chatmesh/internal/httpkit"
)

type claims struct {
	jwt.RegisteredClaims
	ServerID int `json:"server_id"`
}

// Signer issues and verifies cluster RPC tokens for one shared secret.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

// NewSigner builds a Signer. ttl bounds how long a minted token is accepted;
// it only needs to outlive one RPC round trip, so a few seconds is typical.
// A zero ttl means 10 seconds; a negative ttl mints tokens that are already
// expired.
func NewSigner(secret []byte, ttl time.Duration) *Signer {
	if ttl == 0 {
		ttl = 10 * time.Second
	}
	return &Signer{secret: secret, ttl: ttl}
}

// Sign mints a short-lived token asserting the caller is serverID.
func (s *Signer) Sign(serverID int) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		ServerID: serverID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

// Verify parses and validates token, returning the asserted server id.
func (s *Signer) Verify(token string) (int, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("clusterauth: unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return 0, fmt.Errorf("clusterauth: %w", err)
	}
	return c.ServerID, nil
}

type contextKey struct{}

// ServerIDFromContext returns the peer server id a verified RPC was signed
// by, if the request passed through Middleware.
func ServerIDFromContext(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(contextKey{}).(int)
	return id, ok
}

// Middleware rejects any request without a valid bearer token signed by s,
// and stashes the caller's server id in the request context.
func (s *Signer) Middleware() httpkit.Middleware {
	return func(next httpkit.Handler) httpkit.Handler {
		return func(c *httpkit.Ctx) error {
			auth := c.Request().Header.Get("Authorization")
			tok, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || tok == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing cluster token"})
			}
			serverID, err := s.Verify(tok)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid cluster token"})
			}
			ctx := context.WithValue(c.Context(), contextKey{}, serverID)
			*c.Request() = *c.Request().WithContext(ctx)
			return next(c)
		}
	}
}

// AttachHeader signs a token for serverID and sets it as the Authorization
// bearer header on req.
func (s *Signer) AttachHeader(req *http.Request, serverID int) error {
	tok, err := s.Sign(serverID)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return nil
}

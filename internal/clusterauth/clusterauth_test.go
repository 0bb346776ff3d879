package clusterauth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chatmesh/chatmesh/internal/httpkit"
)

func TestSignVerify_RoundTrip(t *testing.T) {
	s := NewSigner([]byte("shh"), time.Minute)
	tok, err := s.Sign(3)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	id, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id != 3 {
		t.Fatalf("id = %d, want 3", id)
	}
}

func TestVerify_WrongSecretRejected(t *testing.T) {
	s1 := NewSigner([]byte("one"), time.Minute)
	s2 := NewSigner([]byte("two"), time.Minute)

	tok, _ := s1.Sign(1)
	if _, err := s2.Verify(tok); err == nil {
		t.Fatal("expected verification to fail with mismatched secret")
	}
}

func TestVerify_ExpiredRejected(t *testing.T) {
	s := NewSigner([]byte("shh"), -time.Second)
	tok, _ := s.Sign(1)
	if _, err := s.Verify(tok); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestMiddleware_RejectsMissingAndInvalid(t *testing.T) {
	s := NewSigner([]byte("shh"), time.Minute)
	r := httpkit.NewRouter()
	r.Use(s.Middleware())
	r.Get("/ping", func(c *httpkit.Ctx) error { return c.Text(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token: status = %d, want 401", rec.Code)
	}
}

func TestMiddleware_AcceptsValidTokenAndStashesServerID(t *testing.T) {
	s := NewSigner([]byte("shh"), time.Minute)
	r := httpkit.NewRouter()
	r.Use(s.Middleware())

	var gotID int
	var gotOK bool
	r.Get("/ping", func(c *httpkit.Ctx) error {
		gotID, gotOK = ServerIDFromContext(c.Context())
		return c.Text(http.StatusOK, "pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if err := s.AttachHeader(req, 7); err != nil {
		t.Fatalf("AttachHeader: %v", err)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !gotOK || gotID != 7 {
		t.Fatalf("ServerIDFromContext = %d, %v, want 7, true", gotID, gotOK)
	}
}

// context.go
package httpkit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"unicode/utf8"
)

// Ctx carries per-request state through a Handler chain.
type Ctx struct {
	w      http.ResponseWriter
	r      *http.Request
	router *Router

	status  int
	wrote   bool
	errAttr error
}

func newCtx(w http.ResponseWriter, r *http.Request, router *Router) *Ctx {
	return &Ctx{w: w, r: r, router: router, status: http.StatusOK}
}

// Request returns the underlying *http.Request.
func (c *Ctx) Request() *http.Request { return c.r }

// Writer returns the underlying http.ResponseWriter.
func (c *Ctx) Writer() http.ResponseWriter { return c.w }

// Response is an alias for Writer, for handlers that reach for the raw
// response writer by its http.Handler-familiar name.
func (c *Ctx) Response() http.ResponseWriter { return c.w }

// Header returns the response header map.
func (c *Ctx) Header() http.Header { return c.w.Header() }

// Context returns the request's context.Context.
func (c *Ctx) Context() context.Context {
	if c.r == nil {
		return context.Background()
	}
	return c.r.Context()
}

// Logger returns the router's logger, or the default logger if unset.
func (c *Ctx) Logger() *slog.Logger {
	if c.router == nil {
		return slog.Default()
	}
	return c.router.Logger()
}

// Status sets the status code to use on the next write.
func (c *Ctx) Status(code int) *Ctx {
	if !c.wrote {
		c.status = code
	}
	return c
}

// StatusCode returns the status that will be (or was) written.
func (c *Ctx) StatusCode() int { return c.status }

func (c *Ctx) writeHeaderOnce() {
	if !c.wrote {
		c.w.WriteHeader(c.status)
		c.wrote = true
	}
}

// Write implements io.Writer, honoring Status().
func (c *Ctx) Write(p []byte) (int, error) {
	c.writeHeaderOnce()
	return c.w.Write(p)
}

// WriteString writes a string body, honoring Status().
func (c *Ctx) WriteString(s string) (int, error) {
	c.writeHeaderOnce()
	return io.WriteString(c.w, s)
}

// Param returns a path value extracted by the ServeMux pattern (e.g. "{id}").
func (c *Ctx) Param(name string) string { return c.r.PathValue(name) }

// Query returns the first value of a query parameter.
func (c *Ctx) Query(name string) string {
	if c.r.URL == nil {
		return ""
	}
	return c.r.URL.Query().Get(name)
}

// QueryValues returns the full parsed query string.
func (c *Ctx) QueryValues() url.Values {
	if c.r.URL == nil {
		return url.Values{}
	}
	return c.r.URL.Query()
}

// Bind decodes a JSON request body into v, rejecting unknown fields and
// trailing data. maxBytes <= 0 means unlimited.
func (c *Ctx) Bind(v any, maxBytes int64) error {
	body := c.r.Body
	if maxBytes > 0 {
		body = http.MaxBytesReader(c.w, body, maxBytes)
	}
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("httpkit: trailing data after JSON body")
	}
	return nil
}

// JSON writes v as a JSON response, setting Content-Type if unset.
func (c *Ctx) JSON(code int, v any) error {
	if c.Header().Get("Content-Type") == "" {
		c.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	c.Status(code)
	c.writeHeaderOnce()
	return json.NewEncoder(c.w).Encode(v)
}

// Text writes a plain-text response. Invalid UTF-8 falls back to
// application/octet-stream rather than lying about the encoding.
func (c *Ctx) Text(code int, s string) error {
	if c.Header().Get("Content-Type") == "" {
		if utf8.ValidString(s) {
			c.Header().Set("Content-Type", "text/plain; charset=utf-8")
		} else {
			c.Header().Set("Content-Type", "application/octet-stream")
		}
	}
	c.Status(code)
	_, err := c.WriteString(s)
	return err
}

// Bytes writes a raw byte response, defaulting to application/octet-stream
// when contentType is empty.
func (c *Ctx) Bytes(code int, p []byte, contentType string) error {
	if c.Header().Get("Content-Type") == "" {
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Header().Set("Content-Type", contentType)
	}
	c.Status(code)
	_, err := c.Write(p)
	return err
}

// NoContent writes an empty 204 response.
func (c *Ctx) NoContent() error {
	c.Status(http.StatusNoContent)
	c.writeHeaderOnce()
	return nil
}

// Redirect writes a redirect response. code == 0 defaults to 302.
func (c *Ctx) Redirect(code int, location string) error {
	if code == 0 {
		code = http.StatusFound
	}
	c.Header().Set("Location", location)
	c.Status(code)
	c.writeHeaderOnce()
	return nil
}

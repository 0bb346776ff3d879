// router.go
package httpkit

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
)

// Handler is a mizu-style request handler: it returns an error instead of
// writing one directly, so a single recovery/error path can render it.
type Handler func(c *Ctx) error

// Middleware wraps a Handler to produce another Handler.
type Middleware func(Handler) Handler

// ErrorHandlerFunc renders an error returned by a Handler (or a recovered
// panic wrapped in *PanicError) onto the response.
type ErrorHandlerFunc func(c *Ctx, err error)

// PanicError wraps a recovered panic value with the stack captured at the
// point of recovery.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Router multiplexes requests by method and path pattern (Go 1.22+
// http.ServeMux patterns) and runs a middleware chain around every match.
type Router struct {
	mux  *http.ServeMux
	base string

	parent *Router
	global []Middleware // only set on the root router
	scoped []Middleware // middleware added via With/Use on this sub-router

	errHandler ErrorHandlerFunc
	log        *slog.Logger
}

// NewRouter creates a root Router with its own http.ServeMux.
func NewRouter() *Router {
	return &Router{
		mux: http.NewServeMux(),
		log: slog.Default(),
	}
}

// Logger returns the router's logger.
func (r *Router) Logger() *slog.Logger {
	root := r.root()
	if root.log == nil {
		return slog.Default()
	}
	return root.log
}

// SetLogger replaces the router's logger. A nil logger is ignored.
func (r *Router) SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	r.root().log = l
}

// ErrorHandler installs a custom error/panic renderer.
func (r *Router) ErrorHandler(fn ErrorHandlerFunc) {
	r.root().errHandler = fn
}

func (r *Router) root() *Router {
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// Use appends middleware that runs for every route registered on this router
// after the call (and, if this is the root, on every sub-router too). Each
// route's chain is fixed when it is registered, so routes registered before
// the call are not wrapped.
func (r *Router) Use(mw ...Middleware) {
	if r.parent == nil {
		r.global = append(r.global, mw...)
		return
	}
	r.scoped = append(r.scoped, mw...)
}

// With returns a sub-router sharing the same mux and base path but with
// additional middleware applied only to routes registered on it.
func (r *Router) With(mw ...Middleware) *Router {
	child := &Router{
		mux:    r.mux,
		base:   r.base,
		parent: r.root(),
	}
	child.scoped = append(append([]Middleware{}, r.scoped...), mw...)
	return child
}

// Prefix returns a sub-router whose routes are registered under base+prefix.
func (r *Router) Prefix(prefix string) *Router {
	child := r.With()
	child.base = joinPath(r.base, prefix)
	return child
}

func (r *Router) fullPath(p string) string {
	return joinPath(r.base, p)
}

func cleanLeading(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}

func joinPath(base, p string) string {
	base = strings.TrimRight(base, "/")
	p = cleanLeading(p)
	if p == "/" {
		if base == "" {
			return "/"
		}
		return base
	}
	if base == "" {
		return p
	}
	return base + p
}

// chain composes the router's middleware (global first, then scoped) around h.
func (r *Router) chain(h Handler) Handler {
	mws := append(append([]Middleware{}, r.root().global...), r.scoped...)
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func (r *Router) register(method, pattern string, h Handler) {
	full := r.fullPath(pattern)
	wrapped := r.chain(h)
	r.mux.HandleFunc(method+" "+full, r.serveOne(wrapped))
}

// serveOne turns a Handler into an http.HandlerFunc with panic recovery and
// error rendering.
func (r *Router) serveOne(h Handler) http.HandlerFunc {
	root := r.root()
	return func(w http.ResponseWriter, req *http.Request) {
		c := newCtx(w, req, root)
		err := func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = &PanicError{Value: rec, Stack: debug.Stack()}
				}
			}()
			return h(c)
		}()
		if err != nil {
			root.renderError(c, err)
		}
	}
}

func (r *Router) renderError(c *Ctx, err error) {
	if r.errHandler != nil {
		r.errHandler(c, err)
		return
	}
	c.errAttr = err
	var pe *PanicError
	if errors.As(err, &pe) {
		r.Logger().Error("panic recovered", slog.Any("error", err))
	}
	http.Error(c.Writer(), http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// Handle mounts a plain http.Handler at pattern for all methods, running the
// router's middleware chain around it. Used to bridge stdlib handlers (like
// HealthzHandler) into the router.
func (r *Router) Handle(pattern string, h http.Handler) {
	full := r.fullPath(pattern)
	wrapped := r.chain(func(c *Ctx) error {
		h.ServeHTTP(c.Writer(), c.Request())
		return nil
	})
	r.mux.Handle(full, r.serveOne(wrapped))
}

// Get registers a GET route.
func (r *Router) Get(pattern string, h Handler) { r.register(http.MethodGet, pattern, h) }

// Post registers a POST route.
func (r *Router) Post(pattern string, h Handler) { r.register(http.MethodPost, pattern, h) }

// Put registers a PUT route.
func (r *Router) Put(pattern string, h Handler) { r.register(http.MethodPut, pattern, h) }

// Delete registers a DELETE route.
func (r *Router) Delete(pattern string, h Handler) { r.register(http.MethodDelete, pattern, h) }

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.root().mux.ServeHTTP(w, req)
}

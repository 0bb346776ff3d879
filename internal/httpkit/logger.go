// logger.go
package httpkit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Mode selects the logger's output format.
type Mode int

const (
	// Auto picks Dev when Output is a terminal and Prod otherwise.
	Auto Mode = iota
	Prod
	Dev
)

// TraceExtractor pulls trace correlation ids out of a request context. An
// empty traceID means the context carries no active trace.
type TraceExtractor func(ctx context.Context) (traceID, spanID string, sampled bool)

// LoggerOptions configures the Logger middleware.
type LoggerOptions struct {
	Mode   Mode
	Output io.Writer

	// Logger, if set, is used verbatim instead of one built from Mode/Output.
	Logger *slog.Logger

	// Color forces ANSI coloring on or off in Dev mode. Unset defers to
	// supportsColorEnv().
	Color *bool

	UserAgent bool

	RequestIDHeader string
	RequestIDGen    func() string

	TraceExtractor TraceExtractor
}

type requestIDKey struct{}

// RequestIDFromContext returns the request id stashed by Logger, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(requestIDKey{}).(string)
	return v, ok
}

// Logger returns a Middleware that logs one line per request: Info level for
// statuses below 400, Warn for 4xx, and Error for 5xx or when the handler
// returned an error or a panic was recovered.
func Logger(opts LoggerOptions) Middleware {
	if opts.RequestIDHeader == "" {
		opts.RequestIDHeader = "X-Request-Id"
	}
	if opts.RequestIDGen == nil {
		opts.RequestIDGen = defaultRequestID
	}

	base := opts.Logger
	if base == nil {
		base = buildLogger(opts)
	}

	return func(next Handler) Handler {
		return func(c *Ctx) error {
			start := time.Now()

			reqID := c.Request().Header.Get(opts.RequestIDHeader)
			if reqID == "" {
				reqID = opts.RequestIDGen()
			}
			c.Header().Set(opts.RequestIDHeader, reqID)
			ctx := context.WithValue(c.Request().Context(), requestIDKey{}, reqID)
			*c.r = *c.r.WithContext(ctx)

			err := next(c)

			dur := time.Since(start)
			lvl := levelFor(c.StatusCode(), err)

			attrs := []any{
				slog.Int("status", c.StatusCode()),
				slog.String("method", c.Request().Method),
				slog.String("path", c.Request().URL.Path),
				slog.String("host", c.Request().Host),
				slog.String("request_id", reqID),
				slog.Duration("latency", dur),
			}
			if q := c.Request().URL.RawQuery; q != "" {
				attrs = append(attrs, slog.String("query", q))
			}
			if opts.UserAgent {
				attrs = append(attrs, slog.String("user_agent", c.Request().UserAgent()))
			}
			if opts.TraceExtractor != nil {
				if traceID, spanID, sampled := opts.TraceExtractor(c.Context()); traceID != "" {
					attrs = append(attrs,
						slog.String("trace_id", traceID),
						slog.String("span_id", spanID),
						slog.Bool("trace_sampled", sampled),
					)
				}
			}

			var pe *PanicError
			switch {
			case asPanicError(err, &pe):
				attrs = append(attrs, slog.String("error", err.Error()), slog.String("panic_value", fmt.Sprint(pe.Value)))
			case err != nil:
				attrs = append(attrs, slog.String("error", err.Error()))
			}

			base.Log(ctx, lvl, "request", attrs...)

			return err
		}
	}
}

func asPanicError(err error, target **PanicError) bool {
	if err == nil {
		return false
	}
	if pe, ok := err.(*PanicError); ok {
		*target = pe
		return true
	}
	return false
}

func levelFor(status int, err error) slog.Level {
	var pe *PanicError
	if asPanicError(err, &pe) {
		return slog.LevelError
	}
	switch {
	case status >= 500 || err != nil:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// humanDuration renders d the way Dev-mode logging does: nanoseconds,
// microseconds, milliseconds or seconds, whichever reads most naturally.
func humanDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

func attrInt(a slog.Attr) (int, bool) {
	v := a.Value
	switch v.Kind() {
	case slog.KindInt64:
		return int(v.Int64()), true
	case slog.KindUint64:
		return int(v.Uint64()), true
	case slog.KindFloat64:
		return int(v.Float64()), true
	default:
		return 0, false
	}
}

var requestIDCounter uint64
var requestIDMu sync.Mutex

func defaultRequestID() string {
	requestIDMu.Lock()
	requestIDCounter++
	n := requestIDCounter
	requestIDMu.Unlock()
	return fmt.Sprintf("req_%d_%d", time.Now().UnixNano(), n)
}

func buildLogger(opts LoggerOptions) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	mode := opts.Mode
	if mode == Auto {
		if isTerminal(out) {
			mode = Dev
		} else {
			mode = Prod
		}
	}

	if mode == Prod {
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	h := newColorTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug})
	if opts.Color != nil {
		h.color = *opts.Color
	}
	return slog.New(h)
}

func supportsColorEnv() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	if runtime.GOOS == "windows" {
		return false
	}
	if os.Getenv("TERM") == "dumb" || os.Getenv("TERM") == "" {
		return false
	}
	return true
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// colorTextHandler is a minimal slog.Handler producing one human-readable
// line per record, colorized with ANSI codes when color is enabled.
type colorTextHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Level
	color  bool
	attrs  []slog.Attr
	groups []string
}

func newColorTextHandler(w io.Writer, opts *slog.HandlerOptions) *colorTextHandler {
	level := slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level.Level()
	}
	return &colorTextHandler{mu: &sync.Mutex{}, w: w, level: level, color: supportsColorEnv()}
}

func (h *colorTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	n := &colorTextHandler{mu: h.mu, w: h.w, level: h.level, color: h.color}
	n.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	n.groups = h.groups
	return n
}

func (h *colorTextHandler) WithGroup(name string) slog.Handler {
	n := &colorTextHandler{mu: h.mu, w: h.w, level: h.level, color: h.color}
	n.attrs = h.attrs
	n.groups = append(append([]string{}, h.groups...), name)
	return n
}

func (h *colorTextHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	levelStr, levelColor := levelLabel(r.Level)
	b.WriteString(h.paint(levelColor, levelStr))
	b.WriteByte(' ')
	b.WriteString(r.Time.Format("15:04:05.000"))
	b.WriteByte(' ')
	b.WriteString(h.paint("1;37", r.Message))

	writeAttr := func(a slog.Attr) {
		if a.Equal(slog.Attr{}) {
			return
		}
		key := a.Key
		for _, g := range h.groups {
			key = g + "." + key
		}
		val := a.Value
		if val.Kind() == slog.KindDuration && strings.Contains(a.Key, "latency") {
			b.WriteByte(' ')
			b.WriteString(h.paint("2;37", fmt.Sprintf("%s=", key)))
			b.WriteString(humanDuration(val.Duration()))
			b.WriteByte(' ')
			b.WriteString(h.paint("2;37", fmt.Sprintf("%s_human=", key)))
			b.WriteString(humanDuration(val.Duration()))
			return
		}
		b.WriteByte(' ')
		b.WriteString(h.paint("2;37", fmt.Sprintf("%s=", key)))
		b.WriteString(formatValue(val))
	}

	for _, a := range h.attrs {
		writeAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(a)
		return true
	})

	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *colorTextHandler) paint(code, s string) string {
	if !h.color {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}

func levelLabel(l slog.Level) (string, string) {
	switch {
	case l >= slog.LevelError:
		return "ERRO", "1;31"
	case l >= slog.LevelWarn:
		return "WARN", "1;33"
	case l >= slog.LevelInfo:
		return "INFO", "1;36"
	default:
		return "DBUG", "1;30"
	}
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if strings.ContainsAny(s, " \t\"") {
			return strconv.Quote(s)
		}
		return s
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	default:
		return fmt.Sprint(v.Any())
	}
}

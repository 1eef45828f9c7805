package httptransport

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"labyrinth-server/internal/logging"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"
)

// APILogMiddleware writes one JSON line per request to the shared log sink.
// Session routes also carry the session id so a session's traffic can be
// grepped out of the log.
func APILogMiddleware() func(http.Handler) http.Handler {
	return httplog.RequestLogger(
		slog.New(slog.NewJSONHandler(logging.Writer(), &slog.HandlerOptions{})),
		&httplog.Options{
			Level:              slog.LevelInfo,
			Schema:             httplog.Schema{ResponseStatus: "status", ResponseDuration: "duration_ms"},
			LogRequestBody:     func(*http.Request) bool { return false },
			LogResponseBody:    func(*http.Request) bool { return false },
			LogRequestHeaders:  []string{},
			LogResponseHeaders: []string{},
			LogExtraAttrs: func(req *http.Request, _ string, _ int) []slog.Attr {
				attrs := []slog.Attr{
					slog.String("request_id", chimw.GetReqID(req.Context())),
					slog.String("method", req.Method),
					slog.String("route", routePattern(req)),
				}
				if sid := chi.URLParam(req, "session_id"); sid != "" {
					attrs = append(attrs, slog.String("session_id", sid))
				}
				return attrs
			},
		},
	)
}

func routePattern(req *http.Request) string {
	if rc := chi.RouteContext(req.Context()); rc != nil && rc.RoutePattern() != "" {
		return rc.RoutePattern()
	}
	return req.URL.Path
}

// BodyCaptureMiddleware attaches up to maxCaptureBytes of the request and
// response bodies to the request log. Event streams pass through untouched.
func BodyCaptureMiddleware(maxCaptureBytes int) func(http.Handler) http.Handler {
	if maxCaptureBytes <= 0 {
		maxCaptureBytes = 4096
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSSERequest(r) {
				next.ServeHTTP(w, r)
				return
			}
			reqBody, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(reqBody))

			cw := &captureWriter{ResponseWriter: w, limit: maxCaptureBytes}
			next.ServeHTTP(cw, r)

			reqLog, reqCut := clip(reqBody, maxCaptureBytes)
			httplog.SetAttrs(r.Context(),
				slog.Any("request_body", parseMaybeJSON(reqLog)),
				slog.Any("response_body", parseMaybeJSON(cw.body.Bytes())),
				slog.Bool("request_body_truncated", reqCut),
				slog.Bool("response_body_truncated", cw.truncated),
			)
		})
	}
}

func clip(b []byte, n int) ([]byte, bool) {
	if len(b) > n {
		return b[:n], true
	}
	return b, false
}

type captureWriter struct {
	http.ResponseWriter
	body      bytes.Buffer
	limit     int
	truncated bool
}

func (c *captureWriter) Write(p []byte) (int, error) {
	if room := c.limit - c.body.Len(); room > 0 {
		kept, cut := clip(p, room)
		_, _ = c.body.Write(kept)
		c.truncated = c.truncated || cut
	} else if len(p) > 0 {
		c.truncated = true
	}
	return c.ResponseWriter.Write(p)
}

func (c *captureWriter) Flush() {
	if f, ok := c.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func parseMaybeJSON(b []byte) any {
	if len(b) == 0 {
		return ""
	}
	var out any
	if err := json.Unmarshal(b, &out); err == nil {
		return out
	}
	return string(b)
}

func isSSERequest(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		return true
	}
	path := r.URL.Path
	return strings.HasPrefix(path, "/api/sessions/") && strings.HasSuffix(path, "/events")
}

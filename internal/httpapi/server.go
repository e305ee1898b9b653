package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/HrushiBorhade/pingme/internal/calls"
	"github.com/HrushiBorhade/pingme/internal/config"
	"github.com/HrushiBorhade/pingme/internal/notify"
	"github.com/HrushiBorhade/pingme/internal/session"
	"github.com/HrushiBorhade/pingme/internal/state"
	"github.com/HrushiBorhade/pingme/internal/tmux"
	"github.com/HrushiBorhade/pingme/pkg/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// limitBody wraps r.Body with http.MaxBytesReader so handlers cannot read more than maxBytes.
// Call this for requests that have a body (e.g. POST, PUT, PATCH) before decoding JSON.
func limitBody(w http.ResponseWriter, r *http.Request, maxBytes int64) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
}

// bodyLimitMiddleware limits request body size for POST, PUT, PATCH to prevent OOM.
func bodyLimitMiddleware(maxBytes int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			limitBody(w, r, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// Deliverer types text into a session's terminal.
type Deliverer interface {
	Deliver(ctx context.Context, s *models.Session, text string) error
	Interrupt(ctx context.Context, s *models.Session) error
}

// ServerOptions configures the HTTP server.
type ServerOptions struct {
	Addr     string
	Token    string // if set, require Authorization: Bearer or X-API-Key
	Shared   *state.Shared
	Registry *session.Registry
	Calls    *calls.Orchestrator
	Tmux     Deliverer
	Notifier notify.Notifier
	Policy   config.Policy
	// Hub is created when nil; pass one in to publish from outside the server.
	Hub            *SSEHub
	MetricsHandler http.Handler // if set, served at /metrics (OTel Prometheus handler)
	UseOtelHTTP    bool         // if true, wrap handler with otelhttp for request metrics
	Now            func() time.Time
}

// App holds the HTTP server, SSE hub and the daemon components the handlers drive.
type App struct {
	Server *http.Server
	Hub    *SSEHub

	shared    *state.Shared
	registry  *session.Registry
	calls     *calls.Orchestrator
	tmux      Deliverer
	notifier  notify.Notifier
	policy    config.Policy
	now       func() time.Time
	startedAt time.Time

	wg sync.WaitGroup // background deliveries, calls and notifications
}

// NewApp creates the HTTP app and registers all routes.
func NewApp(opts ServerOptions) *App {
	a := &App{
		Hub:      opts.Hub,
		shared:   opts.Shared,
		registry: opts.Registry,
		calls:    opts.Calls,
		tmux:     opts.Tmux,
		notifier: opts.Notifier,
		policy:   opts.Policy,
		now:      opts.Now,
	}
	if a.Hub == nil {
		a.Hub = NewSSEHub()
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.registry == nil {
		a.registry = session.NewRegistry().WithClock(a.now)
	}
	if a.notifier == nil {
		a.notifier = notify.Log{}
	}
	if a.tmux == nil {
		a.tmux = tmux.New()
	}
	a.startedAt = a.now()

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"status": "ok"})
	})
	if opts.MetricsHandler != nil {
		mux.Handle("/metrics", opts.MetricsHandler)
	}
	mux.HandleFunc("/stream", a.Hub.Handler())

	mux.HandleFunc("/hooks/event", post(a.handleHookEvent))
	mux.HandleFunc("/sessions", get(a.handleSessions))
	mux.HandleFunc("/sessions/", post(a.handleRename))
	mux.HandleFunc("/route", post(a.handleRoute))
	mux.HandleFunc("/action", post(a.handleAction))
	mux.HandleFunc("/webhooks/bolna", post(a.handleBolnaWebhook))
	mux.HandleFunc("/status", get(a.handleStatus))
	mux.HandleFunc("/call", post(a.handleCall))
	mux.HandleFunc("/call/briefing", get(a.handleBriefing))

	var handler http.Handler = mux
	handler = bodyLimitMiddleware(models.DefaultMaxRequestBodyBytes, handler)
	if opts.Token != "" {
		handler = tokenMiddleware(opts.Token, handler)
	} else {
		slog.Warn("daemon_token is empty; HTTP API is unauthenticated")
	}
	handler = requestLogMiddleware(handler)
	if opts.UseOtelHTTP {
		handler = otelhttp.NewHandler(handler, "pingme")
	}
	a.Server = &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: /stream stays open.
	}
	return a
}

// Handler returns the root handler with middlewares applied.
func (a *App) Handler() http.Handler {
	return a.Server.Handler
}

// Wait blocks until background work started by handlers has finished.
func (a *App) Wait() {
	a.wg.Wait()
}

func (a *App) background(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

func post(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h(w, r)
	}
}

func get(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h(w, r)
	}
}

// responseRecorder captures status code for logging and forwards Flusher if supported.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// publicPaths skip token auth. The provider cannot send our token, so its
// webhook relies on execution id matching instead.
var publicPaths = map[string]bool{
	"/health":         true,
	"/metrics":        true,
	"/webhooks/bolna": true,
}

func tokenMiddleware(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("X-API-Key")
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			key = strings.TrimPrefix(auth, "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(token)) != 1 {
			writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		slog.Info("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeJSONError sends a JSON body {"error": "message"} with the given status code.
func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": message})
}

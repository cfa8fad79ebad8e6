package live

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weft-dev/weft/pkg/weft"
)

// Config configures the gateway.
type Config struct {
	// Logger for gateway and session events. Default: slog.Default.
	Logger *slog.Logger

	// HeartbeatInterval is how often the server pings idle sessions.
	HeartbeatInterval time.Duration

	// ReadTimeout bounds the wait for any inbound frame. Must exceed
	// HeartbeatInterval or healthy idle sessions get dropped.
	ReadTimeout time.Duration

	// WriteTimeout bounds each outbound write.
	WriteTimeout time.Duration

	// SendBuffer is the per-session outbound frame buffer. A session that
	// lets it fill is closed as a slow consumer.
	SendBuffer int

	// CheckOrigin validates WebSocket upgrade origins. Default accepts
	// all origins; front it with a proxy or set a real check in
	// production.
	CheckOrigin func(*http.Request) bool

	// MetricsOptions configure the Prometheus metrics.
	MetricsOptions []MetricsOption

	// TraceOptions configure write tracing.
	TraceOptions []TraceOption
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 30 * time.Second,
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      10 * time.Second,
		SendBuffer:        64,
		CheckOrigin:       func(*http.Request) bool { return true },
	}
}

// Gateway serves a registry's signals over WebSocket and plain HTTP.
type Gateway struct {
	reg      *weft.Registry
	config   Config
	logger   *slog.Logger
	metrics  *Metrics
	tracing  TraceConfig
	upgrader websocket.Upgrader

	mu        sync.Mutex
	sessions  map[uint64]*Session
	nextID    atomic.Uint64
	accepting atomic.Bool
}

// New creates a gateway over reg. Zero-value config fields get defaults.
func New(reg *weft.Registry, config Config) *Gateway {
	defaults := DefaultConfig()
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.HeartbeatInterval == 0 {
		config.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.SendBuffer == 0 {
		config.SendBuffer = defaults.SendBuffer
	}
	if config.CheckOrigin == nil {
		config.CheckOrigin = defaults.CheckOrigin
	}

	g := &Gateway{
		reg:     reg,
		config:  config,
		logger:  config.Logger.With("component", "live"),
		metrics: NewMetrics(config.MetricsOptions...),
		tracing: newTraceConfig(config.TraceOptions...),
		upgrader: websocket.Upgrader{
			CheckOrigin: config.CheckOrigin,
		},
		sessions: make(map[uint64]*Session),
	}
	g.accepting.Store(true)
	return g
}

// Router returns the gateway's HTTP routes:
//
//	GET /ws             WebSocket endpoint
//	GET /healthz        liveness probe
//	GET /metrics        Prometheus exposition
//	GET /signals        all signals with current values
//	GET /signals/{name} one signal's current value
//	PUT /signals/{name} write one signal
func (g *Gateway) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/ws", g.handleWS)
	r.Get("/healthz", g.handleHealthz)
	r.Get("/metrics", g.metricsHandler().ServeHTTP)
	r.Get("/signals", g.handleListSignals)
	r.Get("/signals/{name}", g.handleGetSignal)
	r.Put("/signals/{name}", g.handleSetSignal)

	return r
}

// SessionCount returns the number of open sessions.
func (g *Gateway) SessionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

// Shutdown stops accepting new sessions and closes the open ones.
func (g *Gateway) Shutdown() {
	g.accepting.Store(false)

	g.mu.Lock()
	open := make([]*Session, 0, len(g.sessions))
	for _, s := range g.sessions {
		open = append(open, s)
	}
	g.mu.Unlock()

	for _, s := range open {
		s.Close()
	}
}

func (g *Gateway) metricsHandler() http.Handler {
	// A custom registry that can also gather serves its own metrics; the
	// default registerer falls back to the default gatherer.
	if gatherer, ok := g.metricsRegistry().(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

func (g *Gateway) metricsRegistry() prometheus.Registerer {
	config := defaultMetricsConfig()
	for _, opt := range g.config.MetricsOptions {
		opt(&config)
	}
	return config.Registry
}

func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	if !g.accepting.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("upgrade failed", "error", err)
		return
	}

	s := newSession(g.nextID.Add(1), g, conn)
	g.addSession(s)
	s.Start()
}

func (g *Gateway) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (g *Gateway) handleListSignals(w http.ResponseWriter, _ *http.Request) {
	values := make(map[string]json.RawMessage)
	for _, name := range g.reg.Names() {
		sig, ok := g.reg.Lookup(name)
		if !ok {
			continue
		}
		data, err := sig.GetJSON()
		if err != nil {
			g.logger.Error("encode signal", "name", name, "error", err)
			continue
		}
		values[name] = data
	}
	writeJSON(w, http.StatusOK, values)
}

func (g *Gateway) handleGetSignal(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	sig, ok := g.reg.Lookup(name)
	if !ok {
		http.Error(w, "unknown signal", http.StatusNotFound)
		return
	}

	data, err := sig.GetJSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (g *Gateway) handleSetSignal(w http.ResponseWriter, r *http.Request) {
	defer weft.ReleaseTracking()

	name := chi.URLParam(r, "name")
	sig, ok := g.reg.Lookup(name)
	if !ok {
		http.Error(w, "unknown signal", http.StatusNotFound)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, MaxPayloadSize+1))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(payload) > MaxPayloadSize {
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return
	}

	if err := g.applyWrite(r.Context(), "http", name, sig, payload); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// applyWrite pushes payload into sig under a span and the apply histogram.
// The write returns after the engine's synchronous propagation, so the
// observed duration covers every subscriber notified by it.
func (g *Gateway) applyWrite(ctx context.Context, origin, name string, sig weft.AnySignal, payload []byte) error {
	start := time.Now()
	err := g.tracing.traceApply(ctx, origin, name, payload, func() error {
		return sig.SetJSON(payload)
	})
	if err != nil {
		g.metrics.applyErrors.Inc()
		return err
	}
	g.metrics.applyDuration.Observe(time.Since(start).Seconds())
	return nil
}

func (g *Gateway) addSession(s *Session) {
	g.mu.Lock()
	g.sessions[s.id] = s
	g.mu.Unlock()
	g.metrics.activeSessions.Inc()
	g.logger.Info("session opened", "session_id", s.id)
}

func (g *Gateway) removeSession(s *Session) {
	g.mu.Lock()
	_, present := g.sessions[s.id]
	delete(g.sessions, s.id)
	g.mu.Unlock()

	if present {
		g.metrics.activeSessions.Dec()
		g.logger.Info("session closed", "session_id", s.id)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

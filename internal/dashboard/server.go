package dashboard

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"gridbot/internal/core"
	"gridbot/internal/orchestrator"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

var (
	activeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gridbot_dashboard_active_connections",
		Help: "Current number of connected dashboard WebSocket clients",
	})
	rejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gridbot_dashboard_rejected_total",
		Help: "Total dashboard connections rejected, by reason",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(activeConnections, rejectedTotal)
}

// Source is the read-only view the dashboard pushes to clients. The
// Orchestrator satisfies it.
type Source interface {
	Snapshot() orchestrator.Snapshot
}

// Config configures the push server's network and throttling behavior.
type Config struct {
	Addr           string
	AllowedOrigins []string      // "*" permitted outside Production
	PushInterval   time.Duration // defaults to 2s
	RateLimit      float64       // connections/sec per IP, defaults to 5
	RateBurst      int           // defaults to 10
	Production     bool
}

// Server serves the dashboard's WebSocket snapshot push channel plus a
// Prometheus /metrics endpoint and a one-shot JSON /snapshot endpoint.
type Server struct {
	cfg    Config
	source Source
	hub    *hub
	logger core.ILogger

	srv      *http.Server
	upgrader websocket.Upgrader

	ipLimiters sync.Map // ip -> *rate.Limiter
	mu         sync.Mutex
}

// New builds a Server. Call Start to begin serving and pushing.
func New(cfg Config, source Source, logger core.ILogger) *Server {
	if cfg.PushInterval <= 0 {
		cfg.PushInterval = 2 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 10
	}
	s := &Server{
		cfg:    cfg,
		source: source,
		hub:    newHub(logger),
		logger: logger.WithField("component", "dashboard"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Start runs the hub, the periodic snapshot pusher, and the HTTP server
// until ctx is cancelled, then shuts the HTTP server down gracefully.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.run(ctx)
	go s.pushLoop(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	mux.Handle("/metrics", promhttp.Handler())

	s.mu.Lock()
	s.srv = &http.Server{Addr: s.cfg.Addr, Handler: mux}
	s.mu.Unlock()

	s.logger.Info("dashboard listening", "addr", s.cfg.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) pushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.hub.ClientCount() == 0 {
				continue
			}
			s.hub.Broadcast(newSnapshotMessage(s.source.Snapshot()))
		}
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return !s.cfg.Production
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	originStr := parsed.Scheme + "://" + parsed.Host
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" {
			if s.cfg.Production {
				continue
			}
			return true
		}
		if originStr == allowed {
			return true
		}
	}
	rejectedTotal.WithLabelValues("invalid_origin").Inc()
	return false
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := remoteIP(r)
	if !s.limiterFor(ip).Allow() {
		rejectedTotal.WithLabelValues("rate_limit").Inc()
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := newClient(uuid.New().String())
	s.hub.register <- c
	activeConnections.Inc()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.writePump(conn, c) }()
	go func() { defer wg.Done(); s.readPump(conn, c) }()
	wg.Wait()

	s.hub.unregister <- c
	conn.Close()
	activeConnections.Dec()
}

func (s *Server) writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) readPump(conn *websocket.Conn, c *client) {
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return // dashboard is push-only; any read error ends the connection
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.source.Snapshot())
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) limiterFor(ip string) *rate.Limiter {
	if v, ok := s.ipLimiters.Load(ip); ok {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateBurst)
	actual, _ := s.ipLimiters.LoadOrStore(ip, limiter)
	return actual.(*rate.Limiter)
}

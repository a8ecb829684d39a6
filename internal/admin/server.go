// Package admin serves the HTTP surface of a running listener: health and
// readiness probes, Prometheus metrics, people snapshots, receiver control
// and the websocket event stream.
package admin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/tspsctl/internal/auth"
	"github.com/danmuck/tspsctl/internal/observability"
	"github.com/danmuck/tspsctl/internal/registry"
	"github.com/danmuck/tspsctl/internal/tsps"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	version         = "0.1.0"
	shutdownTimeout = 5 * time.Second
	reconnectBudget = 10 * time.Second
)

// Backend is the read side of a tsps.Service plus receiver control.
type Backend interface {
	Status() tsps.Status
	Snapshot() *tsps.Snapshot
	Person(id int) (registry.Person, bool)
	IsConnected() bool
	Reconnect(ctx context.Context) error
}

var _ Backend = (*tsps.Service)(nil)

type Config struct {
	Name        string
	Addr        string
	CORSOrigins []string
	// Token guards POST routes when set.
	Token string
	// TrustedProxies defaults to loopback.
	TrustedProxies []string
}

type Server struct {
	cfg     Config
	backend Backend
	stream  http.Handler
	router  *gin.Engine
	started time.Time
}

// New builds the router. stream may be nil, in which case /stream is not
// registered.
func New(cfg Config, backend Backend, stream http.Handler) *Server {
	if cfg.Name == "" {
		cfg.Name = "tspsctl"
	}
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger, "/metrics", "/stream", "/health"))
	r.Use(observability.RequestMetricsMiddleware(cfg.Name))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CORSOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	if err := r.SetTrustedProxies(normalizeProxies(cfg.TrustedProxies)); err != nil {
		log.Warn().Err(err).Strs("proxies", cfg.TrustedProxies).Msg("admin.New trusted proxies not applied")
	}

	s := &Server{
		cfg:     cfg,
		backend: backend,
		stream:  stream,
		router:  r,
		started: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"service": s.cfg.Name,
			"version": version,
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		ready := s.backend.IsConnected()
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"ready":   ready,
			"uptime":  time.Since(s.started).String(),
			"service": s.cfg.Name,
			"version": version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.backend.Status())
	})

	s.router.GET("/people", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.backend.Snapshot())
	})

	s.router.GET("/people/:id", func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid person id"})
			return
		}
		p, ok := s.backend.Person(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
			return
		}
		c.JSON(http.StatusOK, p)
	})

	var guard auth.Validator
	if s.cfg.Token != "" {
		guard = auth.StaticToken{Token: s.cfg.Token}
	}
	s.router.POST("/receiver/reconnect", auth.Require(guard), func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), reconnectBudget)
		defer cancel()
		if err := s.backend.Reconnect(ctx); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "receiver": s.backend.Status().Receiver})
	})

	if s.stream != nil {
		s.router.GET("/stream", gin.WrapH(s.stream))
	}
}

// Serve listens on cfg.Addr until ctx is done. It has the tsps.Sidecar
// signature so the service can run it next to the dispatch loop.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.serveListener(ctx, ln)
}

func (s *Server) serveListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("admin.Server.serve listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("admin.Server.serve shutdown")
		return err
	}
	log.Info().Msg("admin.Server.serve stopped")
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}

func normalizeProxies(proxies []string) []string {
	if len(proxies) == 0 {
		return []string{"127.0.0.1", "::1"}
	}
	return proxies
}

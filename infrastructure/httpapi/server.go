// Package httpapi exposes the judging services over HTTP/JSON with gin. It
// owns the edge concerns: bearer-token authentication, per-client rate
// limiting, CORS, request metrics and the live judging websocket feed.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/Webtech-MQP/webjam-sub000/internal/application"
	"github.com/Webtech-MQP/webjam-sub000/internal/ports"
)

// Config configures the HTTP edge.
type Config struct {
	// GinMode is passed to gin.SetMode; empty keeps gin's default.
	GinMode string
	// RatePerSecond and RateBurst bound requests per client IP. A zero rate
	// disables limiting.
	RatePerSecond float64
	RateBurst     int
	// AllowedOrigins lists CORS and websocket origins.
	AllowedOrigins []string
	// JWTSecret verifies HS256 bearer tokens.
	JWTSecret string
	// Issuer, when set, must match the iss claim.
	Issuer string
}

// Services are the application services routed by the API.
type Services struct {
	Judging   *application.JudgingService
	Criteria  *application.CriteriaService
	Ranking   *application.RankingService
	Lifecycle *application.LifecycleService
}

// Deps are the collaborators of a Server. Services and Hub are required.
type Deps struct {
	Services Services
	Hub      *LiveHub
	Metrics  ports.MetricsCollector
	// Gatherer backs GET /metrics; nil leaves the route unregistered.
	Gatherer prometheus.Gatherer
	// Health reports backend liveness for GET /healthz.
	Health func(ctx context.Context) error
	Logger *slog.Logger
}

// Server is the HTTP front of the judging core.
type Server struct {
	engine  *gin.Engine
	handler http.Handler
	logger  *slog.Logger
}

// NewServer builds the router and wraps it in CORS handling.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Services.Judging == nil || deps.Services.Criteria == nil ||
		deps.Services.Ranking == nil || deps.Services.Lifecycle == nil {
		return nil, errors.New("all judging services are required")
	}
	if deps.Hub == nil {
		return nil, errors.New("live hub is required")
	}
	auth, err := NewAuthenticator(cfg.JWTSecret, cfg.Issuer)
	if err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = discardMetrics{}
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestID(), requestMetrics(deps.Metrics), requestLogger(deps.Logger))

	engine.GET("/healthz", healthz(deps.Health))
	if deps.Gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	h := &handlers{
		svc:      deps.Services,
		hub:      deps.Hub,
		upgrader: newUpgrader(cfg.AllowedOrigins),
		logger:   deps.Logger,
	}

	v1 := engine.Group("/api/v1")
	if cfg.RatePerSecond > 0 {
		v1.Use(rateLimit(newIPLimiter(cfg.RatePerSecond, cfg.RateBurst), deps.Metrics))
	}
	v1.Use(auth.Middleware())
	h.register(v1)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", headerRequestID},
		AllowCredentials: len(cfg.AllowedOrigins) > 0,
	})
	return &Server{engine: engine, handler: c.Handler(engine), logger: deps.Logger}, nil
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Run serves on addr until ctx is cancelled, then shuts down gracefully
// within shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func healthz(check func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			if err := check(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

type discardMetrics struct{}

func (discardMetrics) RecordLatency(string, time.Duration, map[string]string) {}
func (discardMetrics) RecordCounter(string, float64, map[string]string)       {}
func (discardMetrics) RecordGauge(string, float64, map[string]string)         {}
func (discardMetrics) RecordHistogram(string, float64, map[string]string)     {}

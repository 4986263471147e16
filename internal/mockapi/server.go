package mockapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arcreactor/workspace/internal/chat"
	"github.com/arcreactor/workspace/internal/infrastructure/config"
	"github.com/arcreactor/workspace/internal/infrastructure/monitoring"
	"github.com/arcreactor/workspace/internal/infrastructure/tracing"
)

const defaultEventTimeout = 10 * time.Minute

// Server is the mock backend.
type Server struct {
	cfg          *config.Config
	logger       *zap.Logger
	metrics      *monitoring.Metrics
	fixtures     *Fixtures
	chat         *chatHandler
	router       *gin.Engine
	eventTimeout time.Duration
}

// New builds the router. Metrics register on reg and are served at
// /metrics.
func New(cfg *config.Config, logger *zap.Logger, reg *prometheus.Registry) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Server.EventPoll <= 0 {
		cfg.Server.EventPoll = 2 * time.Second
	}

	metrics := monitoring.NewMetrics(reg)
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		fixtures: NewFixtures(),
		chat: &chatHandler{
			script:  DefaultScript,
			logger:  logger.Named("chat"),
			metrics: metrics,
		},
		eventTimeout: defaultEventTimeout,
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracing.New("mockapi", logger.Named("http"))))
	router.Use(monitoring.Middleware(metrics))
	router.Use(CORS(DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(RateLimit(RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	router.GET("/health", s.Health)
	router.GET("/ready", s.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	router.GET(chat.DefaultPath, s.chat.handleConnection)

	rest := router.Group("/api", RequireToken(cfg.Server.Token))
	rest.GET("/runs", s.ListRuns)
	rest.POST("/runs", s.CreateRun)
	rest.GET("/runs/:id", s.GetRun)
	rest.POST("/runs/:id/cancel", s.CancelRun)
	rest.POST("/runs/:id/recover", s.RecoverRun)
	rest.GET("/runs/:id/tasks", s.ListTasks)
	rest.GET("/runs/:id/tasks/summary", s.TaskSummary)
	rest.GET("/runs/:id/events", s.RunEvents)
	rest.GET("/pipelines", s.ListPipelines)
	rest.GET("/pipelines/*name", s.GetPipeline)

	s.router = router
	return s
}

// WithScript replaces the chat agent script.
func (s *Server) WithScript(script Script) *Server {
	s.chat.script = script
	return s
}

// WithChunkSize re-cuts each chat reply into socket messages of n bytes,
// splitting lines across messages.
func (s *Server) WithChunkSize(n int) *Server {
	s.chat.chunkSize = n
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Fixtures exposes the in-memory data.
func (s *Server) Fixtures() *Fixtures {
	return s.fixtures
}

// Metrics exposes the server metrics.
func (s *Server) Metrics() *monitoring.Metrics {
	return s.metrics
}

// Run serves until ctx ends, then shuts down gracefully. Active fixture
// runs advance every cfg.Server.Progress.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.Server.Host, s.cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.cfg.Server.Progress > 0 {
		go s.progress(ctx, s.cfg.Server.Progress)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("mock backend listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) progress(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fixtures.Advance()
		}
	}
}

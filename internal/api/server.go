package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"gotriangle/app"
	"gotriangle/internal"
	"gotriangle/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const requestIDHeader = "X-Request-ID"

// Server exposes triangle analysis over HTTP
type Server struct {
	router   *gin.Engine
	config   *config.Config
	service  *app.AnalysisService
	metrics  *Metrics
	registry *prometheus.Registry
	logger   *internal.Logger
}

// NewServer wires routes, metrics and the analysis service
func NewServer(cfg *config.Config, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	gin.SetMode(cfg.Server.GinMode)

	registry := prometheus.NewRegistry()
	s := &Server{
		router:   gin.New(),
		config:   cfg,
		service:  app.NewAnalysisService(cfg.Analysis, logger),
		metrics:  NewMetrics(registry),
		registry: registry,
		logger:   logger,
	}
	s.router.Use(gin.Recovery(), s.requestID())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := s.router.Group("/api/v1")
	v1.POST("/analyze", s.handleAnalyzePath)
	v1.POST("/analyze/upload", s.handleAnalyzeUpload)
}

// requestID tags every request with an id, reusing the caller's if present
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// Handler returns the HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.config.Server.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

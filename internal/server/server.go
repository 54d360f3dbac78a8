// Package server exposes a Publisher over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kart-io/notifykit/pkg/logger"
	"github.com/kart-io/notifykit/pkg/notify"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.log = logger.OrDiscard(l) }
}

// WithGatherer serves /metrics from g.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithTimeout bounds each dispatch triggered by a request.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// WithConcurrentDefault sets the dispatch mode used when a request does not
// choose one.
func WithConcurrentDefault(concurrent bool) Option {
	return func(s *Server) { s.concurrent = concurrent }
}

// WithHTTPTimeouts sets the read, write and shutdown timeouts of Run.
func WithHTTPTimeouts(read, write, shutdown time.Duration) Option {
	return func(s *Server) {
		s.readTimeout, s.writeTimeout, s.shutdownTimeout = read, write, shutdown
	}
}

// Server is the HTTP transport for a Publisher.
type Server struct {
	pub        *notify.Publisher
	log        logger.Logger
	gatherer   prometheus.Gatherer
	timeout    time.Duration
	concurrent bool

	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration

	engine *gin.Engine
}

// New creates a Server for pub.
func New(pub *notify.Publisher, opts ...Option) *Server {
	s := &Server{
		pub:             pub,
		log:             logger.Discard,
		gatherer:        prometheus.DefaultGatherer,
		timeout:         10 * time.Second,
		concurrent:      true,
		readTimeout:     15 * time.Second,
		writeTimeout:    30 * time.Second,
		shutdownTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.Use(gin.Recovery())
	s.engine.Use(requestID())
	s.engine.Use(accessLog(s.log))

	s.engine.GET("/healthz", s.health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	v1 := s.engine.Group("/v1")
	v1.POST("/notify", s.notify)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

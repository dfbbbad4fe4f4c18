// Package ingest implements the development collection endpoint: a gin
// server that accepts the agent's multipart uploads, stores them under a
// data directory, and lists what arrived. It exists so the pipeline can be
// exercised end to end without the production service.
package ingest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = ":8080"

	// DefaultListLimit is the report listing size when ?limit= is absent.
	DefaultListLimit = 20

	// MaxListLimit caps the report listing size.
	MaxListLimit = 100

	shutdownGrace = 10 * time.Second
)

// Config describes the ingest server.
type Config struct {
	// Addr is the listen address.
	Addr string

	// DataDir is where received reports and the index database live.
	DataDir string

	// AuthToken, when set, is required as a bearer token on the API.
	AuthToken string
}

// Server is the development ingest service.
type Server struct {
	cfg    Config
	store  *Store
	logger zerolog.Logger
	router *gin.Engine
}

// New creates the server and opens its store.
func New(cfg Config, logger zerolog.Logger) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.DataDir == "" {
		return nil, errors.New("ingest: data directory required")
	}
	store, err := OpenStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(accessLog(logger), gin.Recovery())

	s := &Server{cfg: cfg, store: store, logger: logger, router: router}

	router.GET("/healthz", s.handleHealthz)

	api := router.Group("/v1")
	if cfg.AuthToken != "" {
		api.Use(requireBearer(cfg.AuthToken))
	}
	api.POST("/ingest/crash-reports", s.handleIngestReport)
	api.POST("/ingest/consent", s.handleIngestConsent)
	api.GET("/reports", s.handleListReports)

	return s, nil
}

// Router exposes the handler, for tests and embedding.
func (s *Server) Router() http.Handler { return s.router }

// Store exposes the underlying store.
func (s *Server) Store() *Store { return s.store }

// Close releases the store.
func (s *Server) Close() error { return s.store.Close() }

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.router}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info().
		Str("addr", s.cfg.Addr).
		Str("data_dir", s.cfg.DataDir).
		Bool("auth", s.cfg.AuthToken != "").
		Msg("ingest server listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

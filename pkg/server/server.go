// Package server serves a sync session over HTTP: the bootstrap page, the
// embedded client script and the websocket endpoint.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jigna-sync/jigna-go/pkg/channel"
	"github.com/jigna-sync/jigna-go/pkg/session"
)

// StaticPrefix is the URL prefix of the embedded client files.
const StaticPrefix = "/static/"

// Server errors.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config configures a Server.
type Config struct {
	// Address is the listen address, host:port.
	Address string

	// WSPath is the websocket endpoint.
	WSPath string

	// Title is the bootstrap page title.
	Title string

	// Version is reported by the health endpoint.
	Version string

	// ShutdownGrace bounds Shutdown when the caller's context has no
	// deadline.
	ShutdownGrace time.Duration

	// Logger is used for operational logging. Nil disables logging.
	Logger *slog.Logger
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Address:       "127.0.0.1:8888",
		WSPath:        "/jigna",
		Title:         "jigna",
		ShutdownGrace: 5 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.WSPath == "" || c.WSPath[0] != '/' || c.WSPath == "/" {
		return fmt.Errorf("%w: websocket path must be an absolute path other than /", ErrInvalidConfig)
	}
	if c.ShutdownGrace < 0 {
		return fmt.Errorf("%w: shutdown grace must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Server routes HTTP requests to the session's websocket channel.
type Server struct {
	config   Config
	session  *session.Session
	channel  *channel.Channel
	renderer Renderer
	logger   *slog.Logger

	router *mux.Router
	server *http.Server
}

// New creates a server. A nil renderer uses DefaultRenderer.
func New(config Config, sess *session.Session, ch *channel.Channel, renderer Renderer) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if sess == nil || ch == nil {
		return nil, fmt.Errorf("%w: session and channel are required", ErrInvalidConfig)
	}
	if renderer == nil {
		renderer = DefaultRenderer
	}

	s := &Server{
		config:   config,
		session:  sess,
		channel:  ch,
		renderer: renderer,
		logger:   config.Logger,
		router:   mux.NewRouter(),
	}
	if err := s.registerRoutes(); err != nil {
		return nil, err
	}

	s.server = &http.Server{
		Addr:              config.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() error {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return fmt.Errorf("static files: %w", err)
	}

	s.router.Handle(s.config.WSPath, s.channel)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.PathPrefix(StaticPrefix).Handler(
		http.StripPrefix(StaticPrefix, http.FileServer(http.FS(staticFS))),
	).Methods(http.MethodGet)
	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	return nil
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleIndex renders the bootstrap page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page := newPage(s.config.Title, s.config.WSPath, s.session.Registry().Entries())

	var buf bytes.Buffer
	if err := s.renderer.Render(&buf, page); err != nil {
		if s.logger != nil {
			s.logger.Error("render failed", slog.Any("error", err))
		}
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleHealth reports the session state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	version := s.config.Version
	if version == "" {
		version = "dev"
	}

	status, code := "ok", http.StatusOK
	if err := s.session.Err(); err != nil {
		status, code = "failed", http.StatusServiceUnavailable
	}

	stats := s.session.Stats()
	writeJSON(w, code, map[string]any{
		"status":      status,
		"version":     version,
		"session_id":  s.session.ID(),
		"connections": stats.Connections,
		"models":      stats.Models,
		"dropped":     stats.Dropped(),
	})
}

// ListenAndServe listens on the configured address and serves until
// Shutdown.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Address, err)
	}
	return s.Serve(l)
}

// Serve serves on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	if s.logger != nil {
		s.logger.Info("serving", slog.String("address", l.Addr().String()), slog.String("ws_path", s.config.WSPath))
	}
	if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, disconnects every websocket client
// and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok && s.config.ShutdownGrace > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownGrace)
		defer cancel()
	}

	// Hijacked websocket connections are not tracked by http.Server.
	chErr := s.channel.Close()
	return errors.Join(s.server.Shutdown(ctx), chErr)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/auth"
	"github.com/Tyrowin/roomchat/internal/chat"
)

// Server serves the chat service over HTTP, SSE and WebSocket.
type Server struct {
	cfg      Config
	svc      *chat.Service
	log      *slog.Logger
	origins  originPolicy
	secret   auth.Secret
	tokens   *auth.Tokens
	validate *validator.Validate
	upgrader websocket.Upgrader
	conns    connTracker

	httpServer *http.Server
}

// New creates a Server for svc. cfg should already be sanitized.
func New(cfg Config, svc *chat.Service, log *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokens([]byte(cfg.TokenSigningKey), cfg.AdminTokenTTL)
	if err != nil {
		return nil, err
	}
	secret, err := auth.NewSecret(cfg.AdminSecret)
	if err != nil {
		return nil, fmt.Errorf("admin secret: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		svc:      svc,
		log:      log,
		origins:  newOriginPolicy(cfg.AllowedOrigins, log),
		secret:   secret,
		tokens:   tokens,
		validate: validator.New(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}
	s.httpServer = CreateServer(cfg.Port, s.Routes())

	if !s.secret.Enabled() {
		log.Info("Admin API disabled; set ADMIN_SECRET to enable it")
	}
	return s, nil
}

// CreateServer creates and configures an HTTP server with the specified port and handler.
// Streaming handlers lift the write timeout for their own responses.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// ListenAndServe blocks until the server stops. It returns nil after a
// graceful Shutdown.
func (s *Server) ListenAndServe() error {
	s.log.Info("Server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown closes every chat session, stops the HTTP server and waits for
// the connection goroutines to finish. Sessions go first because open event
// streams would otherwise hold the HTTP shutdown until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Initiating shutdown...")

	closed := s.svc.Shutdown()
	s.log.Info("Closed chat sessions", "count", closed)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Error("HTTP server shutdown error", "error", err)
		return err
	}

	if err := s.conns.wait(ctx); err != nil {
		s.log.Warn("Shutdown timeout reached, some connections may still be running")
		return err
	}

	s.log.Info("Shutdown completed")
	return nil
}

// connTracker counts transport goroutines. Once wait has begun no new ones
// are admitted.
type connTracker struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func (t *connTracker) add(n int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false
	}
	t.wg.Add(n)
	return true
}

func (t *connTracker) done() {
	t.wg.Done()
}

func (t *connTracker) wait(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Package server implements the engine's HTTP+WebSocket listener: a
// loopback-bound, token-gated mux serving the static UI shell, the
// rendered document, JSON status/state/model-list routes, and the
// WebSocket upgrade (spec.md §4.6).
//
// Grounded on the teacher's cmd/ctrlai/main.go server setup (net/http.Server
// over a single *http.ServeMux, ReadHeaderTimeout but no body timeouts since
// the agent stream can run for minutes) and on internal/dashboard's
// route-per-concern mux layout (dashboard UI, WebSocket, REST API each
// mounted separately). Unlike the teacher, which binds a single fixed
// configured port, spec.md §4.6 requires probing basePort..basePort+10 on
// EADDRINUSE and loopback-only binding, so New owns that retry loop itself
// instead of calling http.ListenAndServe.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/explorerd/explorerd/internal/engine"
)

// maxPortAttempts mirrors spec.md §4.6: try the base port and up to ten
// above it before giving up.
const maxPortAttempts = 11

// Server is the running HTTP+WebSocket listener for one engine session.
// Implements engine.HTTPServer.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     *slog.Logger
}

// New binds a loopback listener on the first free port in
// [basePort, basePort+10], mounts the route table, and starts serving in a
// background goroutine. Matches engine.ServerFactory's signature so it can
// be passed directly as Options.NewServer. Logs through slog's default
// logger — callers that want a constructor-injected logger (the
// convention the rest of the codebase follows, SPEC_FULL.md §4.9) should
// use NewWithLogger via a small closure instead, as cmd/explorerd does.
func New(eng *engine.Engine, host string, basePort int) (engine.HTTPServer, int, error) {
	return NewWithLogger(eng, host, basePort, slog.Default().With("component", "server"))
}

// NewWithLogger is New with an explicit, constructor-injected logger.
func NewWithLogger(eng *engine.Engine, host string, basePort int, logger *slog.Logger) (engine.HTTPServer, int, error) {
	var (
		ln   net.Listener
		port int
		err  error
	)
	for i := 0; i < maxPortAttempts; i++ {
		candidate := basePort + i
		ln, err = net.Listen("tcp", net.JoinHostPort(host, fmt.Sprintf("%d", candidate)))
		if err == nil {
			port = candidate
			break
		}
	}
	if ln == nil {
		return nil, 0, fmt.Errorf("binding http server: no free port in [%d, %d]: %w", basePort, basePort+maxPortAttempts-1, err)
	}

	mux := newMux(eng, logger)
	httpServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s := &Server{httpServer: httpServer, listener: ln, logger: logger}

	go func() {
		if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited", "error", err)
		}
	}()

	logger.Info("http server listening", "addr", ln.Addr().String())
	return s, port, nil
}

// Addr returns the bound network address, e.g. "127.0.0.1:4173".
func (s *Server) Addr() string { return s.listener.Addr().String() }

// Close shuts the server down. Closing the listener itself would drop
// in-flight requests mid-write; Shutdown lets them finish.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

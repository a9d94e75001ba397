package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrymomot/certdesk/core/logger"
)

// Server wraps http.Server with an explicit bind step and graceful shutdown.
// Safe for concurrent use.
type Server struct {
	mu             sync.Mutex
	addr           string
	handler        http.Handler
	server         *http.Server
	listener       net.Listener
	served         chan struct{}
	logger         *slog.Logger
	shutdown       time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
	maxHeaderBytes int
}

// New creates a Server for addr that dispatches to handler.
func New(addr string, handler http.Handler, opts ...Option) *Server {
	s := &Server{
		addr:           addr,
		handler:        handler,
		logger:         logger.Nop(),
		shutdown:       DefaultShutdownTimeout,
		readTimeout:    DefaultReadTimeout,
		writeTimeout:   DefaultWriteTimeout,
		idleTimeout:    DefaultIdleTimeout,
		maxHeaderBytes: DefaultMaxHeaderBytes,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Listen binds the address and starts serving in the background.
// Bind errors are returned synchronously; the server is not running after one.
func (s *Server) Listen() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil, ErrServerAlreadyRunning
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, errors.Join(ErrBind, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:        s.handler,
		ReadTimeout:    s.readTimeout,
		WriteTimeout:   s.writeTimeout,
		IdleTimeout:    s.idleTimeout,
		MaxHeaderBytes: s.maxHeaderBytes,
	}
	s.served = make(chan struct{})

	srv, served := s.server, s.served
	go func() {
		defer close(served)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server stopped unexpectedly", logger.Error(err))
		}
	}()

	return ln.Addr(), nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting connections and waits for in-flight requests.
// The wait is bounded by the shutdown timeout when it is positive, and by ctx.
// Calling Shutdown on a server that is not listening is a no-op.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}

	s.logger.InfoContext(ctx, "shutting down server gracefully", "timeout", s.shutdown)

	if s.shutdown > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdown)
		defer cancel()
	}

	err := s.server.Shutdown(ctx)
	<-s.served

	s.server = nil
	s.listener = nil

	if err != nil {
		s.logger.ErrorContext(ctx, "server shutdown error", logger.Error(err))
		return err
	}

	s.logger.InfoContext(ctx, "server shutdown complete")
	return nil
}

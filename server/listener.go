package server

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"chat-relay/contract"
)

// Server accepts connections and spawns one session goroutine each. It is
// a contract.Worker so it runs under the supervisor next to the telemetry
// worker.
type Server struct {
	log             *slog.Logger
	listener        net.Listener
	registry        contract.IRegistry
	directory       contract.IDirectory
	router          contract.IRouter
	maxLine         int
	shutdownTimeout time.Duration

	wg sync.WaitGroup
}

// acceptBackoff throttles the accept loop on transient errors such as
// running out of file descriptors.
const acceptBackoff = 100 * time.Millisecond

// NewServer wraps an already-bound listener; binding stays in main so a
// bad port is a startup error, not a supervised restart loop.
func NewServer(log *slog.Logger, listener net.Listener, registry contract.IRegistry,
	directory contract.IDirectory, router contract.IRouter,
	maxLine int, shutdownTimeout time.Duration) *Server {
	return &Server{
		log:             log,
		listener:        listener,
		registry:        registry,
		directory:       directory,
		router:          router,
		maxLine:         maxLine,
		shutdownTimeout: shutdownTimeout,
	}
}

// Addr exposes the bound address, useful when listening on port 0.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Run accepts until the context is canceled, then performs the bounded
// shutdown: stop accepting, force-disconnect every live session, wait for
// in-flight session goroutines up to the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("Relay listening", "address", s.listener.Addr().String())

	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, net.ErrClosed) {
				return s.shutdown()
			}
			s.log.Warn("Accept failed", "error", err)
			select {
			case <-ctx.Done():
				return s.shutdown()
			case <-time.After(acceptBackoff):
			}
			continue
		}

		s.log.Info("New connection", "remote", conn.RemoteAddr().String())
		session := NewSession(conn, s.log, s.registry, s.directory, s.router, s.maxLine)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			session.Run()
		}()
	}
}

// shutdown is best-effort, not a transactional drain: in-flight messages
// may be lost once the timeout elapses.
func (s *Server) shutdown() error {
	s.log.Info("Relay shutting down")
	s.registry.DisconnectAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("All sessions finished")
	case <-time.After(s.shutdownTimeout):
		s.log.Warn("Shutdown timed out waiting for sessions")
	}
	return nil
}

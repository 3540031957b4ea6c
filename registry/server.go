package registry

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/c360/sensornet/errors"
	"github.com/c360/sensornet/metric"
	"github.com/c360/sensornet/protocol"
)

// Default bind parameters for the Central Name Server.
const (
	DefaultBindIP = "127.0.0.1"
	DefaultPort   = 5555

	// errorBackoff bounds how fast the loop retries after a transport error
	// that is not caused by shutdown.
	errorBackoff = 500 * time.Millisecond
)

// ServerDeps holds the dependencies for a registry server.
type ServerDeps struct {
	BindIP  string
	Port    int
	Store   *Store
	Logger  *slog.Logger
	Metrics *metric.Registry
}

// Server owns the single reply socket of the Central Name Server and drives
// the request loop: receive one request, validate, dispatch, send exactly one
// reply. The loop runs on one goroutine, so the store needs no locking.
type Server struct {
	endpoint string
	handler  *Handler
	logger   *slog.Logger

	mu   sync.Mutex
	sock zmq4.Socket
	addr net.Addr
}

// NewServer creates a registry server. A nil Store gets a fresh empty store;
// a nil Metrics registry disables metrics.
func NewServer(deps ServerDeps) *Server {
	if deps.BindIP == "" {
		deps.BindIP = DefaultBindIP
	}
	if deps.Port == 0 {
		deps.Port = DefaultPort
	}
	if deps.Store == nil {
		deps.Store = NewStore()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "registry_server")

	metrics, err := newMetrics(deps.Metrics)
	if err != nil {
		// Registration failure degrades to nil metrics, same as no registry.
		logger.Error("metrics registration failed, metrics disabled", "error", err)
		metrics = nil
	}

	return &Server{
		endpoint: protocol.Endpoint{IP: deps.BindIP, Port: deps.Port}.Addr(),
		handler:  NewHandler(deps.Store, deps.Logger, metrics),
		logger:   logger,
	}
}

// Bind creates the reply socket and binds it to the configured endpoint.
// The socket's lifetime is tied to ctx: cancelling it tears the socket down
// and ends Run.
func (s *Server) Bind(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sock != nil {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Server", "Bind", "bind reply socket")
	}

	sock := zmq4.NewRep(ctx)
	if err := sock.Listen(s.endpoint); err != nil {
		sock.Close()
		return errors.WrapFatal(err, "Server", "Bind", "bind reply socket")
	}

	s.sock = sock
	s.addr = sock.Addr()
	s.logger.Info("cns bound", "endpoint", s.endpoint, "addr", s.addr.String())
	return nil
}

// Addr returns the bound listen address, useful when binding to port 0.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Port returns the bound TCP port.
func (s *Server) Port() int {
	addr := s.Addr()
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// Run drives the request loop until ctx is cancelled. Bind must have been
// called first. A transport error while the context is live is logged and the
// loop continues; cancellation ends the loop cleanly.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	sock := s.sock
	s.mu.Unlock()
	if sock == nil {
		return errors.WrapInvalid(errors.ErrNotStarted, "Server", "Run", "serve requests")
	}

	s.logger.Info("registry server running")
	for {
		msg, err := sock.Recv()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("registry server stopping")
				return nil
			}
			s.logger.Error("receive failed", "error", err)
			select {
			case <-ctx.Done():
				s.logger.Info("registry server stopping")
				return nil
			case <-time.After(errorBackoff):
			}
			continue
		}

		resp := s.handler.Handle(msg.Bytes())
		raw, err := resp.Encode()
		if err != nil {
			// Responses are built from plain fields; encoding cannot fail in
			// practice, but the one-reply contract still has to hold.
			s.logger.Error("encode response failed", "error", err)
			raw = []byte(`{"status":"error","message":"Internal error"}`)
		}

		if err := sock.Send(zmq4.NewMsg(raw)); err != nil {
			if ctx.Err() != nil {
				s.logger.Info("registry server stopping")
				return nil
			}
			s.logger.Error("send reply failed", "error", err, "action", "reply")
		}
	}
}

// Close releases the reply socket. Safe to call more than once.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sock == nil {
		return nil
	}
	err := s.sock.Close()
	s.sock = nil
	return err
}

package node

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/go-zeromq/zmq4"

	"github.com/c360/sensornet/errors"
	"github.com/c360/sensornet/frame"
	"github.com/c360/sensornet/protocol"
)

// Publisher owns a PUB socket bound to an ephemeral port and serves one
// or more data-channel topics from it. The kernel picks the port; the
// registry learns it through RegisterService, so subscribers resolve it
// by topic and never see the port directly.
type Publisher struct {
	sock     zmq4.Socket
	endpoint protocol.Endpoint
	topics   []string
	logger   *slog.Logger
	metrics  *Metrics

	mu     sync.Mutex
	closed bool
}

// openPublisher binds a PUB socket to an ephemeral port and registers
// every topic at the resulting endpoint. sockCtx bounds the socket's
// lifetime; regCtx bounds the registration round trips.
func openPublisher(sockCtx, regCtx context.Context, client *Client, topics []string, logger *slog.Logger, metrics *Metrics) (*Publisher, error) {
	if len(topics) == 0 {
		return nil, errors.WrapInvalid(errors.ErrMissingField, "Publisher", "open", "validate topics")
	}
	if logger == nil {
		logger = slog.Default()
	}

	sock := zmq4.NewPub(sockCtx)
	if err := sock.Listen("tcp://0.0.0.0:0"); err != nil {
		sock.Close()
		return nil, errors.WrapFatal(err, "Publisher", "open", "bind data socket")
	}

	port, err := boundPort(sock)
	if err != nil {
		sock.Close()
		return nil, errors.WrapFatal(err, "Publisher", "open", "resolve bound port")
	}

	for i, topic := range topics {
		if err := client.RegisterService(regCtx, topic, port); err != nil {
			// Roll back the topics already registered so the
			// registry does not point at a socket we are about
			// to close.
			for _, done := range topics[:i] {
				if uerr := client.UnregisterService(regCtx, done); uerr != nil {
					logger.Error("rollback unregister failed", "topic", done, "error", uerr)
				}
			}
			sock.Close()
			return nil, errors.Wrap(err, "Publisher", "open", "register topics")
		}
	}

	p := &Publisher{
		sock:     sock,
		endpoint: protocol.Endpoint{IP: client.nodeIP, Port: port},
		topics:   topics,
		logger:   logger.With("component", "publisher"),
		metrics:  metrics,
	}

	p.logger.Info("publisher bound", "port", port, "topics", topics)
	return p, nil
}

// Publish sends a frame on the data socket as a three-part message:
// topic, metadata, payload. Subscribers filter on the topic part.
func (p *Publisher) Publish(f frame.Frame) error {
	parts, err := f.Encode()
	if err != nil {
		return errors.WrapInvalid(err, "Publisher", "Publish", "encode frame")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.WrapFatal(errors.ErrClosed, "Publisher", "Publish", "send frame")
	}

	if err := p.sock.SendMulti(zmq4.NewMsgFrom(parts...)); err != nil {
		return errors.WrapTransient(err, "Publisher", "Publish", "send frame")
	}

	p.metrics.observeFramePublished()
	return nil
}

// Endpoint returns the address subscribers resolve to for this
// publisher's topics.
func (p *Publisher) Endpoint() protocol.Endpoint {
	return p.endpoint
}

// Topics returns the data-channel topics served by this publisher.
func (p *Publisher) Topics() []string {
	out := make([]string, len(p.topics))
	copy(out, p.topics)
	return out
}

// Close releases the data socket. Registrations are not touched here;
// the node unregisters them as part of its own shutdown sequence.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	return p.sock.Close()
}

// boundPort extracts the kernel-assigned port from a socket bound to
// an ephemeral address.
func boundPort(sock zmq4.Socket) (int, error) {
	addr := sock.Addr()
	if addr == nil {
		return 0, errors.New("socket has no bound address")
	}
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port, nil
	}
	_, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(portStr)
}

package node

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/c360/sensornet/errors"
	"github.com/c360/sensornet/frame"
	"github.com/c360/sensornet/protocol"
)

const (
	// DefaultLookupRetryInterval is the pause between resolution
	// attempts while a topic's publisher has not yet registered.
	DefaultLookupRetryInterval = time.Second

	// DefaultSubscriberHWM caps queued frames on the SUB socket.
	// When the consumer falls behind, the oldest frames are dropped
	// so processing stays near the live edge of the stream.
	DefaultSubscriberHWM = 10
)

// Subscriber receives frames for a single data-channel topic. It
// resolves the publisher through the registry, retrying until the
// publisher appears or the context ends, then connects a SUB socket
// with a topic-prefix filter. A reader goroutine decodes incoming
// messages onto a channel so Recv and Drain stay cancellable.
type Subscriber struct {
	topic    string
	endpoint protocol.Endpoint
	sock     zmq4.Socket
	frames   chan frame.Frame
	cancel   context.CancelFunc
	logger   *slog.Logger
	metrics  *Metrics
}

// openSubscriber resolves topic and connects to its publisher. sockCtx
// bounds the socket and reader lifetime; resolveCtx bounds how long to
// keep retrying an unresolved topic.
func openSubscriber(sockCtx, resolveCtx context.Context, client *Client, topic string, hwm int, retryInterval time.Duration, logger *slog.Logger, metrics *Metrics) (*Subscriber, error) {
	if topic == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingField, "Subscriber", "open", "validate topic")
	}
	if hwm <= 0 {
		hwm = DefaultSubscriberHWM
	}
	if retryInterval <= 0 {
		retryInterval = DefaultLookupRetryInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "subscriber", "topic", topic)

	endpoint, err := resolveTopic(resolveCtx, client, topic, retryInterval, logger, metrics)
	if err != nil {
		return nil, err
	}

	sock := zmq4.NewSub(sockCtx)
	if err := sock.SetOption(zmq4.OptionHWM, hwm); err != nil {
		sock.Close()
		return nil, errors.WrapFatal(err, "Subscriber", "open", "set high-water mark")
	}
	if err := sock.Dial(endpoint.Addr()); err != nil {
		sock.Close()
		return nil, errors.WrapTransient(err, "Subscriber", "open", "dial publisher")
	}
	if err := sock.SetOption(zmq4.OptionSubscribe, topic); err != nil {
		sock.Close()
		return nil, errors.WrapFatal(err, "Subscriber", "open", "subscribe topic")
	}

	readCtx, cancel := context.WithCancel(sockCtx)
	s := &Subscriber{
		topic:    topic,
		endpoint: endpoint,
		sock:     sock,
		frames:   make(chan frame.Frame, hwm),
		cancel:   cancel,
		logger:   logger,
		metrics:  metrics,
	}

	go s.readLoop(readCtx)

	s.logger.Info("subscribed", "endpoint", endpoint.String())
	return s, nil
}

// resolveTopic polls the registry until the topic's publisher is
// registered. A topic that is simply not there yet is normal during
// startup, so misses are retried; only transport or registry errors
// end the wait early.
func resolveTopic(ctx context.Context, client *Client, topic string, interval time.Duration, logger *slog.Logger, metrics *Metrics) (protocol.Endpoint, error) {
	for {
		endpoint, found, err := client.LookupEndpoint(ctx, topic)
		if err != nil {
			return protocol.Endpoint{}, errors.Wrap(err, "Subscriber", "resolve", "look up topic")
		}
		if found {
			return endpoint, nil
		}

		metrics.observeLookupRetry()
		logger.Warn("topic not registered yet, retrying", "interval", interval)

		select {
		case <-ctx.Done():
			return protocol.Endpoint{}, errors.WrapTransient(ctx.Err(), "Subscriber", "resolve", "wait for topic")
		case <-time.After(interval):
		}
	}
}

// Topic returns the data-channel topic this subscriber follows.
func (s *Subscriber) Topic() string {
	return s.topic
}

// Endpoint returns the publisher address this subscriber connected to.
func (s *Subscriber) Endpoint() protocol.Endpoint {
	return s.endpoint
}

// Frames returns the stream of decoded frames. The channel is closed
// when the subscriber shuts down.
func (s *Subscriber) Frames() <-chan frame.Frame {
	return s.frames
}

// Recv returns the next frame, or an error when ctx ends or the
// subscriber has been closed.
func (s *Subscriber) Recv(ctx context.Context) (frame.Frame, error) {
	select {
	case f, ok := <-s.frames:
		if !ok {
			return frame.Frame{}, errors.WrapFatal(errors.ErrClosed, "Subscriber", "Recv", "receive frame")
		}
		return f, nil
	case <-ctx.Done():
		return frame.Frame{}, errors.WrapTransient(ctx.Err(), "Subscriber", "Recv", "receive frame")
	}
}

// Drain discards buffered frames until no frame has arrived for the
// given window, then returns the number dropped. Used at startup to
// skip the backlog a slow-starting consumer would otherwise process
// late.
func (s *Subscriber) Drain(ctx context.Context, window time.Duration) int {
	dropped := 0
	timer := time.NewTimer(window)
	defer timer.Stop()

	for {
		select {
		case _, ok := <-s.frames:
			if !ok {
				return dropped
			}
			dropped++
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(window)
		case <-timer.C:
			return dropped
		case <-ctx.Done():
			return dropped
		}
	}
}

// Close releases the SUB socket and stops the reader. The cancel covers
// a reader parked on a full frame channel; closing the socket covers one
// blocked in a receive. Either way the frame channel gets closed.
func (s *Subscriber) Close() error {
	s.cancel()
	return s.sock.Close()
}

func (s *Subscriber) readLoop(ctx context.Context) {
	defer close(s.frames)

	for {
		msg, err := s.sock.Recv()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Debug("data socket receive ended", "error", err)
			}
			return
		}

		f, err := frame.Decode(msg.Frames)
		if err != nil {
			s.metrics.observeFrameDecodeError()
			s.logger.Warn("discarding malformed frame", "error", err)
			continue
		}

		s.metrics.observeFrameReceived()

		select {
		case s.frames <- f:
		case <-ctx.Done():
			return
		}
	}
}

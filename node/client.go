// Package node provides the runtime for sensor-processing nodes: a
// registry transport client, service discovery, data-channel publishers
// and subscribers, and heartbeat emission. Capabilities compose onto a
// Node rather than hanging off a base type, so a pure source carries no
// subscriber machinery and a pure sink carries no publisher machinery.
package node

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/c360/sensornet/errors"
	"github.com/c360/sensornet/pkg/retry"
	"github.com/c360/sensornet/protocol"
)

// DefaultRequestTimeout bounds a single registry round trip, retries
// included, when no timeout is configured.
const DefaultRequestTimeout = 5 * time.Second

// ClientDeps contains the dependencies for creating a Client
type ClientDeps struct {
	// Self is the identity topic stamped on every outgoing request.
	Self string

	// NodeIP is the address advertised in register requests.
	NodeIP string

	// Registry is the name server endpoint to dial.
	Registry protocol.Endpoint

	// Timeout bounds a single Do call end to end. Optional,
	// defaults to DefaultRequestTimeout.
	Timeout time.Duration

	// Logger for transport events. Optional, defaults to slog.Default().
	Logger *slog.Logger

	// Metrics for request accounting. Optional, nil disables metrics.
	Metrics *Metrics
}

type call struct {
	ctx  context.Context
	req  protocol.Request
	done chan callResult
}

type callResult struct {
	resp protocol.Response
	err  error
}

// Client is the registry transport for a node. A single goroutine owns
// the REQ socket; callers submit requests through Do and never touch
// the socket directly, so no locking is needed around the strict
// send-then-receive cycle.
//
// When a request deadline expires mid-cycle the owning goroutine closes
// the socket and redials on the next call, because an abandoned request
// leaves a REQ socket unable to send again.
type Client struct {
	self     string
	nodeIP   string
	registry protocol.Endpoint
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *Metrics
	retryCfg retry.Config

	calls     chan call
	closed    chan struct{}
	actorDone chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	registered []string
}

// NewClient creates a registry client and starts its owning goroutine.
// The socket lives until ctx is cancelled or Close is called.
func NewClient(ctx context.Context, deps ClientDeps) *Client {
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		self:      deps.Self,
		nodeIP:    deps.NodeIP,
		registry:  deps.Registry,
		timeout:   timeout,
		logger:    logger.With("component", "client"),
		metrics:   deps.Metrics,
		retryCfg:  retry.Quick(),
		calls:     make(chan call),
		closed:    make(chan struct{}),
		actorDone: make(chan struct{}),
	}

	go c.run(ctx)
	return c
}

// Self returns the identity topic this client stamps on requests.
func (c *Client) Self() string {
	return c.self
}

// Do sends a request to the registry and waits for its reply. The call
// is bounded by ctx and by the configured request timeout, whichever
// fires first. Transient transport failures are retried with backoff
// inside that window.
func (c *Client) Do(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	if req.Self == "" {
		req.Self = c.self
	}

	start := time.Now()
	cl := call{ctx: ctx, req: req, done: make(chan callResult, 1)}

	select {
	case c.calls <- cl:
	case <-c.closed:
		return protocol.Response{}, errors.WrapFatal(errors.ErrTransportClosed, "Client", "Do", "submit request")
	case <-c.actorDone:
		return protocol.Response{}, errors.WrapFatal(errors.ErrTransportClosed, "Client", "Do", "submit request")
	case <-ctx.Done():
		return protocol.Response{}, errors.WrapTransient(ctx.Err(), "Client", "Do", "submit request")
	}

	res := <-cl.done

	status := "ok"
	if res.err != nil {
		status = "error"
	} else if res.resp.Status != protocol.StatusSuccess {
		status = "rejected"
	}
	c.metrics.observeRequest(string(req.Action), status, time.Since(start).Seconds())

	return res.resp, res.err
}

// Close stops the owning goroutine and releases the socket. Safe to
// call more than once. Requests in flight receive an error.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	<-c.actorDone
	return nil
}

func (c *Client) run(ctx context.Context) {
	defer close(c.actorDone)

	var sock zmq4.Socket
	defer func() {
		if sock != nil {
			sock.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case cl := <-c.calls:
			resp, err := c.roundTrip(ctx, cl, &sock)
			cl.done <- callResult{resp: resp, err: err}
		}
	}
}

// roundTrip performs one send/receive cycle, retrying transient
// failures until the call deadline. sock is owned by run; a nil *sock
// means the next attempt must dial first.
func (c *Client) roundTrip(ctx context.Context, cl call, sock *zmq4.Socket) (protocol.Response, error) {
	raw, err := cl.req.Encode()
	if err != nil {
		return protocol.Response{}, errors.WrapInvalid(err, "Client", "roundTrip", "encode request")
	}

	callCtx, cancel := context.WithTimeout(cl.ctx, c.timeout)
	defer cancel()

	dropSocket := func() {
		if *sock != nil {
			(*sock).Close()
			*sock = nil
		}
	}

	resp, err := retry.DoWithResult(callCtx, c.retryCfg, func() (protocol.Response, error) {
		if *sock == nil {
			s, derr := c.dial(ctx, callCtx)
			if derr != nil {
				return protocol.Response{}, derr
			}
			*sock = s
			c.logger.Debug("connected to registry", "endpoint", c.registry.String())
		}

		if err := (*sock).Send(zmq4.NewMsg(raw)); err != nil {
			dropSocket()
			return protocol.Response{}, errors.WrapTransient(err, "Client", "roundTrip", "send request")
		}

		type recvResult struct {
			msg zmq4.Msg
			err error
		}
		rc := make(chan recvResult, 1)
		s := *sock
		go func() {
			m, e := s.Recv()
			rc <- recvResult{msg: m, err: e}
		}()

		select {
		case <-callCtx.Done():
			// The reply never came inside the deadline. The REQ
			// cycle is now stuck mid-request, so the socket cannot
			// be reused and the next attempt redials.
			dropSocket()
			return protocol.Response{}, errors.WrapTransient(errors.ErrRequestTimeout, "Client", "roundTrip", "receive reply")
		case r := <-rc:
			if r.err != nil {
				dropSocket()
				return protocol.Response{}, errors.WrapTransient(r.err, "Client", "roundTrip", "receive reply")
			}
			dec, derr := protocol.DecodeResponse(r.msg.Bytes())
			if derr != nil {
				return protocol.Response{}, retry.NonRetryable(errors.WrapInvalid(derr, "Client", "roundTrip", "decode reply"))
			}
			return dec, nil
		}
	})
	if err != nil {
		c.logger.Warn("registry request failed",
			"action", cl.req.Action,
			"topic", cl.req.Topic,
			"error", err)
		return protocol.Response{}, err
	}

	return resp, nil
}

// dial connects a fresh REQ socket within the per-call deadline. The
// transport retries connection attempts on its own schedule bounded only
// by the socket context, so the wait is cut off here when callCtx ends;
// an abandoned attempt is closed once it resolves.
func (c *Client) dial(sockCtx, callCtx context.Context) (zmq4.Socket, error) {
	s := zmq4.NewReq(sockCtx)

	dc := make(chan error, 1)
	go func() { dc <- s.Dial(c.registry.Addr()) }()

	select {
	case <-callCtx.Done():
		go func() {
			<-dc
			s.Close()
		}()
		return nil, errors.WrapTransient(callCtx.Err(), "Client", "dial", "dial registry")
	case err := <-dc:
		if err != nil {
			s.Close()
			return nil, errors.WrapTransient(err, "Client", "dial", "dial registry")
		}
		return s, nil
	}
}

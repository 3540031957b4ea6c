package node

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/c360/sensornet/config"
	"github.com/c360/sensornet/errors"
	"github.com/c360/sensornet/metric"
	"github.com/c360/sensornet/protocol"
)

// Identity names a node. The topic form "/type/id" is how the node
// appears in registry requests and how its data channels are prefixed.
type Identity struct {
	Type string
	ID   string
}

// Topic returns the identity in wire form, "/type/id".
func (i Identity) Topic() string {
	return protocol.IdentityTopic(i.Type, i.ID)
}

// Deps contains the dependencies for creating a Node
type Deps struct {
	// Config describes the node and how it reaches the registry.
	Config config.NodeConfig

	// Logger for runtime events. Optional, defaults to slog.Default().
	Logger *slog.Logger

	// Metrics registry. Optional, nil disables metrics.
	Metrics *metric.Registry
}

// Node is the runtime for one process in the sensor network. Creating
// a Node connects it to the registry and starts its heartbeat;
// publishers and subscribers are opened on top as the process needs
// them, so a node carries only the capabilities it uses.
type Node struct {
	identity Identity
	cfg      config.NodeConfig
	logger   *slog.Logger
	metrics  *Metrics
	client   *Client

	ctx    context.Context
	cancel context.CancelFunc

	hb       *Heartbeat
	hbCancel context.CancelFunc

	mu   sync.Mutex
	pubs []*Publisher
	subs []*Subscriber

	closeOnce sync.Once
}

// New validates the configuration, connects the registry client, and
// starts the heartbeat. A node with no configured ID gets a random one
// so several instances of the same type can coexist.
func New(ctx context.Context, deps Deps) (*Node, error) {
	cfg := deps.Config
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Node", "New", "validate config")
	}

	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	identity := Identity{Type: cfg.Type, ID: id}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("node", identity.Topic())

	metrics, err := newMetrics(deps.Metrics)
	if err != nil {
		return nil, errors.Wrap(err, "Node", "New", "register metrics")
	}

	nctx, cancel := context.WithCancel(ctx)

	client := NewClient(nctx, ClientDeps{
		Self:     identity.Topic(),
		NodeIP:   cfg.IP,
		Registry: cfg.Registry(),
		Timeout:  cfg.RequestTimeout(),
		Logger:   logger,
		Metrics:  metrics,
	})

	hbCtx, hbCancel := context.WithCancel(nctx)
	hb := startHeartbeat(hbCtx, client, cfg.HeartbeatInterval(), logger, metrics)

	logger.Info("node started",
		"type", cfg.Type,
		"id", id,
		"registry", cfg.Registry().String())

	return &Node{
		identity: identity,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		client:   client,
		ctx:      nctx,
		cancel:   cancel,
		hb:       hb,
		hbCancel: hbCancel,
	}, nil
}

// Identity returns this node's type and ID.
func (n *Node) Identity() Identity {
	return n.identity
}

// Client returns the registry client for direct discovery and
// key/value operations.
func (n *Node) Client() *Client {
	return n.client
}

// ChannelTopic returns the full topic for one of this node's data
// channels, "/type/id/channel".
func (n *Node) ChannelTopic(channel string) string {
	return protocol.ChannelTopic(n.identity.Topic(), channel)
}

// OpenPublisher binds a data socket on an ephemeral port and registers
// the given topics at it. The socket lives until the publisher or the
// node is closed; ctx bounds only the registration round trips.
func (n *Node) OpenPublisher(ctx context.Context, topics ...string) (*Publisher, error) {
	p, err := openPublisher(n.ctx, ctx, n.client, topics, n.logger, n.metrics)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	n.pubs = append(n.pubs, p)
	n.mu.Unlock()
	return p, nil
}

// OpenSubscriber resolves topic through the registry, retrying while
// its publisher has not registered yet, and connects to it. ctx bounds
// the resolution wait; the socket lives until the subscriber or the
// node is closed.
func (n *Node) OpenSubscriber(ctx context.Context, topic string) (*Subscriber, error) {
	s, err := openSubscriber(n.ctx, ctx, n.client, topic,
		n.cfg.SubscriberHWM, n.cfg.LookupRetryInterval(), n.logger, n.metrics)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	n.subs = append(n.subs, s)
	n.mu.Unlock()
	return s, nil
}

// Close shuts the node down in dependency order: the heartbeat stops
// first, then registrations are released while the registry client is
// still usable, then data sockets and finally the client itself.
func (n *Node) Close() error {
	var err error
	n.closeOnce.Do(func() {
		n.logger.Info("node shutting down")

		n.hbCancel()
		n.hb.Wait()

		unregCtx, cancel := context.WithTimeout(context.Background(), n.cfg.RequestTimeout())
		if uerr := n.client.UnregisterAll(unregCtx); uerr != nil {
			n.logger.Error("unregister on shutdown failed", "error", uerr)
			err = uerr
		}
		cancel()

		n.mu.Lock()
		subs := n.subs
		pubs := n.pubs
		n.subs = nil
		n.pubs = nil
		n.mu.Unlock()

		for _, s := range subs {
			s.Close()
		}
		for _, p := range pubs {
			p.Close()
		}

		n.cancel()
		n.client.Close()

		n.logger.Info("node stopped")
	})
	return err
}

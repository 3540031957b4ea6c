package node

import (
	"context"
	"log/slog"
	"time"

	"github.com/c360/sensornet/protocol"
)

// DefaultHeartbeatInterval is the liveness beacon period when none is
// configured.
const DefaultHeartbeatInterval = time.Second

// Heartbeat periodically announces this node's liveness to the
// registry. Replies are discarded and failures are logged, never
// surfaced: a missed beat must not take the node down.
type Heartbeat struct {
	client   *Client
	interval time.Duration
	logger   *slog.Logger
	metrics  *Metrics
	done     chan struct{}
}

// startHeartbeat begins emitting beats immediately and then once per
// interval until ctx is cancelled.
func startHeartbeat(ctx context.Context, client *Client, interval time.Duration, logger *slog.Logger, metrics *Metrics) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	hb := &Heartbeat{
		client:   client,
		interval: interval,
		logger:   logger.With("component", "heartbeat"),
		metrics:  metrics,
		done:     make(chan struct{}),
	}

	go hb.run(ctx)
	return hb
}

// Wait blocks until the heartbeat loop has exited.
func (hb *Heartbeat) Wait() {
	<-hb.done
}

func (hb *Heartbeat) run(ctx context.Context) {
	defer close(hb.done)

	ticker := time.NewTicker(hb.interval)
	defer ticker.Stop()

	for {
		hb.beat(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (hb *Heartbeat) beat(ctx context.Context) {
	req := protocol.NewHeartbeat(hb.client.Self(), time.Now().UnixMilli())
	resp, err := hb.client.Do(ctx, req)
	if err != nil {
		if ctx.Err() == nil {
			hb.logger.Warn("heartbeat failed", "error", err)
		}
		return
	}
	if resp.Status != protocol.StatusSuccess {
		hb.logger.Warn("heartbeat rejected", "message", resp.Message)
		return
	}
	hb.metrics.observeHeartbeat()
}

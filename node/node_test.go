package node

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sensornet/config"
	"github.com/c360/sensornet/frame"
	"github.com/c360/sensornet/metric"
	"github.com/c360/sensornet/protocol"
)

func newTestNode(t *testing.T, reg protocol.Endpoint, nodeType, id string) *Node {
	t.Helper()

	n, err := New(context.Background(), Deps{
		Config: config.NodeConfig{
			Type:                  nodeType,
			ID:                    id,
			IP:                    "127.0.0.1",
			RegistryIP:            reg.IP,
			RegistryPort:          reg.Port,
			LookupRetryIntervalMS: 50,
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { n.Close() })
	return n
}

func TestNodeIdentityDefaultsToRandomID(t *testing.T) {
	reg := startRegistry(t)

	a := newTestNode(t, reg, "cam", "")
	b := newTestNode(t, reg, "cam", "")

	assert.Equal(t, "cam", a.Identity().Type)
	assert.NotEmpty(t, a.Identity().ID)
	assert.NotEqual(t, a.Identity().ID, b.Identity().ID)
}

func TestNodeChannelTopic(t *testing.T) {
	reg := startRegistry(t)
	n := newTestNode(t, reg, "cam", "0")

	assert.Equal(t, "/cam/0/raw", n.ChannelTopic("raw"))
}

func TestNodePublishSubscribe(t *testing.T) {
	reg := startRegistry(t)

	source := newTestNode(t, reg, "cam", "0")
	topic := source.ChannelTopic("raw")

	pub, err := source.OpenPublisher(context.Background(), topic)
	require.NoError(t, err)

	sink := newTestNode(t, reg, "viewer", "0")
	sub, err := sink.OpenSubscriber(context.Background(), topic)
	require.NoError(t, err)
	assert.Equal(t, pub.Endpoint(), sub.Endpoint())

	sent := frame.Frame{
		Topic: topic,
		Meta: frame.Metadata{
			Width:    640,
			Height:   480,
			Channels: 3,
			BitDepth: 8,
			SourceTS: time.Now().UnixMilli(),
		},
		Data: []byte{1, 2, 3, 4},
	}

	// PUB drops messages sent before the subscription has propagated,
	// so publish until one arrives.
	got := make(chan frame.Frame, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		f, err := sub.Recv(ctx)
		if err == nil {
			got <- f
		}
	}()

	deadline := time.After(10 * time.Second)
	for {
		require.NoError(t, pub.Publish(sent))
		select {
		case f := <-got:
			assert.Equal(t, sent.Topic, f.Topic)
			assert.Equal(t, sent.Meta, f.Meta)
			assert.Equal(t, sent.Data, f.Data)
			return
		case <-deadline:
			t.Fatal("frame never arrived")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestNodeSubscriberWaitsForPublisher(t *testing.T) {
	reg := startRegistry(t)

	sink := newTestNode(t, reg, "viewer", "0")
	topic := "/cam/0/raw"

	type result struct {
		sub *Subscriber
		err error
	}
	resolved := make(chan result, 1)
	go func() {
		s, err := sink.OpenSubscriber(context.Background(), topic)
		resolved <- result{s, err}
	}()

	// The publisher does not exist yet, so resolution must still be
	// in its retry loop.
	select {
	case r := <-resolved:
		t.Fatalf("subscriber resolved before publisher existed: %+v", r)
	case <-time.After(200 * time.Millisecond):
	}

	source := newTestNode(t, reg, "cam", "0")
	_, err := source.OpenPublisher(context.Background(), topic)
	require.NoError(t, err)

	select {
	case r := <-resolved:
		require.NoError(t, r.err)
		assert.Equal(t, topic, r.sub.Topic())
	case <-time.After(10 * time.Second):
		t.Fatal("subscriber never resolved after publisher registered")
	}
}

func TestNodeSubscriberResolutionStopsOnCancel(t *testing.T) {
	reg := startRegistry(t)
	sink := newTestNode(t, reg, "viewer", "0")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err := sink.OpenSubscriber(ctx, "/nobody/home/raw")
	require.Error(t, err)
}

func TestNodeSubscriberDrain(t *testing.T) {
	reg := startRegistry(t)

	source := newTestNode(t, reg, "cam", "0")
	topic := source.ChannelTopic("raw")
	pub, err := source.OpenPublisher(context.Background(), topic)
	require.NoError(t, err)

	sink := newTestNode(t, reg, "viewer", "0")
	sub, err := sink.OpenSubscriber(context.Background(), topic)
	require.NoError(t, err)

	f := frame.Frame{Topic: topic, Data: []byte{0xFF}}

	// Build a backlog, then drain it off before real consumption.
	require.Eventually(t, func() bool {
		_ = pub.Publish(f)
		return len(sub.Frames()) > 0
	}, 10*time.Second, 20*time.Millisecond)

	dropped := sub.Drain(context.Background(), 200*time.Millisecond)
	assert.Greater(t, dropped, 0)
	assert.Empty(t, sub.Frames())
}

func TestNodeSubscriberCloseStopsBlockedReader(t *testing.T) {
	reg := startRegistry(t)

	source := newTestNode(t, reg, "cam", "0")
	topic := source.ChannelTopic("raw")
	pub, err := source.OpenPublisher(context.Background(), topic)
	require.NoError(t, err)

	sink := newTestNode(t, reg, "viewer", "0")
	sub, err := sink.OpenSubscriber(context.Background(), topic)
	require.NoError(t, err)

	// Fill the frame channel without consuming so the reader ends up
	// parked on a send.
	f := frame.Frame{Topic: topic, Data: []byte{0xAB}}
	require.Eventually(t, func() bool {
		_ = pub.Publish(f)
		return len(sub.frames) == cap(sub.frames)
	}, 10*time.Second, 20*time.Millisecond)
	_ = pub.Publish(f)

	require.NoError(t, sub.Close())

	// The reader must let go of the buffered backlog and close the
	// channel without the node context being cancelled.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-sub.frames:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("reader did not exit after close")
		}
	}
}

func TestNodeHeartbeatEmits(t *testing.T) {
	reg := startRegistry(t)
	metrics, err := newMetrics(metric.NewRegistry())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewClient(ctx, ClientDeps{Self: "/cam/0", NodeIP: "127.0.0.1", Registry: reg, Metrics: metrics})
	defer c.Close()

	hbCtx, hbCancel := context.WithCancel(ctx)
	hb := startHeartbeat(hbCtx, c, 50*time.Millisecond, nil, metrics)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.heartbeatsSent) >= 3
	}, 10*time.Second, 20*time.Millisecond)

	hbCancel()
	hb.Wait()
}

func TestNodeCloseUnregistersTopics(t *testing.T) {
	reg := startRegistry(t)

	source := newTestNode(t, reg, "cam", "0")
	topic := source.ChannelTopic("raw")
	_, err := source.OpenPublisher(context.Background(), topic)
	require.NoError(t, err)

	observer := newTestClient(t, reg, "/viewer/0")
	_, found, err := observer.LookupEndpoint(context.Background(), topic)
	require.NoError(t, err)
	require.True(t, found)

	require.NoError(t, source.Close())

	_, found, err = observer.LookupEndpoint(context.Background(), topic)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNodeCloseIsIdempotent(t *testing.T) {
	reg := startRegistry(t)
	n := newTestNode(t, reg, "cam", "0")

	require.NoError(t, n.Close())
	require.NoError(t, n.Close())
}

func TestNodeMetricsCollisionFailsStartup(t *testing.T) {
	mreg := metric.NewRegistry()
	_, err := newMetrics(mreg)
	require.NoError(t, err)

	// The second node on the same metric registry collides on every
	// collector name; New must surface that instead of dropping it.
	_, err = New(context.Background(), Deps{
		Config:  config.NodeConfig{Type: "cam", RegistryIP: "127.0.0.1"},
		Metrics: mreg,
	})
	require.Error(t, err)
}

func TestNodeRejectsInvalidConfig(t *testing.T) {
	_, err := New(context.Background(), Deps{
		Config: config.NodeConfig{Type: "cam", IP: "not-an-ip", RegistryIP: "127.0.0.1"},
	})
	require.Error(t, err)
}

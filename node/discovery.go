package node

import (
	"context"
	"fmt"

	"github.com/c360/sensornet/errors"
	"github.com/c360/sensornet/protocol"
)

// RegisterService announces that this node serves topic on the given
// port. The advertised IP is the node IP the client was built with.
// Registered topics are remembered so UnregisterAll can release them
// on shutdown.
func (c *Client) RegisterService(ctx context.Context, topic string, port int) error {
	resp, err := c.Do(ctx, protocol.NewRegister(c.self, topic, c.nodeIP, port))
	if err != nil {
		return errors.Wrap(err, "Client", "RegisterService", "register topic")
	}
	if resp.Status != protocol.StatusSuccess {
		return errors.WrapFatal(
			fmt.Errorf("%w: %s", errors.ErrRegistrationFailed, resp.Message),
			"Client", "RegisterService", "register topic")
	}

	c.mu.Lock()
	c.registered = append(c.registered, topic)
	c.mu.Unlock()

	c.logger.Info("registered service", "topic", topic, "ip", c.nodeIP, "port", port)
	return nil
}

// UnregisterService removes a topic registration. The local registered
// list is updated even when the registry no longer knows the topic.
func (c *Client) UnregisterService(ctx context.Context, topic string) error {
	resp, err := c.Do(ctx, protocol.NewUnregister(c.self, topic))
	if err != nil {
		return errors.Wrap(err, "Client", "UnregisterService", "unregister topic")
	}
	if resp.Status != protocol.StatusSuccess {
		return errors.WrapFatal(
			fmt.Errorf("%w: %s", errors.ErrUnregistrationFailed, resp.Message),
			"Client", "UnregisterService", "unregister topic")
	}

	c.mu.Lock()
	for i, t := range c.registered {
		if t == topic {
			c.registered = append(c.registered[:i], c.registered[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	c.logger.Info("unregistered service", "topic", topic)
	return nil
}

// UnregisterAll releases every topic this client has registered,
// stopping at the first failure so a dead registry does not stall
// shutdown with one timeout per topic.
func (c *Client) UnregisterAll(ctx context.Context) error {
	c.mu.Lock()
	topics := make([]string, len(c.registered))
	copy(topics, c.registered)
	c.mu.Unlock()

	for _, topic := range topics {
		if err := c.UnregisterService(ctx, topic); err != nil {
			return errors.Wrap(err, "Client", "UnregisterAll", "unregister topics")
		}
	}
	return nil
}

// RegisteredTopics returns a snapshot of the topics this client has
// registered and not yet unregistered.
func (c *Client) RegisteredTopics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.registered))
	copy(out, c.registered)
	return out
}

// LookupEndpoint resolves a topic to the endpoint of its publisher.
// A topic the registry does not know is not an error: found is false
// and the endpoint is zero.
func (c *Client) LookupEndpoint(ctx context.Context, topic string) (protocol.Endpoint, bool, error) {
	resp, err := c.Do(ctx, protocol.NewLookup(c.self, topic))
	if err != nil {
		return protocol.Endpoint{}, false, errors.Wrap(err, "Client", "LookupEndpoint", "look up topic")
	}
	if resp.Status != protocol.StatusSuccess {
		return protocol.Endpoint{}, false, errors.WrapFatal(
			fmt.Errorf("%w: %s", errors.ErrLookupFailed, resp.Message),
			"Client", "LookupEndpoint", "look up topic")
	}
	if resp.Found == nil || !*resp.Found {
		return protocol.Endpoint{}, false, nil
	}
	return protocol.Endpoint{IP: resp.IP, Port: resp.Port}, true, nil
}

// SetValue stores a key/value pair in the registry's shared store.
func (c *Client) SetValue(ctx context.Context, key, data string) error {
	resp, err := c.Do(ctx, protocol.NewSet(c.self, key, data))
	if err != nil {
		return errors.Wrap(err, "Client", "SetValue", "set value")
	}
	if resp.Status != protocol.StatusSuccess {
		return errors.WrapFatal(
			fmt.Errorf("registry rejected set: %s", resp.Message),
			"Client", "SetValue", "set value")
	}
	return nil
}

// GetValue reads a key from the registry's shared store. A missing key
// is reported through found, not through the error.
func (c *Client) GetValue(ctx context.Context, key string) (string, bool, error) {
	resp, err := c.Do(ctx, protocol.NewGet(c.self, key))
	if err != nil {
		return "", false, errors.Wrap(err, "Client", "GetValue", "get value")
	}
	if resp.Status != protocol.StatusSuccess {
		return "", false, errors.WrapFatal(
			fmt.Errorf("registry rejected get: %s", resp.Message),
			"Client", "GetValue", "get value")
	}
	if resp.Found == nil || !*resp.Found {
		return "", false, nil
	}
	return resp.Data, true, nil
}

package protocol

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/c360/sensornet/errors"
)

// Topics are hierarchical path strings of the form /<node-type>/<node-id> for a
// node's identity, with an optional /<channel> suffix for each data channel the
// node exposes, e.g. /kinect/0/kinect.

// IdentityTopic returns the identity topic for a node of the given type and id.
func IdentityTopic(nodeType, nodeID string) string {
	return "/" + nodeType + "/" + nodeID
}

// ChannelTopic returns the topic for a named channel under an identity topic.
func ChannelTopic(identity, channel string) string {
	return identity + "/" + channel
}

// ParentNode strips the last path segment from a topic, mapping a channel
// topic back to the identity topic of the node that owns it.
// ParentNode("/kinect/0/kinect") == "/kinect/0".
func ParentNode(topic string) string {
	idx := strings.LastIndex(topic, "/")
	if idx <= 0 {
		return ""
	}
	return topic[:idx]
}

// Endpoint is a reachable ip:port pair.
type Endpoint struct {
	IP   string
	Port int
}

// String returns the endpoint in ip:port form, as stored by the registry.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.IP, strconv.Itoa(e.Port))
}

// Addr returns the endpoint as a tcp transport address.
func (e Endpoint) Addr() string {
	return "tcp://" + e.String()
}

// ParseEndpoint decomposes an ip:port string into an Endpoint.
func ParseEndpoint(s string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Endpoint{}, errors.WrapInvalid(err, "Endpoint", "Parse", "split host:port")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Endpoint{}, errors.WrapInvalid(fmt.Errorf("bad port %q", portStr), "Endpoint", "Parse", "parse port")
	}
	return Endpoint{IP: host, Port: port}, nil
}

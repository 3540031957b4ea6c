package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityTopic(t *testing.T) {
	assert.Equal(t, "/kinect/0", IdentityTopic("kinect", "0"))
}

func TestChannelTopic(t *testing.T) {
	assert.Equal(t, "/kinect/0/kinect", ChannelTopic("/kinect/0", "kinect"))
}

func TestParentNode(t *testing.T) {
	assert.Equal(t, "/kinect/0", ParentNode("/kinect/0/kinect"))
	assert.Equal(t, "/kinect", ParentNode("/kinect/0"))
	assert.Equal(t, "", ParentNode("/kinect"))
	assert.Equal(t, "", ParentNode("kinect"))
}

func TestEndpointString(t *testing.T) {
	ep := Endpoint{IP: "127.0.0.1", Port: 5555}
	assert.Equal(t, "127.0.0.1:5555", ep.String())
	assert.Equal(t, "tcp://127.0.0.1:5555", ep.Addr())
}

func TestParseEndpoint(t *testing.T) {
	ep, err := ParseEndpoint("10.0.0.5:6001")
	require.NoError(t, err)
	assert.Equal(t, Endpoint{IP: "10.0.0.5", Port: 6001}, ep)
}

func TestParseEndpointErrors(t *testing.T) {
	for _, s := range []string{"", "no-port", "host:notaport", "host:0", "host:99999"} {
		_, err := ParseEndpoint(s)
		assert.Error(t, err, "input %q", s)
	}
}

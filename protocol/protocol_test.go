package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sensornet/errors"
)

func TestValidateRequiresSelf(t *testing.T) {
	req := Request{Action: ActionLookup, Topic: "/cam/0"}
	assert.ErrorIs(t, req.Validate(), errors.ErrMissingSelf)
}

func TestValidateRequiresAction(t *testing.T) {
	req := Request{Self: "/a/0"}
	assert.ErrorIs(t, req.Validate(), errors.ErrMissingAction)
}

func TestValidateUnknownAction(t *testing.T) {
	req := Request{Self: "/a/0", Action: "bogus"}
	assert.ErrorIs(t, req.Validate(), errors.ErrInvalidAction)
}

func TestValidatePerAction(t *testing.T) {
	data := "v"
	tests := []struct {
		name string
		req  Request
		ok   bool
	}{
		{"heartbeat full", NewHeartbeat("/a/0", 12345), true},
		{"heartbeat without timestamp still valid", Request{Self: "/a/0", Action: ActionHeartbeat}, true},
		{"register full", NewRegister("/a/0", "/cam/0", "127.0.0.1", 6000), true},
		{"register missing topic", Request{Self: "/a/0", Action: ActionRegister, IP: "127.0.0.1", Port: 6000}, false},
		{"register missing ip", Request{Self: "/a/0", Action: ActionRegister, Topic: "/cam/0", Port: 6000}, false},
		{"register missing port", Request{Self: "/a/0", Action: ActionRegister, Topic: "/cam/0", IP: "127.0.0.1"}, false},
		{"register port out of range", Request{Self: "/a/0", Action: ActionRegister, Topic: "/cam/0", IP: "127.0.0.1", Port: 70000}, false},
		{"unregister full", NewUnregister("/a/0", "/cam/0"), true},
		{"unregister missing topic", Request{Self: "/a/0", Action: ActionUnregister}, false},
		{"lookup full", NewLookup("/a/0", "/cam/0"), true},
		{"lookup missing topic", Request{Self: "/a/0", Action: ActionLookup}, false},
		{"get full", NewGet("/a/0", "k"), true},
		{"get missing key", Request{Self: "/a/0", Action: ActionGet}, false},
		{"set full", NewSet("/a/0", "k", "v"), true},
		{"set empty data still present", Request{Self: "/a/0", Action: ActionSet, Key: "k", Data: new(string)}, true},
		{"set missing data", Request{Self: "/a/0", Action: ActionSet, Key: "k"}, false},
		{"set missing key", Request{Self: "/a/0", Action: ActionSet, Data: &data}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestMissingTimestamp(t *testing.T) {
	assert.True(t, Request{Self: "/a/0", Action: ActionHeartbeat}.MissingTimestamp())
	assert.False(t, NewHeartbeat("/a/0", 99).MissingTimestamp())
	assert.False(t, NewLookup("/a/0", "/t").MissingTimestamp())
}

func TestDecodeRequestFromWireJSON(t *testing.T) {
	// The wire form produced by any client, field names per the protocol.
	raw := `{"self":"/kinect/0","action":"register","topic":"/kinect/0/kinect","ip":"10.0.0.5","port":6001}`
	req, err := DecodeRequest([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "/kinect/0", req.Self)
	assert.Equal(t, ActionRegister, req.Action)
	assert.Equal(t, "/kinect/0/kinect", req.Topic)
	assert.Equal(t, "10.0.0.5", req.IP)
	assert.Equal(t, 6001, req.Port)
	assert.NoError(t, req.Validate())
}

func TestDecodeRequestMalformed(t *testing.T) {
	_, err := DecodeRequest([]byte("{not json"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestResponseFoundFieldPresence(t *testing.T) {
	// found:false must appear explicitly on lookup misses.
	miss := Response{Status: StatusSuccess, Topic: "/cam/1", Found: Bool(false)}
	data, err := miss.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"found":false`)
	assert.NotContains(t, string(data), `"ip"`)
	assert.NotContains(t, string(data), `"port"`)

	// Replies without a found concept must omit the field entirely.
	reg := Response{Status: StatusSuccess, Topic: "/cam/0", IP: "127.0.0.1", Port: 6000}
	data, err = reg.Encode()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "found")
}

func TestResponseRoundTrip(t *testing.T) {
	resp := Response{Status: StatusSuccess, Topic: "/cam/0", IP: "127.0.0.1", Port: 6000, Found: Bool(true)}
	data, err := resp.Encode()
	require.NoError(t, err)

	decoded, err := DecodeResponse(data)
	require.NoError(t, err)
	assert.True(t, decoded.OK())
	require.NotNil(t, decoded.Found)
	assert.True(t, *decoded.Found)
	assert.Equal(t, 6000, decoded.Port)
}

func TestDecodeResponseMalformed(t *testing.T) {
	_, err := DecodeResponse([]byte("nope"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMalformedReply)
	// The parse failure itself stays visible alongside the sentinel.
	assert.Contains(t, err.Error(), "invalid character")
}

func TestErrorResponse(t *testing.T) {
	resp := ErrorResponse(InvalidActionMessage)
	assert.False(t, resp.OK())
	assert.Equal(t, "Invalid action", resp.Message)
}

func TestRequestOmitsAbsentFields(t *testing.T) {
	data, err := NewLookup("/a/0", "/cam/0").Encode()
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, []string{"action", "self", "topic"}, sortedKeys(m))
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := range keys {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	return keys
}

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sensornet/protocol"
)

func TestRegisterAndLookup(t *testing.T) {
	s := NewStore()

	replaced := s.Register("/cam/0", "127.0.0.1", 6000)
	assert.False(t, replaced)

	ep, found := s.Lookup("/cam/0")
	require.True(t, found)
	assert.Equal(t, protocol.Endpoint{IP: "127.0.0.1", Port: 6000}, ep)
}

func TestRegisterOverwritesLastWriteWins(t *testing.T) {
	s := NewStore()
	s.Register("/cam/0", "127.0.0.1", 6000)

	replaced := s.Register("/cam/0", "10.0.0.5", 7000)
	assert.True(t, replaced)

	ep, found := s.Lookup("/cam/0")
	require.True(t, found)
	assert.Equal(t, protocol.Endpoint{IP: "10.0.0.5", Port: 7000}, ep)
	assert.Equal(t, 1, s.TopicCount())
}

func TestLookupMiss(t *testing.T) {
	s := NewStore()
	_, found := s.Lookup("/cam/9")
	assert.False(t, found)
}

func TestUnregister(t *testing.T) {
	s := NewStore()
	s.Register("/cam/0", "127.0.0.1", 6000)

	assert.True(t, s.Unregister("/cam/0"))
	_, found := s.Lookup("/cam/0")
	assert.False(t, found)

	assert.False(t, s.Unregister("/cam/0"))
}

func TestSetOverwrites(t *testing.T) {
	s := NewStore()
	s.Set("calib", "v1")
	s.Set("calib", "v2")

	data, found := s.Get("calib")
	require.True(t, found)
	assert.Equal(t, "v2", data)
}

func TestGetMiss(t *testing.T) {
	s := NewStore()
	_, found := s.Get("nope")
	assert.False(t, found)
}

func TestClearWipesTopicsOnly(t *testing.T) {
	s := NewStore()
	s.Register("/cam/0", "127.0.0.1", 6000)
	s.Set("k", "v")

	s.Clear()

	assert.Equal(t, 0, s.TopicCount())
	assert.Equal(t, 1, s.KeyCount())
	_, found := s.Get("k")
	assert.True(t, found)
}

func TestTopicsSnapshotIsDetached(t *testing.T) {
	s := NewStore()
	s.Register("/cam/0", "127.0.0.1", 6000)

	snap := s.Topics()
	snap["/cam/1"] = "10.0.0.1:1"

	assert.Equal(t, 1, s.TopicCount())
	assert.Equal(t, "127.0.0.1:6000", snap["/cam/0"])
}

package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame() Frame {
	return Frame{
		Topic: "/kinect/0/kinect",
		Meta: Metadata{
			Width:           640,
			Height:          576,
			Channels:        1,
			BitDepth:        8,
			SourceTS:        1700000000123,
			DeviceTimestamp: 987654,
		},
		Data: []byte{0x01, 0x02, 0x03, 0x04},
	}
}

func TestEncodeDecode(t *testing.T) {
	f := testFrame()

	parts, err := f.Encode()
	require.NoError(t, err)
	require.Len(t, parts, PartCount)
	assert.Equal(t, "/kinect/0/kinect", string(parts[0]))
	assert.JSONEq(t, `{
		"width":640,"height":576,"channels":1,"bit_depth":8,
		"source_ts":1700000000123,"device_timestamp":987654
	}`, string(parts[1]))

	decoded, err := Decode(parts)
	require.NoError(t, err)
	assert.Equal(t, f, decoded)
}

func TestEncodeRejectsEmptyTopic(t *testing.T) {
	f := testFrame()
	f.Topic = ""
	_, err := f.Encode()
	assert.Error(t, err)
}

func TestDecodeRejectsWrongPartCount(t *testing.T) {
	_, err := Decode([][]byte{[]byte("/t")})
	assert.Error(t, err)

	_, err = Decode([][]byte{[]byte("/t"), []byte("{}"), []byte("x"), []byte("extra")})
	assert.Error(t, err)
}

func TestDecodeRejectsBadMetadata(t *testing.T) {
	_, err := Decode([][]byte{[]byte("/t"), []byte("not json"), []byte("x")})
	assert.Error(t, err)
}

func TestMetadataSize(t *testing.T) {
	m := Metadata{Width: 640, Height: 576, Channels: 1, BitDepth: 8}
	assert.Equal(t, 640*576, m.Size())

	m.BitDepth = 16
	assert.Equal(t, 640*576*2, m.Size())
}

func TestDecodeEmptyPayloadAllowed(t *testing.T) {
	f := testFrame()
	f.Data = nil
	parts, err := f.Encode()
	require.NoError(t, err)

	decoded, err := Decode(parts)
	require.NoError(t, err)
	assert.Empty(t, decoded.Data)
}

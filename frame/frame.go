// Package frame defines the envelope exchanged on data channels: a three-part
// message carrying the topic, a JSON metadata object, and the raw pixel
// buffer. The coordination core never inspects the payload bytes; producers
// and consumers agree on their meaning through the metadata.
package frame

import (
	"encoding/json"
	"fmt"

	"github.com/c360/sensornet/errors"
)

// PartCount is the number of message parts in a frame envelope.
const PartCount = 3

// Metadata describes the pixel buffer of a frame.
type Metadata struct {
	Width           int   `json:"width"`
	Height          int   `json:"height"`
	Channels        int   `json:"channels"`
	BitDepth        int   `json:"bit_depth"`
	SourceTS        int64 `json:"source_ts"`        // producer wall clock, ms since epoch
	DeviceTimestamp int64 `json:"device_timestamp"` // device clock, device units
}

// Frame is one captured image travelling over a data channel.
type Frame struct {
	Topic string
	Meta  Metadata
	Data  []byte
}

// Size returns the expected payload size in bytes implied by the metadata,
// assuming bit depths that are whole bytes.
func (m Metadata) Size() int {
	return m.Width * m.Height * m.Channels * (m.BitDepth / 8)
}

// Encode serializes the frame into its three wire parts:
// topic, metadata JSON, payload.
func (f Frame) Encode() ([][]byte, error) {
	if f.Topic == "" {
		return nil, errors.WrapInvalid(fmt.Errorf("empty topic"), "Frame", "Encode", "check topic")
	}
	meta, err := json.Marshal(f.Meta)
	if err != nil {
		return nil, errors.Wrap(err, "Frame", "Encode", "marshal metadata")
	}
	return [][]byte{[]byte(f.Topic), meta, f.Data}, nil
}

// Decode parses a frame from its wire parts, rejecting envelopes that do not
// have exactly three parts.
func Decode(parts [][]byte) (Frame, error) {
	if len(parts) != PartCount {
		return Frame{}, errors.WrapInvalid(
			fmt.Errorf("expected %d parts, got %d", PartCount, len(parts)),
			"Frame", "Decode", "check part count")
	}

	var meta Metadata
	if err := json.Unmarshal(parts[1], &meta); err != nil {
		return Frame{}, errors.WrapInvalid(err, "Frame", "Decode", "unmarshal metadata")
	}

	return Frame{
		Topic: string(parts[0]),
		Meta:  meta,
		Data:  parts[2],
	}, nil
}

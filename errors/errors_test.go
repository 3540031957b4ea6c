package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassString(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(99).String())
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
		invalid   bool
		fatal     bool
	}{
		{"nil", nil, false, false, false},
		{"request timeout", ErrRequestTimeout, true, false, false},
		{"connection lost", ErrConnectionLost, true, false, false},
		{"deadline exceeded", context.DeadlineExceeded, true, false, false},
		{"missing self", ErrMissingSelf, false, true, false},
		{"invalid action", ErrInvalidAction, false, true, false},
		{"transport closed", ErrTransportClosed, false, false, true},
		{"registration failed", ErrRegistrationFailed, false, false, true},
		{"invalid config", ErrInvalidConfig, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, IsTransient(tt.err))
			assert.Equal(t, tt.invalid, IsInvalid(tt.err))
			assert.Equal(t, tt.fatal, IsFatal(tt.err))
		})
	}
}

func TestClassificationSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", ErrRegistrationFailed)
	assert.True(t, IsFatal(err))
	assert.False(t, IsTransient(err))
}

func TestWrapFormat(t *testing.T) {
	base := New("boom")
	err := Wrap(base, "Client", "Do", "send request")
	require.Error(t, err)
	assert.Equal(t, "Client.Do: send request failed: boom", err.Error())
	assert.True(t, Is(err, base))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "c", "m", "a"))
	assert.NoError(t, WrapTransient(nil, "c", "m", "a"))
	assert.NoError(t, WrapInvalid(nil, "c", "m", "a"))
	assert.NoError(t, WrapFatal(nil, "c", "m", "a"))
}

func TestWrapClassified(t *testing.T) {
	base := New("socket gone")

	err := WrapTransient(base, "Client", "roundTrip", "receive reply")
	assert.True(t, IsTransient(err))
	assert.Equal(t, ErrorTransient, Classify(err))

	err = WrapFatal(base, "Server", "Run", "bind socket")
	assert.True(t, IsFatal(err))
	assert.Equal(t, ErrorFatal, Classify(err))

	err = WrapInvalid(base, "Handler", "Handle", "decode request")
	assert.True(t, IsInvalid(err))
	assert.Equal(t, ErrorInvalid, Classify(err))

	var ce *ClassifiedError
	require.True(t, As(err, &ce))
	assert.Equal(t, "Handler", ce.Component)
	assert.Equal(t, "Handle", ce.Operation)
	assert.True(t, Is(err, base))
}

func TestClassifyDefaultsToTransient(t *testing.T) {
	assert.Equal(t, ErrorTransient, Classify(New("mystery")))
}

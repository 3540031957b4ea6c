// Package protocol defines the JSON wire protocol spoken between nodes and the
// Central Name Server: request/response types, the action set, and per-action
// validation.
//
// Every request is a single JSON object carrying the sender's identity topic in
// "self" and the operation in "action". Every accepted request receives exactly
// one JSON reply with a "success" or "error" status. Validation failures are
// answered with an error response rather than silence, so a strict
// request/reply client is never left blocked on a dropped request.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/c360/sensornet/errors"
)

// Action identifies a registry operation.
type Action string

// The action set understood by the Central Name Server.
const (
	ActionHeartbeat  Action = "heartbeat"
	ActionRegister   Action = "register"
	ActionUnregister Action = "unregister"
	ActionLookup     Action = "lookup"
	ActionGet        Action = "get"
	ActionSet        Action = "set"
)

// Response status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// InvalidActionMessage is the error message returned for unknown actions.
const InvalidActionMessage = "Invalid action"

// Request is a single registry request. Self carries the sender's identity
// topic, which is not necessarily the topic being acted on. Zero-valued
// fields are treated as absent on the wire.
type Request struct {
	Self      string  `json:"self,omitempty"`
	Action    Action  `json:"action,omitempty"`
	Topic     string  `json:"topic,omitempty"`
	IP        string  `json:"ip,omitempty"`
	Port      int     `json:"port,omitempty"`
	Key       string  `json:"key,omitempty"`
	Data      *string `json:"data,omitempty"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

// Response is a single registry reply. Found is a pointer so that lookup and
// get replies carry an explicit found:true/false while other replies omit the
// field entirely.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Topic   string `json:"topic,omitempty"`
	IP      string `json:"ip,omitempty"`
	Port    int    `json:"port,omitempty"`
	Found   *bool  `json:"found,omitempty"`
	Key     string `json:"key,omitempty"`
	Data    string `json:"data,omitempty"`
}

// Bool returns a pointer to b, for populating Response.Found.
func Bool(b bool) *bool { return &b }

// NewHeartbeat builds a heartbeat request for the given identity topic.
func NewHeartbeat(self string, timestamp int64) Request {
	return Request{Self: self, Action: ActionHeartbeat, Timestamp: timestamp}
}

// NewRegister builds a register request announcing topic at ip:port.
func NewRegister(self, topic, ip string, port int) Request {
	return Request{Self: self, Action: ActionRegister, Topic: topic, IP: ip, Port: port}
}

// NewUnregister builds an unregister request for topic.
func NewUnregister(self, topic string) Request {
	return Request{Self: self, Action: ActionUnregister, Topic: topic}
}

// NewLookup builds a lookup request for topic.
func NewLookup(self, topic string) Request {
	return Request{Self: self, Action: ActionLookup, Topic: topic}
}

// NewGet builds a get request for key.
func NewGet(self, key string) Request {
	return Request{Self: self, Action: ActionGet, Key: key}
}

// NewSet builds a set request storing data under key.
func NewSet(self, key, data string) Request {
	return Request{Self: self, Action: ActionSet, Key: key, Data: &data}
}

// Validate checks that the request carries self, a known action, and the
// fields that action requires. A heartbeat without a timestamp is legal;
// callers that care use MissingTimestamp to log the condition.
func (r Request) Validate() error {
	if r.Self == "" {
		return errors.ErrMissingSelf
	}
	if r.Action == "" {
		return errors.ErrMissingAction
	}

	switch r.Action {
	case ActionHeartbeat:
		// Missing timestamp is logged by the server but never rejected.
		return nil
	case ActionRegister:
		if r.Topic == "" {
			return fmt.Errorf("%w: topic", errors.ErrMissingField)
		}
		if r.IP == "" {
			return fmt.Errorf("%w: ip", errors.ErrMissingField)
		}
		if r.Port <= 0 || r.Port > 65535 {
			return fmt.Errorf("%w: port", errors.ErrMissingField)
		}
		return nil
	case ActionUnregister, ActionLookup:
		if r.Topic == "" {
			return fmt.Errorf("%w: topic", errors.ErrMissingField)
		}
		return nil
	case ActionGet:
		if r.Key == "" {
			return fmt.Errorf("%w: key", errors.ErrMissingField)
		}
		return nil
	case ActionSet:
		if r.Key == "" {
			return fmt.Errorf("%w: key", errors.ErrMissingField)
		}
		if r.Data == nil {
			return fmt.Errorf("%w: data", errors.ErrMissingField)
		}
		return nil
	default:
		return errors.ErrInvalidAction
	}
}

// MissingTimestamp reports whether a heartbeat arrived without its timestamp.
func (r Request) MissingTimestamp() bool {
	return r.Action == ActionHeartbeat && r.Timestamp == 0
}

// Encode serializes the request to its wire form.
func (r Request) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "Request", "Encode", "marshal")
	}
	return data, nil
}

// DecodeRequest parses a request from its wire form.
func DecodeRequest(data []byte) (Request, error) {
	var r Request
	if err := json.Unmarshal(data, &r); err != nil {
		return Request{}, errors.WrapInvalid(err, "Request", "Decode", "unmarshal")
	}
	return r, nil
}

// OK reports whether the response carries a success status.
func (r Response) OK() bool { return r.Status == StatusSuccess }

// Encode serializes the response to its wire form.
func (r Response) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "Response", "Encode", "marshal")
	}
	return data, nil
}

// DecodeResponse parses a response from its wire form.
func DecodeResponse(data []byte) (Response, error) {
	var r Response
	if err := json.Unmarshal(data, &r); err != nil {
		return Response{}, errors.WrapInvalid(
			fmt.Errorf("%w: %w", errors.ErrMalformedReply, err),
			"Response", "Decode", "unmarshal")
	}
	return r, nil
}

// ErrorResponse builds an error reply with the given message.
func ErrorResponse(message string) Response {
	return Response{Status: StatusError, Message: message}
}

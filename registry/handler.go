package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/c360/sensornet/errors"
	"github.com/c360/sensornet/protocol"
)

// Handler validates decoded requests and dispatches them against the store.
// Every request, however malformed, yields exactly one response: validation
// failures are answered with an error status instead of being dropped, so a
// strict request/reply client is never left waiting.
type Handler struct {
	store   *Store
	logger  *slog.Logger
	metrics *Metrics
}

// NewHandler creates a handler over the given store. Logger may be nil.
func NewHandler(store *Store, logger *slog.Logger, metrics *Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:   store,
		logger:  logger.With("component", "registry"),
		metrics: metrics,
	}
}

// Handle processes one raw request and returns the response to send.
func (h *Handler) Handle(raw []byte) protocol.Response {
	start := time.Now()

	req, err := protocol.DecodeRequest(raw)
	if err != nil {
		h.logger.Error("malformed request", "error", err, "raw", string(raw))
		h.metrics.observeRequest("unknown", protocol.StatusError, time.Since(start).Seconds())
		return protocol.ErrorResponse("Malformed request")
	}

	if err := req.Validate(); err != nil {
		h.logger.Error("invalid request", "error", err, "raw", string(raw))
		h.metrics.observeRequest(string(req.Action), protocol.StatusError, time.Since(start).Seconds())
		if errors.Is(err, errors.ErrInvalidAction) {
			return protocol.ErrorResponse(protocol.InvalidActionMessage)
		}
		return protocol.ErrorResponse(err.Error())
	}

	if req.Action != protocol.ActionHeartbeat {
		h.logger.Info("received request", "action", req.Action, "self", req.Self, "topic", req.Topic)
	}

	resp := h.dispatch(req)
	h.metrics.observeRequest(string(req.Action), resp.Status, time.Since(start).Seconds())
	h.metrics.setStoreSizes(h.store.TopicCount(), h.store.KeyCount())
	return resp
}

func (h *Handler) dispatch(req protocol.Request) protocol.Response {
	switch req.Action {
	case protocol.ActionHeartbeat:
		return h.heartbeat(req)
	case protocol.ActionRegister:
		return h.register(req)
	case protocol.ActionUnregister:
		return h.unregister(req)
	case protocol.ActionLookup:
		return h.lookup(req)
	case protocol.ActionGet:
		return h.get(req)
	case protocol.ActionSet:
		return h.set(req)
	default:
		// Validate rejects unknown actions before dispatch.
		return protocol.ErrorResponse(protocol.InvalidActionMessage)
	}
}

func (h *Handler) heartbeat(req protocol.Request) protocol.Response {
	if req.MissingTimestamp() {
		h.logger.Warn("heartbeat without timestamp", "self", req.Self)
	}
	h.logger.Debug("received heartbeat", "self", req.Self, "timestamp", req.Timestamp)
	h.metrics.observeHeartbeat()
	return protocol.Response{Status: protocol.StatusSuccess}
}

func (h *Handler) register(req protocol.Request) protocol.Response {
	h.logger.Info("registering topic", "topic", req.Topic, "ip", req.IP, "port", req.Port)
	if replaced := h.store.Register(req.Topic, req.IP, req.Port); replaced {
		h.logger.Warn("topic already registered, overwriting", "topic", req.Topic)
	}

	if h.logger.Enabled(context.Background(), slog.LevelDebug) {
		for topic, endpoint := range h.store.Topics() {
			h.logger.Debug("registered topic", "topic", topic, "endpoint", endpoint)
		}
	}

	return protocol.Response{
		Status: protocol.StatusSuccess,
		Topic:  req.Topic,
		IP:     req.IP,
		Port:   req.Port,
	}
}

func (h *Handler) unregister(req protocol.Request) protocol.Response {
	h.logger.Info("unregistering topic", "topic", req.Topic)
	if removed := h.store.Unregister(req.Topic); !removed {
		// Not observable by the caller beyond this log line.
		h.logger.Error("topic not registered", "topic", req.Topic)
	}
	return protocol.Response{
		Status: protocol.StatusSuccess,
		Topic:  req.Topic,
	}
}

func (h *Handler) lookup(req protocol.Request) protocol.Response {
	ep, found := h.store.Lookup(req.Topic)
	if !found {
		return protocol.Response{
			Status: protocol.StatusSuccess,
			Topic:  req.Topic,
			Found:  protocol.Bool(false),
		}
	}
	return protocol.Response{
		Status: protocol.StatusSuccess,
		Topic:  req.Topic,
		Found:  protocol.Bool(true),
		IP:     ep.IP,
		Port:   ep.Port,
	}
}

func (h *Handler) get(req protocol.Request) protocol.Response {
	data, found := h.store.Get(req.Key)
	if !found {
		return protocol.Response{
			Status: protocol.StatusSuccess,
			Key:    req.Key,
			Found:  protocol.Bool(false),
		}
	}
	return protocol.Response{
		Status: protocol.StatusSuccess,
		Key:    req.Key,
		Found:  protocol.Bool(true),
		Data:   data,
	}
}

func (h *Handler) set(req protocol.Request) protocol.Response {
	h.store.Set(req.Key, *req.Data)
	return protocol.Response{
		Status: protocol.StatusSuccess,
		Key:    req.Key,
	}
}

// Package registry implements the Central Name Server: an in-memory store
// mapping topics to endpoints and keys to values, a protocol handler that
// validates and dispatches requests, and the REP server loop that owns the
// reply socket.
package registry

import (
	"github.com/c360/sensornet/protocol"
)

// Store holds the registry's two maps: topic → endpoint and key → value.
// It performs pure data operations with no I/O and no locking; the server
// loop is single-threaded and is the only writer.
//
// Endpoints are stored internally in their ip:port wire form and decomposed
// on lookup, mirroring how they travel in register requests.
type Store struct {
	topics map[string]string
	kv     map[string]string
}

// NewStore creates an empty store. Registry state never persists across
// process restarts.
func NewStore() *Store {
	return &Store{
		topics: make(map[string]string),
		kv:     make(map[string]string),
	}
}

// Register inserts or overwrites the endpoint for a topic. Last write wins;
// it returns true when an existing entry was replaced so the caller can log
// the conflict. Registration is never rejected.
func (s *Store) Register(topic, ip string, port int) (replaced bool) {
	_, replaced = s.topics[topic]
	s.topics[topic] = protocol.Endpoint{IP: ip, Port: port}.String()
	return replaced
}

// Unregister removes the entry for a topic, returning false if no entry
// existed. An absent topic is not a failure the caller can observe beyond
// the handler's log line.
func (s *Store) Unregister(topic string) (removed bool) {
	if _, ok := s.topics[topic]; !ok {
		return false
	}
	delete(s.topics, topic)
	return true
}

// Lookup resolves a topic to its endpoint.
func (s *Store) Lookup(topic string) (protocol.Endpoint, bool) {
	raw, ok := s.topics[topic]
	if !ok {
		return protocol.Endpoint{}, false
	}
	ep, err := protocol.ParseEndpoint(raw)
	if err != nil {
		// Entries are formatted by Register; a parse failure means the map
		// was corrupted, which single-threaded ownership rules out.
		return protocol.Endpoint{}, false
	}
	return ep, true
}

// Set stores data under key, unconditionally overwriting.
func (s *Store) Set(key, data string) {
	s.kv[key] = data
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (string, bool) {
	data, ok := s.kv[key]
	return data, ok
}

// Clear wipes the topic registry. The key/value store is left untouched.
func (s *Store) Clear() {
	s.topics = make(map[string]string)
}

// Topics returns a snapshot of all registered topics and their endpoints.
func (s *Store) Topics() map[string]string {
	out := make(map[string]string, len(s.topics))
	for k, v := range s.topics {
		out[k] = v
	}
	return out
}

// TopicCount returns the number of registered topics.
func (s *Store) TopicCount() int { return len(s.topics) }

// KeyCount returns the number of stored keys.
func (s *Store) KeyCount() int { return len(s.kv) }

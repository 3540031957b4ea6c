// Package sensornet provides a small distributed sensor-processing framework:
// independent node processes that capture, transform, and view camera frames over
// publish/subscribe channels, coordinated through a single registry process
// (the Central Name Server, CNS).
//
// # Architecture
//
// The system has exactly one coordination point and any number of peer nodes:
//
//	┌─────────────────────────────────────┐
//	│       Central Name Server           │  topic → endpoint registry,
//	│        (registry.Server)            │  key/value store, heartbeats
//	└─────────────────────────────────────┘
//	           ↑ JSON over REQ/REP
//	┌─────────────────────────────────────┐
//	│            Nodes                    │  node.Node: client, discovery,
//	│  (producers, processors, viewers)   │  heartbeat, pub/sub lifecycle
//	└─────────────────────────────────────┘
//	           ↓ frames over PUB/SUB
//	┌─────────────────────────────────────┐
//	│         Data Channels               │  three-part frame envelopes,
//	│   (topic-prefix filtered, HWM)      │  oldest-drop flow control
//	└─────────────────────────────────────┘
//
// A node binds its publisher to an OS-assigned ephemeral port, registers the
// bound endpoint under one or more topics, and heartbeats against the registry
// in the background. Consumers resolve a topic through the registry, retrying
// until the producer appears, then connect a subscriber with a prefix filter
// equal to the topic.
//
// # Packages
//
//   - protocol: wire types and per-action request validation
//   - registry: in-memory store, protocol handler, and REP server loop
//   - node: transport client, discovery operations, publisher/subscriber
//     lifecycle, heartbeat emitter, and node composition
//   - frame: the three-part frame envelope exchanged on data channels
//   - config: JSON configuration for the registry daemon and nodes
//   - errors: classified error taxonomy shared by all components
//   - metric: Prometheus metrics registration
//
// Commands live under cmd/: cns (the registry daemon), framegen (synthetic
// frame producer), and framesink (frame consumer).
package sensornet

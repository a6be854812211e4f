package bus

import "context"

// BroadcastTransport carries serialized broadcast envelopes between hosts.
// Two delivery strategies exist behind this one interface: pipeline-adjacent
// brokers (NATS, Kafka) for multi-host canvases, and the in-process local
// transport for tests and single-process setups. All transports are
// best-effort; the bus never depends on a publish being received.
type BroadcastTransport interface {
	// Publish sends one serialized envelope. Called after Subscribe and,
	// for networked transports, after Start.
	Publish(data []byte) error
	// Subscribe registers the single inbound handler. If the transport is
	// already started, delivery begins immediately; otherwise it is
	// activated by Start.
	Subscribe(handler func(data []byte)) error
	// Start activates the transport (connects, begins consuming).
	Start(ctx context.Context) error
	// Stop tears the transport down.
	Stop(ctx context.Context) error
}

package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
)

// DefaultNATSSubject is the single subject all broadcast envelopes share.
// Event-level filtering happens in the bus, not in the broker.
const DefaultNATSSubject = "stickernest.widget.broadcast"

// NATSTransport carries broadcast envelopes over NATS.
type NATSTransport struct {
	url     string
	subject string
	logger  *slog.Logger

	mu      sync.RWMutex
	conn    *nats.Conn
	sub     *nats.Subscription
	handler func([]byte)
}

// NATSOption configures a NATSTransport.
type NATSOption func(*NATSTransport)

// WithNATSSubject overrides the broadcast subject.
func WithNATSSubject(subject string) NATSOption {
	return func(t *NATSTransport) { t.subject = subject }
}

// WithNATSLogger sets the transport's log sink.
func WithNATSLogger(l *slog.Logger) NATSOption {
	return func(t *NATSTransport) { t.logger = l }
}

// NewNATSTransport creates a transport for the given server URL. Connection
// happens in Start.
func NewNATSTransport(url string, opts ...NATSOption) *NATSTransport {
	if url == "" {
		url = nats.DefaultURL
	}
	t := &NATSTransport{
		url:     url,
		subject: DefaultNATSSubject,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Publish sends one envelope to the broadcast subject.
func (t *NATSTransport) Publish(data []byte) error {
	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("nats connection not established; call Start first")
	}
	if err := conn.Publish(t.subject, data); err != nil {
		return fmt.Errorf("publish to subject %q: %w", t.subject, err)
	}
	return nil
}

// Subscribe registers the inbound handler. If the transport is already
// connected, the subscription is activated immediately.
func (t *NATSTransport) Subscribe(handler func(data []byte)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.handler = handler
	if t.conn != nil {
		return t.subscribeLocked()
	}
	return nil
}

func (t *NATSTransport) subscribeLocked() error {
	h := t.handler
	sub, err := t.conn.Subscribe(t.subject, func(msg *nats.Msg) {
		h(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe to subject %q: %w", t.subject, err)
	}
	t.sub = sub
	return nil
}

// Start connects to NATS and activates a pending subscription.
func (t *NATSTransport) Start(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	conn, err := nats.Connect(t.url)
	if err != nil {
		return fmt.Errorf("connect to NATS at %s: %w", t.url, err)
	}
	t.conn = conn

	if t.handler != nil {
		if err := t.subscribeLocked(); err != nil {
			conn.Close()
			t.conn = nil
			return err
		}
	}

	t.logger.Info("NATS broadcast transport started", "url", t.url, "subject", t.subject)
	return nil
}

// Stop unsubscribes and disconnects.
func (t *NATSTransport) Stop(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sub != nil {
		if err := t.sub.Unsubscribe(); err != nil {
			t.logger.Error("failed to unsubscribe", "subject", t.subject, "error", err)
		}
		t.sub = nil
	}
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.logger.Info("NATS broadcast transport stopped")
	return nil
}

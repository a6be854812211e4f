package metrics

import (
	"context"

	"github.com/google/uuid"

	"github.com/hkcm91/stickernest-runtime/store"
)

// instrumentedStore wraps a StateStore and counts writes by outcome.
type instrumentedStore struct {
	inner     store.StateStore
	collector *Collector
}

// InstrumentStore wraps a StateStore so every Save is counted on the
// collector's state write metric.
func (c *Collector) InstrumentStore(inner store.StateStore) store.StateStore {
	return &instrumentedStore{inner: inner, collector: c}
}

func (s *instrumentedStore) Load(ctx context.Context, widgetID uuid.UUID) (store.State, error) {
	return s.inner.Load(ctx, widgetID)
}

func (s *instrumentedStore) Save(ctx context.Context, widgetID uuid.UUID, state store.State) error {
	err := s.inner.Save(ctx, widgetID, state)
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.collector.StateWrites.WithLabelValues(status).Inc()
	return err
}

func (s *instrumentedStore) Delete(ctx context.Context, widgetID uuid.UUID) error {
	return s.inner.Delete(ctx, widgetID)
}

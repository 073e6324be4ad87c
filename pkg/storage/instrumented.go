// ABOUTME: Store decorator that records logs and metrics per backend call
// ABOUTME: Wraps any backend; the index itself stays unaware of observability

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/nainya/entitystore/internal/logger"
	"github.com/nainya/entitystore/internal/metrics"
)

// InstrumentedStore wraps a Store with logging and Prometheus metrics
type InstrumentedStore struct {
	inner   Store
	backend string
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewInstrumentedStore wraps inner. log and m may be nil.
func NewInstrumentedStore(inner Store, backend string, log *logger.Logger, m *metrics.Metrics) *InstrumentedStore {
	if log == nil {
		log = logger.Nop()
	}
	return &InstrumentedStore{inner: inner, backend: backend, log: log, metrics: m}
}

func (s *InstrumentedStore) observe(op, key string, start time.Time, err error, written int) {
	d := time.Since(start)
	// a missing key is an expected outcome, not a backend failure
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	s.metrics.RecordStorageOperation(s.backend, op, err, d, written)
	s.log.LogStorageOperation(s.backend, op, key, d, err)
}

// Get delegates to the wrapped store
func (s *InstrumentedStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := s.inner.Get(ctx, key)
	s.observe("get", key, start, err, 0)
	return data, err
}

// Set delegates to the wrapped store
func (s *InstrumentedStore) Set(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	err := s.inner.Set(ctx, key, data)
	written := 0
	if err == nil {
		written = len(data)
	}
	s.observe("set", key, start, err, written)
	return err
}

// Delete delegates to the wrapped store
func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.inner.Delete(ctx, key)
	s.observe("delete", key, start, err, 0)
	return err
}

// List delegates to the wrapped store
func (s *InstrumentedStore) List(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	keys, err := s.inner.List(ctx, prefix)
	s.observe("list", prefix, start, err, 0)
	return keys, err
}

// Package memory stores collected records in-memory for development and
// tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/openquant/collector/internal/collector"
)

// RecordStore keeps records in a slice, in insertion order.
type RecordStore struct {
	mu      sync.RWMutex
	records []collector.Record
}

// NewRecordStore creates an empty in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{}
}

// SaveRecord appends the record and returns its ID.
func (s *RecordStore) SaveRecord(_ context.Context, rec collector.Record) (string, error) {
	if rec.ID == "" {
		return "", fmt.Errorf("record id is required")
	}
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	return rec.ID, nil
}

// Ping always succeeds.
func (s *RecordStore) Ping(context.Context) error { return nil }

// Records returns a copy of everything stored so far.
func (s *RecordStore) Records() []collector.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]collector.Record, len(s.records))
	copy(out, s.records)
	return out
}

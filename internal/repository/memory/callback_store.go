// Package memory holds process-local implementations of the callback ports.
package memory

import (
	"context"
	"errors"
	"sync"

	"callback-queue-service/internal/domain/callback"
)

var ErrInjected = errors.New("memory store: injected failure")

// CallbackStore keeps callback requests in a map. It can be told to fail
// the next N writes or loads.
type CallbackStore struct {
	mu         sync.Mutex
	records    map[string]*callback.CallbackRequest
	failWrites int
	failLoads  int
	writes     int
}

func NewCallbackStore(seed ...*callback.CallbackRequest) *CallbackStore {
	s := &CallbackStore{records: make(map[string]*callback.CallbackRequest, len(seed))}
	for _, r := range seed {
		s.records[r.ID] = r.Clone()
	}
	return s
}

func (s *CallbackStore) Load(_ context.Context) ([]*callback.CallbackRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failLoads > 0 {
		s.failLoads--
		return nil, ErrInjected
	}

	out := make([]*callback.CallbackRequest, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	return out, nil
}

// SaveAll replaces the stored set.
func (s *CallbackStore) SaveAll(_ context.Context, requests []*callback.CallbackRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.consumeWriteFailure(); err != nil {
		return err
	}

	records := make(map[string]*callback.CallbackRequest, len(requests))
	for _, r := range requests {
		records[r.ID] = r.Clone()
	}
	s.records = records
	return nil
}

// FailNextWrites makes the next n SaveAll calls return ErrInjected.
func (s *CallbackStore) FailNextWrites(n int) {
	s.mu.Lock()
	s.failWrites = n
	s.mu.Unlock()
}

func (s *CallbackStore) FailNextLoads(n int) {
	s.mu.Lock()
	s.failLoads = n
	s.mu.Unlock()
}

// Writes counts write calls, failed ones included.
func (s *CallbackStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Get returns a copy of the stored record.
func (s *CallbackStore) Get(id string) (*callback.CallbackRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

func (s *CallbackStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *CallbackStore) consumeWriteFailure() error {
	s.writes++
	if s.failWrites > 0 {
		s.failWrites--
		return ErrInjected
	}
	return nil
}

// RecordCallbackStore adds per-record upserts on top of CallbackStore.
type RecordCallbackStore struct {
	*CallbackStore
}

func NewRecordCallbackStore(seed ...*callback.CallbackRequest) *RecordCallbackStore {
	return &RecordCallbackStore{CallbackStore: NewCallbackStore(seed...)}
}

func (s *RecordCallbackStore) Upsert(_ context.Context, requests []*callback.CallbackRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.consumeWriteFailure(); err != nil {
		return err
	}
	for _, r := range requests {
		s.records[r.ID] = r.Clone()
	}
	return nil
}

package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

var _ Store[any] = &InMemoryStore[any]{}

type inMemoryKey struct {
	aggregateType string
	aggregateID   string
}

// InMemoryStore is a map-based, thread-safe inmemory Snapshot store
// that can be used for storing long-lived Aggregate Roots.
//
// Only the snapshot with the highest version is kept for each Aggregate,
// like BlobStore does after pruning.
//
// Since there is no entry eviction, it is suggested to use this store
// only for test scenarios.
type InMemoryStore[T any] struct {
	mx        sync.RWMutex
	snapshots map[inMemoryKey]Snapshot[T]
}

// NewInMemoryStore returns a fresh new instance of the InMemoryStore snapshot store.
func NewInMemoryStore[T any]() *InMemoryStore[T] {
	return &InMemoryStore[T]{
		snapshots: make(map[inMemoryKey]Snapshot[T]),
	}
}

// Save records the snapshot, unless a snapshot with a higher version
// has already been recorded for the same Aggregate.
func (s *InMemoryStore[T]) Save(_ context.Context, snapshot Snapshot[T]) error {
	if snapshot.AggregateType == "" || snapshot.AggregateID == "" {
		return fmt.Errorf("snapshot.InMemoryStore.Save: %w", ErrEmptyIdentifier)
	}

	s.mx.Lock()
	defer s.mx.Unlock()

	key := inMemoryKey{aggregateType: snapshot.AggregateType, aggregateID: snapshot.AggregateID}

	if current, ok := s.snapshots[key]; ok && current.LastVersion.IsNewerThan(snapshot.LastVersion) {
		return nil
	}

	s.snapshots[key] = snapshot

	return nil
}

// Get returns the latest snapshot recorded for the Aggregate.
// ErrNotFound is returned if no snapshot has been recorded.
func (s *InMemoryStore[T]) Get(_ context.Context, aggregateType, aggregateID string) (Snapshot[T], error) {
	if aggregateType == "" || aggregateID == "" {
		return Snapshot[T]{}, fmt.Errorf("snapshot.InMemoryStore.Get: %w", ErrEmptyIdentifier)
	}

	s.mx.RLock()
	defer s.mx.RUnlock()

	if snap, ok := s.snapshots[inMemoryKey{aggregateType: aggregateType, aggregateID: aggregateID}]; ok {
		return snap, nil
	}

	return Snapshot[T]{}, ErrNotFound
}

// DeleteByAggregateID implements the snapshot.Deleter interface.
func (s *InMemoryStore[T]) DeleteByAggregateID(_ context.Context, aggregateID, aggregateType string) error {
	if aggregateType == "" || aggregateID == "" {
		return fmt.Errorf("snapshot.InMemoryStore.DeleteByAggregateID: %w", ErrEmptyIdentifier)
	}

	s.mx.Lock()
	defer s.mx.Unlock()

	delete(s.snapshots, inMemoryKey{aggregateType: aggregateType, aggregateID: aggregateID})

	return nil
}

// DeleteByAggregateType implements the snapshot.Deleter interface.
func (s *InMemoryStore[T]) DeleteByAggregateType(_ context.Context, aggregateType string) error {
	if aggregateType == "" {
		return fmt.Errorf("snapshot.InMemoryStore.DeleteByAggregateType: %w", ErrEmptyIdentifier)
	}

	s.mx.Lock()
	defer s.mx.Unlock()

	for key := range s.snapshots {
		if key.aggregateType == aggregateType {
			delete(s.snapshots, key)
		}
	}

	return nil
}

// MarshalJSON serializes the internal state of the store for debugging purposes.
//
// When relying on this functionality, make sure that the fields of your Aggregate Root
// state are correctly exported, or that your Aggregate Root implements json.Unmarshaler
// and json.Marshaler interfaces, for correct (de)-serialization.
func (s *InMemoryStore[T]) MarshalJSON() ([]byte, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()

	byType := make(map[string]map[string]Snapshot[T])

	for key, snap := range s.snapshots {
		if _, ok := byType[key.aggregateType]; !ok {
			byType[key.aggregateType] = make(map[string]Snapshot[T])
		}

		byType[key.aggregateType][key.aggregateID] = snap
	}

	byt, err := json.Marshal(byType)
	if err != nil {
		return nil, fmt.Errorf("snapshot.InMemoryStore: failed to marshal internal state to json: %w", err)
	}

	return byt, nil
}

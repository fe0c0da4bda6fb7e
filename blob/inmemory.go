package blob

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

var _ Store = &InMemory{}

type inMemoryObject struct {
	id       ID
	payload  []byte
	metadata Metadata
	seq      uint64
}

// InMemory is a map-based, thread-safe in-memory Store.
//
// Since there is no entry eviction, it is suggested to use this store
// only for test scenarios.
type InMemory struct {
	mx      sync.RWMutex
	seq     uint64
	buckets map[string]map[ID]inMemoryObject
}

// NewInMemory returns a fresh new instance of the InMemory blob store.
func NewInMemory() *InMemory {
	return &InMemory{
		buckets: make(map[string]map[ID]inMemoryObject),
	}
}

// NewID returns a random UUID.
func (s *InMemory) NewID() ID {
	return ID(uuid.NewString())
}

// Upload implements the blob.Store interface.
func (s *InMemory) Upload(_ context.Context, bucket string, id ID, payload []byte, metadata Metadata) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	objects, ok := s.buckets[bucket]
	if !ok {
		objects = make(map[ID]inMemoryObject)
		s.buckets[bucket] = objects
	}

	if _, exists := objects[id]; exists {
		return fmt.Errorf("blob.InMemory.Upload: object %q in bucket %q, %w", id, bucket, ErrFileExists)
	}

	s.seq++
	objects[id] = inMemoryObject{
		id:       id,
		payload:  slices.Clone(payload),
		metadata: metadata,
		seq:      s.seq,
	}

	return nil
}

func matches(metadata Metadata, query Query) bool {
	if query.AggregateType != "" && metadata.AggregateType != query.AggregateType {
		return false
	}

	if query.AggregateID != "" && metadata.AggregateID != query.AggregateID {
		return false
	}

	return true
}

// Find implements the blob.Store interface.
func (s *InMemory) Find(_ context.Context, bucket string, query Query) ([]File, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()

	var found []inMemoryObject

	for _, obj := range s.buckets[bucket] {
		if matches(obj.metadata, query) {
			found = append(found, obj)
		}
	}

	slices.SortFunc(found, func(a, b inMemoryObject) int {
		cmp := int(a.metadata.LastVersion) - int(b.metadata.LastVersion)
		if cmp == 0 {
			// Stable tie-breaker on insertion order.
			cmp = int(a.seq) - int(b.seq)
		}

		if query.Order == NewestFirst {
			return -cmp
		}

		return cmp
	})

	if query.Skip > 0 {
		found = found[min(int(query.Skip), len(found)):]
	}

	if query.Limit > 0 && int(query.Limit) < len(found) {
		found = found[:query.Limit]
	}

	files := make([]File, 0, len(found))
	for _, obj := range found {
		files = append(files, File{ID: obj.id, Metadata: obj.metadata})
	}

	return files, nil
}

// FindOne implements the blob.Store interface.
func (s *InMemory) FindOne(ctx context.Context, bucket string, query Query) (File, error) {
	return FindOneFromFind(ctx, s.Find, bucket, query)
}

// Download implements the blob.Store interface.
func (s *InMemory) Download(_ context.Context, bucket string, id ID) ([]byte, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()

	obj, ok := s.buckets[bucket][id]
	if !ok {
		return nil, ErrFileNotFound
	}

	return slices.Clone(obj.payload), nil
}

// Delete implements the blob.Store interface.
func (s *InMemory) Delete(_ context.Context, bucket string, id ID) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	if _, ok := s.buckets[bucket][id]; !ok {
		return ErrFileNotFound
	}

	delete(s.buckets[bucket], id)

	return nil
}

// Buckets returns the names of the buckets holding at least one object.
func (s *InMemory) Buckets() []string {
	s.mx.RLock()
	defer s.mx.RUnlock()

	names := make([]string, 0, len(s.buckets))

	for name, objects := range s.buckets {
		if len(objects) > 0 {
			names = append(names, name)
		}
	}

	slices.Sort(names)

	return names
}

package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/get-eventually/go-eventually-snapshot/version"
)

var (
	// ErrNotFound is returned by a snapshot.Getter when no recent snapshot
	// has been found in the store.
	ErrNotFound = fmt.Errorf("snapshot: entry not found")

	// ErrInvalidSnapshot is returned by snapshot.New when required fields are missing.
	ErrInvalidSnapshot = fmt.Errorf("snapshot: invalid snapshot")
)

// Snapshot represents the state of an Aggregate Root of state type T,
// taken at a specific version.
//
// Snapshot values are never mutated once stored: a new version is a new Snapshot.
type Snapshot[T any] struct {
	AggregateType string
	AggregateID   string
	AggregateRoot T
	LastVersion   version.Version
	CreatedAt     time.Time
}

// New creates a new Snapshot value, with CreatedAt truncated to
// microsecond precision and converted to UTC, which is the precision
// preserved by the stores.
//
// ErrInvalidSnapshot is returned if the Aggregate type or id are empty.
func New[T any](
	aggregateType, aggregateID string,
	root T,
	lastVersion version.Version,
	createdAt time.Time,
) (Snapshot[T], error) {
	if aggregateType == "" {
		return Snapshot[T]{}, fmt.Errorf("snapshot.New: empty aggregate type, %w", ErrInvalidSnapshot)
	}

	if aggregateID == "" {
		return Snapshot[T]{}, fmt.Errorf("snapshot.New: empty aggregate id, %w", ErrInvalidSnapshot)
	}

	return Snapshot[T]{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		AggregateRoot: root,
		LastVersion:   lastVersion,
		CreatedAt:     createdAt.UTC().Truncate(time.Microsecond),
	}, nil
}

// Getter is used to retrieve the most-recent Snapshot from a durable store.
type Getter[T any] interface {
	// Get returns the snapshot with the highest version for the Aggregate,
	// or ErrNotFound.
	Get(ctx context.Context, aggregateType, aggregateID string) (Snapshot[T], error)
}

// Saver is used to record Snapshots to a durable store.
type Saver[T any] interface {
	Save(ctx context.Context, snapshot Snapshot[T]) error
}

// Deleter removes Snapshots from a durable store.
type Deleter interface {
	// DeleteByAggregateID removes all the snapshots of an Aggregate instance.
	DeleteByAggregateID(ctx context.Context, aggregateID, aggregateType string) error

	// DeleteByAggregateType removes all the snapshots of all instances of an Aggregate type.
	DeleteByAggregateType(ctx context.Context, aggregateType string) error
}

// Store is the full snapshot store contract.
type Store[T any] interface {
	Getter[T]
	Saver[T]
	Deleter
}

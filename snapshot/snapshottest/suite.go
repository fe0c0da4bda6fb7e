// Package snapshottest contains reusable test suites for snapshot.Store
// implementations and for the blob.Store backends used by snapshot.BlobStore.
package snapshottest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/get-eventually/go-eventually-snapshot/serde"
	"github.com/get-eventually/go-eventually-snapshot/snapshot"
	"github.com/get-eventually/go-eventually-snapshot/version"
)

// Counter is the Aggregate Root state used by the suites.
type Counter struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// CounterSerde is the JSON serde for Counter states.
var CounterSerde = serde.NewJSON(func() Counter { return Counter{} })

// CounterProtoSerde stores Counter states as Protobuf Struct messages.
//
// Zero fields are omitted, so the zero Counter is stored as an empty payload.
var CounterProtoSerde = serde.Chain(
	serde.FuseFuncs(counterToStruct, counterFromStruct),
	serde.NewProto(func() *structpb.Struct { return new(structpb.Struct) }),
)

func counterToStruct(c Counter) (*structpb.Struct, error) {
	fields := make(map[string]any, 2)

	if c.Name != "" {
		fields["name"] = c.Name
	}

	if c.Count != 0 {
		fields["count"] = c.Count
	}

	return structpb.NewStruct(fields)
}

func counterFromStruct(s *structpb.Struct) (Counter, error) {
	fields := s.GetFields()

	return Counter{
		Name:  fields["name"].GetStringValue(),
		Count: int(fields["count"].GetNumberValue()),
	}, nil
}

// RandomAggregateType returns an Aggregate type name unique to the current test run.
func RandomAggregateType() string {
	return "counter-" + uuid.NewString()
}

// NewCounterSnapshot builds a Counter snapshot, failing the test on error.
func NewCounterSnapshot(
	t *testing.T,
	aggregateType, aggregateID string,
	count int,
	v version.Version,
) snapshot.Snapshot[Counter] {
	t.Helper()

	snap, err := snapshot.New(aggregateType, aggregateID, Counter{Name: aggregateID, Count: count}, v, time.Now())
	require.NoError(t, err)

	return snap
}

// AssertSnapshotEqual checks two snapshots are equal, comparing
// creation times with time.Time.Equal.
func AssertSnapshotEqual[T any](t *testing.T, expected, actual snapshot.Snapshot[T]) bool {
	t.Helper()

	return assert.Equal(t, expected.AggregateType, actual.AggregateType) &&
		assert.Equal(t, expected.AggregateID, actual.AggregateID) &&
		assert.Equal(t, expected.AggregateRoot, actual.AggregateRoot) &&
		assert.Equal(t, expected.LastVersion, actual.LastVersion) &&
		assert.True(t, expected.CreatedAt.Equal(actual.CreatedAt),
			"expected created at %s, got %s", expected.CreatedAt, actual.CreatedAt)
}

// StoreSuite returns an executable testing suite running on the
// snapshot.Store value provided in input.
func StoreSuite(store snapshot.Store[Counter]) func(t *testing.T) { //nolint:funlen // It's a test suite.
	return func(t *testing.T) {
		ctx := context.Background()

		t.Run("it saves and reads back a snapshot", func(t *testing.T) {
			aggregateType, id := RandomAggregateType(), uuid.NewString()
			snap := NewCounterSnapshot(t, aggregateType, id, 1, 1)

			require.NoError(t, store.Save(ctx, snap))

			_, err := store.Get(ctx, aggregateType, "invalid")
			assert.ErrorIs(t, err, snapshot.ErrNotFound)

			got, err := store.Get(ctx, aggregateType, id)
			require.NoError(t, err)
			AssertSnapshotEqual(t, snap, got)
		})

		t.Run("it returns not found for never saved aggregates", func(t *testing.T) {
			_, err := store.Get(ctx, RandomAggregateType(), uuid.NewString())
			assert.ErrorIs(t, err, snapshot.ErrNotFound)
		})

		t.Run("it saves two versions and gets the latest back", func(t *testing.T) {
			aggregateType, id := RandomAggregateType(), uuid.NewString()
			first := NewCounterSnapshot(t, aggregateType, id, 1, 1)
			second := NewCounterSnapshot(t, aggregateType, id, 2, 2)

			require.NoError(t, store.Save(ctx, first))
			require.NoError(t, store.Save(ctx, second))

			got, err := store.Get(ctx, aggregateType, id)
			require.NoError(t, err)
			AssertSnapshotEqual(t, second, got)
		})

		t.Run("it gets the latest back when the older version is written last", func(t *testing.T) {
			aggregateType, id := RandomAggregateType(), uuid.NewString()
			newer := NewCounterSnapshot(t, aggregateType, id, 2, 2)
			older := NewCounterSnapshot(t, aggregateType, id, 1, 1)

			require.NoError(t, store.Save(ctx, newer))
			require.NoError(t, store.Save(ctx, older))

			got, err := store.Get(ctx, aggregateType, id)
			require.NoError(t, err)
			AssertSnapshotEqual(t, newer, got)
		})

		t.Run("it deletes all versions of an aggregate id only", func(t *testing.T) {
			aggregateType, id, otherID := RandomAggregateType(), uuid.NewString(), uuid.NewString()

			require.NoError(t, store.Save(ctx, NewCounterSnapshot(t, aggregateType, id, 1, 1)))
			require.NoError(t, store.Save(ctx, NewCounterSnapshot(t, aggregateType, id, 2, 2)))
			other := NewCounterSnapshot(t, aggregateType, otherID, 5, 5)
			require.NoError(t, store.Save(ctx, other))

			require.NoError(t, store.DeleteByAggregateID(ctx, id, aggregateType))

			_, err := store.Get(ctx, aggregateType, id)
			assert.ErrorIs(t, err, snapshot.ErrNotFound)

			got, err := store.Get(ctx, aggregateType, otherID)
			require.NoError(t, err)
			AssertSnapshotEqual(t, other, got)
		})

		t.Run("it deletes all aggregates of a type", func(t *testing.T) {
			aggregateType, otherType := RandomAggregateType(), RandomAggregateType()
			first, second := uuid.NewString(), uuid.NewString()

			require.NoError(t, store.Save(ctx, NewCounterSnapshot(t, aggregateType, first, 1, 1)))
			require.NoError(t, store.Save(ctx, NewCounterSnapshot(t, aggregateType, second, 1, 1)))
			survivor := NewCounterSnapshot(t, otherType, first, 3, 3)
			require.NoError(t, store.Save(ctx, survivor))

			require.NoError(t, store.DeleteByAggregateType(ctx, aggregateType))

			for _, id := range []string{first, second} {
				_, err := store.Get(ctx, aggregateType, id)
				assert.ErrorIs(t, err, snapshot.ErrNotFound)
			}

			got, err := store.Get(ctx, otherType, first)
			require.NoError(t, err)
			AssertSnapshotEqual(t, survivor, got)
		})

		t.Run("deleting missing aggregates is not an error", func(t *testing.T) {
			aggregateType := RandomAggregateType()

			assert.NoError(t, store.DeleteByAggregateID(ctx, uuid.NewString(), aggregateType))
			assert.NoError(t, store.DeleteByAggregateType(ctx, aggregateType))
		})

		t.Run("empty identifiers are rejected", func(t *testing.T) {
			aggregateType := RandomAggregateType()

			_, err := store.Get(ctx, "", "id")
			assert.ErrorIs(t, err, snapshot.ErrEmptyIdentifier)

			_, err = store.Get(ctx, aggregateType, "")
			assert.ErrorIs(t, err, snapshot.ErrEmptyIdentifier)

			assert.ErrorIs(t, store.Save(ctx, snapshot.Snapshot[Counter]{AggregateType: aggregateType}),
				snapshot.ErrEmptyIdentifier)
			assert.ErrorIs(t, store.DeleteByAggregateID(ctx, "", aggregateType), snapshot.ErrEmptyIdentifier)
			assert.ErrorIs(t, store.DeleteByAggregateID(ctx, "id", ""), snapshot.ErrEmptyIdentifier)
			assert.ErrorIs(t, store.DeleteByAggregateType(ctx, ""), snapshot.ErrEmptyIdentifier)
		})
	}
}

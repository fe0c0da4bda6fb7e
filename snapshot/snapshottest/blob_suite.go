package snapshottest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/go-eventually-snapshot/blob"
	"github.com/get-eventually/go-eventually-snapshot/blob/blobtest"
	"github.com/get-eventually/go-eventually-snapshot/logger"
	"github.com/get-eventually/go-eventually-snapshot/snapshot"
	"github.com/get-eventually/go-eventually-snapshot/version"
)

func countFiles(ctx context.Context, t *testing.T, blobs blob.Store, bucket string, query blob.Query) int {
	t.Helper()

	files, err := blobs.Find(ctx, bucket, query)
	require.NoError(t, err)

	return len(files)
}

// BlobBackendSuite returns an executable testing suite checking the
// snapshot.BlobStore storage protocol on top of the blob.Store provided in input.
//
// Buckets are randomized, so the suite can run against a shared backend.
func BlobBackendSuite(blobs blob.Store) func(t *testing.T) { //nolint:funlen // It's a test suite.
	return func(t *testing.T) {
		ctx := context.Background()

		newStore := func(t *testing.T, buckets snapshot.Buckets) *snapshot.BlobStore[Counter] {
			return snapshot.NewBlobStore(blobs, CounterSerde,
				snapshot.WithBuckets[Counter](buckets),
				snapshot.WithLogger[Counter](logger.NewTest(t)),
			)
		}

		t.Run("it complies with the snapshot store contract", func(t *testing.T) {
			StoreSuite(newStore(t, snapshot.Buckets{Default: blobtest.RandomBucket("contract")}))(t)
		})

		t.Run("exactly one record remains after saving two versions", func(t *testing.T) {
			bucket := blobtest.RandomBucket("prune")
			store := newStore(t, snapshot.Buckets{Default: bucket})

			for _, order := range [][]version.Version{{1, 2}, {2, 1}} {
				aggregateType, id := RandomAggregateType(), uuid.NewString()

				for _, v := range order {
					require.NoError(t, store.Save(ctx, NewCounterSnapshot(t, aggregateType, id, int(v), v)))
				}

				query := blob.Query{AggregateType: aggregateType, AggregateID: id}
				assert.Equal(t, 1, countFiles(ctx, t, blobs, bucket, query))

				got, err := store.Get(ctx, aggregateType, id)
				require.NoError(t, err)
				assert.Equal(t, version.Version(2), got.LastVersion)
				assert.Equal(t, 2, got.AggregateRoot.Count)
			}
		})

		t.Run("it returns the highest version among unpruned copies", func(t *testing.T) {
			bucket := blobtest.RandomBucket("unpruned")
			store := newStore(t, snapshot.Buckets{Default: bucket})
			aggregateType, id := RandomAggregateType(), uuid.NewString()

			for _, v := range []version.Version{1, 3, 2} {
				payload, err := CounterSerde.Serialize(Counter{Name: id, Count: int(v)})
				require.NoError(t, err)

				require.NoError(t, blobs.Upload(ctx, bucket, blobs.NewID(), payload, blob.Metadata{
					AggregateID:   id,
					AggregateType: aggregateType,
					LastVersion:   v,
					CreatedAt:     blob.FormatCreatedAt(time.Now()),
				}))
			}

			got, err := store.Get(ctx, aggregateType, id)
			require.NoError(t, err)
			assert.Equal(t, version.Version(3), got.LastVersion)

			require.NoError(t, store.PruneOlderVersions(ctx, aggregateType, id))
			assert.Equal(t, 1, countFiles(ctx, t, blobs, bucket, blob.Query{AggregateID: id}))
		})

		validPayload, err := CounterSerde.Serialize(Counter{Name: "valid", Count: 1})
		require.NoError(t, err)

		for _, tc := range []struct {
			name      string
			payload   []byte
			createdAt string
		}{
			{
				name:      "undeserializable payload",
				payload:   []byte("invalid_serialize_string"),
				createdAt: blob.FormatCreatedAt(time.Now()),
			},
			{
				name:      "invalid creation time",
				payload:   validPayload,
				createdAt: "not a time",
			},
		} {
			t.Run("it discards records with "+tc.name, func(t *testing.T) {
				bucket := blobtest.RandomBucket("corrupt")
				store := newStore(t, snapshot.Buckets{Default: bucket})
				aggregateType, id := RandomAggregateType(), uuid.NewString()

				require.NoError(t, blobs.Upload(ctx, bucket, blobs.NewID(), tc.payload, blob.Metadata{
					AggregateID:   id,
					AggregateType: aggregateType,
					LastVersion:   1,
					CreatedAt:     tc.createdAt,
				}))

				_, err := store.Get(ctx, aggregateType, id)
				assert.ErrorIs(t, err, snapshot.ErrNotFound)
				assert.Zero(t, countFiles(ctx, t, blobs, bucket, blob.Query{AggregateID: id}))

				snap := NewCounterSnapshot(t, aggregateType, id, 2, 2)
				require.NoError(t, store.Save(ctx, snap))

				got, err := store.Get(ctx, aggregateType, id)
				require.NoError(t, err)
				AssertSnapshotEqual(t, snap, got)
			})
		}

		t.Run("it round-trips protobuf states, including empty payloads", func(t *testing.T) {
			bucket := blobtest.RandomBucket("proto")
			aggregateType := RandomAggregateType()

			store := snapshot.NewBlobStore(blobs, CounterProtoSerde,
				snapshot.WithBuckets[Counter](snapshot.Buckets{Default: bucket}),
				snapshot.WithLogger[Counter](logger.NewTest(t)),
			)

			for _, state := range []Counter{{}, {Name: "proto", Count: 3}} {
				id := uuid.NewString()

				snap, err := snapshot.New(aggregateType, id, state, 1, time.Now())
				require.NoError(t, err)
				require.NoError(t, store.Save(ctx, snap))

				got, err := store.Get(ctx, aggregateType, id)
				require.NoError(t, err)
				AssertSnapshotEqual(t, snap, got)

				file, err := blobs.FindOne(ctx, bucket, blob.Query{AggregateType: aggregateType, AggregateID: id})
				require.NoError(t, err)

				payload, err := blobs.Download(ctx, bucket, file.ID)
				require.NoError(t, err)
				assert.Equal(t, state == Counter{}, len(payload) == 0)
			}
		})

		t.Run("it uses the custom bucket mapping", func(t *testing.T) {
			defaultBucket, customBucket := blobtest.RandomBucket("default"), blobtest.RandomBucket("custom")
			aggregateType, id := RandomAggregateType(), uuid.NewString()

			store := newStore(t, snapshot.Buckets{
				Default:   defaultBucket,
				Overrides: map[string]string{aggregateType: customBucket},
			})

			snap := NewCounterSnapshot(t, aggregateType, id, 1, 1)
			require.NoError(t, store.Save(ctx, snap))

			assert.Equal(t, customBucket, store.BucketFor(aggregateType))
			assert.Equal(t, 1, countFiles(ctx, t, blobs, customBucket, blob.Query{AggregateID: id}))
			assert.Zero(t, countFiles(ctx, t, blobs, defaultBucket, blob.Query{AggregateID: id}))

			got, err := store.Get(ctx, aggregateType, id)
			require.NoError(t, err)
			AssertSnapshotEqual(t, snap, got)
		})

		t.Run("aggregate types sharing a bucket do not interfere", func(t *testing.T) {
			bucket := blobtest.RandomBucket("shared")
			store := newStore(t, snapshot.Buckets{Default: bucket})
			first, second, id := RandomAggregateType(), RandomAggregateType(), uuid.NewString()

			require.NoError(t, store.Save(ctx, NewCounterSnapshot(t, first, id, 1, 7)))
			require.NoError(t, store.Save(ctx, NewCounterSnapshot(t, second, id, 1, 1)))

			require.NoError(t, store.DeleteByAggregateType(ctx, second))

			got, err := store.Get(ctx, first, id)
			require.NoError(t, err)
			assert.Equal(t, version.Version(7), got.LastVersion)
			assert.Equal(t, 1, countFiles(ctx, t, blobs, bucket, blob.Query{AggregateID: id}))
		})

		t.Run("concurrent saves converge to the highest version", func(t *testing.T) {
			bucket := blobtest.RandomBucket("concurrent")
			store := newStore(t, snapshot.Buckets{Default: bucket})
			aggregateType, id := RandomAggregateType(), uuid.NewString()

			const versions = 10

			snapshots := make([]snapshot.Snapshot[Counter], 0, versions)
			for v := versions; v > 0; v-- {
				snapshots = append(snapshots, NewCounterSnapshot(t, aggregateType, id, v, version.Version(v)))
			}

			errs := make(chan error, versions)
			for _, snap := range snapshots {
				go func() { errs <- store.Save(ctx, snap) }()
			}

			for range versions {
				require.NoError(t, <-errs)
			}

			got, err := store.Get(ctx, aggregateType, id)
			require.NoError(t, err)
			assert.Equal(t, version.Version(versions), got.LastVersion, "bucket %s", bucket)
			assert.Equal(t, 1, countFiles(ctx, t, blobs, bucket, blob.Query{AggregateID: id}))
		})
	}
}

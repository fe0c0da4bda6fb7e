// Package blobtest contains the conformance test suite for blob.Store implementations.
package blobtest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/go-eventually-snapshot/blob"
	"github.com/get-eventually/go-eventually-snapshot/version"
)

// RandomBucket returns a bucket name that is unique to the current test run,
// to avoid interferences between tests running on the same backend.
func RandomBucket(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func metadataFor(aggregateType, aggregateID string, v version.Version) blob.Metadata {
	return blob.Metadata{
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		LastVersion:   v,
		CreatedAt:     blob.FormatCreatedAt(time.Now()),
	}
}

// StoreSuite returns an executable testing suite running on the
// blob.Store value provided in input.
func StoreSuite(store blob.Store) func(t *testing.T) { //nolint:funlen // It's a test suite.
	return func(t *testing.T) {
		ctx := context.Background()

		t.Run("missing objects are reported as not found", func(t *testing.T) {
			bucket := RandomBucket("missing")

			_, err := store.Download(ctx, bucket, store.NewID())
			assert.ErrorIs(t, err, blob.ErrFileNotFound)

			err = store.Delete(ctx, bucket, store.NewID())
			assert.ErrorIs(t, err, blob.ErrFileNotFound)

			_, err = store.FindOne(ctx, bucket, blob.Query{AggregateID: uuid.NewString()})
			assert.ErrorIs(t, err, blob.ErrFileNotFound)
		})

		t.Run("new ids are unique", func(t *testing.T) {
			assert.NotEqual(t, store.NewID(), store.NewID())
		})

		t.Run("uploaded objects can be downloaded and deleted", func(t *testing.T) {
			bucket := RandomBucket("roundtrip")
			id := store.NewID()
			metadata := metadataFor("order", uuid.NewString(), 3)

			require.NoError(t, store.Upload(ctx, bucket, id, []byte("payload"), metadata))

			err := store.Upload(ctx, bucket, id, []byte("overwrite"), metadata)
			assert.ErrorIs(t, err, blob.ErrFileExists)

			payload, err := store.Download(ctx, bucket, id)
			require.NoError(t, err)
			assert.Equal(t, []byte("payload"), payload)

			file, err := store.FindOne(ctx, bucket, blob.Query{AggregateID: metadata.AggregateID})
			require.NoError(t, err)
			assert.Equal(t, id, file.ID)
			assert.Equal(t, metadata, file.Metadata)

			require.NoError(t, store.Delete(ctx, bucket, id))

			_, err = store.Download(ctx, bucket, id)
			assert.ErrorIs(t, err, blob.ErrFileNotFound)
		})

		t.Run("buckets are isolated from each other", func(t *testing.T) {
			first, second := RandomBucket("first"), RandomBucket("second")
			aggregateID := uuid.NewString()

			require.NoError(t, store.Upload(ctx, first, store.NewID(), []byte("a"), metadataFor("order", aggregateID, 1)))

			files, err := store.Find(ctx, second, blob.Query{AggregateID: aggregateID})
			require.NoError(t, err)
			assert.Empty(t, files)
		})

		t.Run("find filters, sorts and paginates by version", func(t *testing.T) {
			bucket := RandomBucket("find")
			aggregateID, otherID := uuid.NewString(), uuid.NewString()

			// Uploaded out of order on purpose.
			for _, v := range []version.Version{2, 5, 1, 4, 3} {
				require.NoError(t, store.Upload(ctx, bucket, store.NewID(), []byte{byte(v)}, metadataFor("order", aggregateID, v)))
			}

			require.NoError(t, store.Upload(ctx, bucket, store.NewID(), []byte("x"), metadataFor("order", otherID, 10)))
			require.NoError(t, store.Upload(ctx, bucket, store.NewID(), []byte("y"), metadataFor("invoice", aggregateID, 10)))

			versionsOf := func(files []blob.File) []version.Version {
				versions := make([]version.Version, 0, len(files))
				for _, f := range files {
					versions = append(versions, f.Metadata.LastVersion)
				}

				return versions
			}

			files, err := store.Find(ctx, bucket, blob.Query{AggregateType: "order", AggregateID: aggregateID})
			require.NoError(t, err)
			assert.Equal(t, []version.Version{5, 4, 3, 2, 1}, versionsOf(files))

			files, err = store.Find(ctx, bucket, blob.Query{
				AggregateType: "order",
				AggregateID:   aggregateID,
				Order:         blob.OldestFirst,
			})
			require.NoError(t, err)
			assert.Equal(t, []version.Version{1, 2, 3, 4, 5}, versionsOf(files))

			files, err = store.Find(ctx, bucket, blob.Query{AggregateType: "order", AggregateID: aggregateID, Skip: 1})
			require.NoError(t, err)
			assert.Equal(t, []version.Version{4, 3, 2, 1}, versionsOf(files))

			files, err = store.Find(ctx, bucket, blob.Query{AggregateType: "order", AggregateID: aggregateID, Skip: 1, Limit: 2})
			require.NoError(t, err)
			assert.Equal(t, []version.Version{4, 3}, versionsOf(files))

			files, err = store.Find(ctx, bucket, blob.Query{AggregateType: "order"})
			require.NoError(t, err)
			assert.Len(t, files, 6)

			files, err = store.Find(ctx, bucket, blob.Query{AggregateID: aggregateID})
			require.NoError(t, err)
			assert.Len(t, files, 6)

			newest, err := store.FindOne(ctx, bucket, blob.Query{AggregateType: "order", AggregateID: aggregateID})
			require.NoError(t, err)
			assert.Equal(t, version.Version(5), newest.Metadata.LastVersion)

			payload, err := store.Download(ctx, bucket, newest.ID)
			require.NoError(t, err)
			assert.Equal(t, []byte{5}, payload)
		})
	}
}

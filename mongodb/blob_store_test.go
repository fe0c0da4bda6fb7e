package mongodb_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/get-eventually/go-eventually-snapshot/blob"
	"github.com/get-eventually/go-eventually-snapshot/blob/blobtest"
	"github.com/get-eventually/go-eventually-snapshot/internal/containers"
	"github.com/get-eventually/go-eventually-snapshot/logger"
	"github.com/get-eventually/go-eventually-snapshot/mongodb"
	"github.com/get-eventually/go-eventually-snapshot/snapshot"
	"github.com/get-eventually/go-eventually-snapshot/snapshot/snapshottest"
)

func setupClient(ctx context.Context, t *testing.T, metrics *mongodb.CommandMetrics) (*mongo.Client, mongodb.Config) {
	t.Helper()

	container, err := containers.NewMongoDBContainer(ctx)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, container.Terminate(context.Background()))
	})

	config := mongodb.Config{
		URI:          container.URI,
		DatabaseName: "snapshots_" + uuid.NewString()[:8],
	}

	client, err := mongodb.Connect(ctx, config, options.Client().SetMonitor(metrics.Monitor()))
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, client.Disconnect(context.Background()))
	})

	return client, config
}

func TestBlobStore(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
	}

	ctx := context.Background()
	metrics := mongodb.NewCommandMetrics("test")
	client, config := setupClient(ctx, t, metrics)
	db := client.Database(config.DatabaseName)

	blobs := mongodb.NewBlobStore(db, mongodb.WithChunkSize(16))

	t.Run("blob store conformance", blobtest.StoreSuite(blobs))
	t.Run("snapshot storage protocol", snapshottest.BlobBackendSuite(blobs))

	t.Run("string ids are supported", func(t *testing.T) {
		bucket := blobtest.RandomBucket("strings")
		id := blob.ID("custom-id")

		require.NoError(t, blobs.Upload(ctx, bucket, id, []byte("payload"), blob.Metadata{
			AggregateID:   "id",
			AggregateType: "counter",
			LastVersion:   1,
			CreatedAt:     "2024-01-01T00:00:00.000000",
		}))

		file, err := blobs.FindOne(ctx, bucket, blob.Query{AggregateID: "id"})
		require.NoError(t, err)
		assert.Equal(t, id, file.ID)

		require.NoError(t, blobs.Delete(ctx, bucket, id))
	})

	t.Run("missing chunks are reported as corruption", func(t *testing.T) {
		bucket := blobtest.RandomBucket("chunks")
		id := blobs.NewID()

		// Larger than the 16 bytes chunk size, to span several chunks.
		require.NoError(t, blobs.Upload(ctx, bucket, id, []byte("a payload spanning multiple chunks"), blob.Metadata{
			AggregateID:   "id",
			AggregateType: "counter",
			LastVersion:   1,
			CreatedAt:     "2024-01-01T00:00:00.000000",
		}))

		_, err := db.Collection(bucket+".chunks").DeleteOne(ctx, bson.D{{Key: "n", Value: 1}})
		require.NoError(t, err)

		_, err = blobs.Download(ctx, bucket, id)
		assert.ErrorIs(t, err, blob.ErrFileCorrupted)
	})

	t.Run("snapshot store from config", func(t *testing.T) {
		bucket := blobtest.RandomBucket("orders")

		config := config
		config.Buckets = map[string]string{"Order": bucket}

		require.NoError(t, mongodb.CreateIndexes(ctx, db, bucket))
		require.NoError(t, mongodb.CreateIndexes(ctx, db, bucket))

		store, err := mongodb.NewSnapshotStore(client, config, snapshottest.CounterSerde,
			snapshot.WithLogger[snapshottest.Counter](logger.NewTest(t)),
		)
		require.NoError(t, err)
		assert.Equal(t, bucket, store.BucketFor("Order"))

		snap := snapshottest.NewCounterSnapshot(t, "Order", uuid.NewString(), 1, 1)
		require.NoError(t, store.Save(ctx, snap))

		got, err := store.Get(ctx, "Order", snap.AggregateID)
		require.NoError(t, err)
		snapshottest.AssertSnapshotEqual(t, snap, got)

		cursor, err := db.Collection(bucket + ".files").Indexes().List(ctx)
		require.NoError(t, err)

		var indexes []bson.M
		require.NoError(t, cursor.All(ctx, &indexes))

		names := make([]any, 0, len(indexes))
		for _, index := range indexes {
			names = append(names, index["name"])
		}

		assert.Contains(t, names, mongodb.SnapshotIndexName)

		snapshottest.StoreSuite(store)(t)
	})

	t.Run("invalid config is rejected", func(t *testing.T) {
		_, err := mongodb.NewSnapshotStore(client, mongodb.Config{}, snapshottest.CounterSerde)
		assert.ErrorIs(t, err, mongodb.ErrInvalidConfig)
	})

	t.Run("driver commands are measured", func(t *testing.T) {
		assert.Positive(t, testutil.CollectAndCount(metrics, "test_mongodb_commands_total"))
	})
}

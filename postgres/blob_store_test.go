package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/go-eventually-snapshot/blob/blobtest"
	"github.com/get-eventually/go-eventually-snapshot/internal/containers"
	"github.com/get-eventually/go-eventually-snapshot/logger"
	"github.com/get-eventually/go-eventually-snapshot/postgres"
	"github.com/get-eventually/go-eventually-snapshot/serde"
	"github.com/get-eventually/go-eventually-snapshot/snapshot"
	"github.com/get-eventually/go-eventually-snapshot/snapshot/snapshottest"
)

func TestBlobStore(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
	}

	ctx := context.Background()

	container, err := containers.NewPostgresContainer(ctx)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, container.Terminate(context.Background()))
	})

	require.NoError(t, postgres.RunMigrations(container.ConnectionDSN))
	require.NoError(t, postgres.RunMigrations(container.ConnectionDSN), "migrations must be idempotent")

	conn, err := pgxpool.NewWithConfig(ctx, container.PoolConfig)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	blobs := postgres.BlobStore{Conn: conn}

	t.Run("blob store conformance", blobtest.StoreSuite(blobs))
	t.Run("snapshot storage protocol", snapshottest.BlobBackendSuite(blobs))

	t.Run("opaque json aggregate roots", func(t *testing.T) {
		store := snapshot.NewBlobStore(blobs, serde.NewOpaqueJSON(),
			snapshot.WithBuckets[map[string]any](snapshot.Buckets{Naming: snapshot.PerAggregateType}),
			snapshot.WithLogger[map[string]any](logger.NewTest(t)),
		)

		snap, err := snapshot.New("acme.Order", "order-1", map[string]any{"total": 42.5}, 3, time.Now())
		require.NoError(t, err)
		require.NoError(t, store.Save(ctx, snap))

		got, err := store.Get(ctx, "acme.Order", "order-1")
		require.NoError(t, err)
		snapshottest.AssertSnapshotEqual(t, snap, got)
		assert.Equal(t, "order_snapshot", store.BucketFor("acme.Order"))
	})
}

package eventuallyfirestore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/go-eventually-snapshot/blob"
	"github.com/get-eventually/go-eventually-snapshot/blob/blobtest"
	eventuallyfirestore "github.com/get-eventually/go-eventually-snapshot/firestore"
	"github.com/get-eventually/go-eventually-snapshot/internal/containers"
	"github.com/get-eventually/go-eventually-snapshot/snapshot/snapshottest"
)

func TestBlobStore(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
	}

	ctx := context.Background()

	container, err := containers.NewFirestoreContainer(ctx)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, container.Terminate(context.Background()))
	})

	client, err := container.NewClient(ctx)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, client.Close())
	})

	blobs := eventuallyfirestore.BlobStore{Client: client}

	t.Run("blob store conformance", blobtest.StoreSuite(blobs))
	t.Run("snapshot storage protocol", snapshottest.BlobBackendSuite(blobs))

	t.Run("documents without payload are reported as corruption", func(t *testing.T) {
		bucket := blobtest.RandomBucket("nopayload")

		_, err := client.Collection(bucket).Doc("broken").Create(ctx, map[string]any{
			"aggregate_id":   "id",
			"aggregate_type": "counter",
			"last_version":   1,
			"created_at":     "2024-01-01T00:00:00.000000",
		})
		require.NoError(t, err)

		_, err = blobs.Download(ctx, bucket, "broken")
		assert.ErrorIs(t, err, blob.ErrFileCorrupted)
	})
}

package eventuallys3_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/go-eventually-snapshot/blob"
	"github.com/get-eventually/go-eventually-snapshot/blob/blobtest"
	"github.com/get-eventually/go-eventually-snapshot/internal/containers"
	eventuallys3 "github.com/get-eventually/go-eventually-snapshot/s3"
	"github.com/get-eventually/go-eventually-snapshot/snapshot/snapshottest"
)

func TestBlobStore(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
	}

	ctx := context.Background()

	container, err := containers.NewMinIOContainer(ctx)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, container.Terminate(context.Background()))
	})

	client, err := container.NewClient(ctx, "snapshots")
	require.NoError(t, err)

	blobs := eventuallys3.BlobStore{Client: client, Bucket: "snapshots"}

	t.Run("blob store conformance", blobtest.StoreSuite(blobs))
	t.Run("snapshot storage protocol", snapshottest.BlobBackendSuite(blobs))

	t.Run("metadata with separators is preserved", func(t *testing.T) {
		bucket := blobtest.RandomBucket("separators")
		metadata := blob.Metadata{
			AggregateType: `Acme\Shop/Order`,
			AggregateID:   "orders/42",
			LastVersion:   3,
			CreatedAt:     "2024-01-01T00:00:00.000000",
		}

		id := blobs.NewID()
		require.NoError(t, blobs.Upload(ctx, bucket, id, []byte("x"), metadata))

		file, err := blobs.FindOne(ctx, bucket, blob.Query{
			AggregateType: metadata.AggregateType,
			AggregateID:   metadata.AggregateID,
		})
		require.NoError(t, err)
		assert.Equal(t, blob.File{ID: id, Metadata: metadata}, file)

		files, err := blobs.Find(ctx, bucket, blob.Query{AggregateType: "Acme"})
		require.NoError(t, err)
		assert.Empty(t, files)
	})
}

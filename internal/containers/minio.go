package containers

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
)

// MinIOContainer returns an handle on a MinIO container
// started through testcontainers.
type MinIOContainer struct {
	*tcminio.MinioContainer

	Endpoint string
}

// NewMinIOContainer creates and starts a new MinIO container
// using testcontainers.
func NewMinIOContainer(ctx context.Context) (*MinIOContainer, error) {
	withContext := func(msg string, err error) error {
		return fmt.Errorf("containers.NewMinIOContainer: %s, %w", msg, err)
	}

	container, err := tcminio.Run(ctx, "minio/minio:RELEASE.2024-01-16T16-07-38Z")
	if err != nil {
		return nil, withContext("failed to run new container", err)
	}

	endpoint, err := container.ConnectionString(ctx)
	if err != nil {
		return nil, withContext("failed to get endpoint", err)
	}

	return &MinIOContainer{
		MinioContainer: container,
		Endpoint:       endpoint,
	}, nil
}

// NewClient returns a MinIO client for the container, creating the given bucket.
func (c *MinIOContainer) NewClient(ctx context.Context, bucket string) (*minio.Client, error) {
	client, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Username, c.Password, ""),
		Secure: false,
	})
	if err != nil {
		return nil, fmt.Errorf("containers.MinIOContainer: failed to create client, %w", err)
	}

	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return nil, fmt.Errorf("containers.MinIOContainer: failed to create bucket, %w", err)
	}

	return client, nil
}

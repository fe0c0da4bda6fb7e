package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/get-eventually/go-eventually-snapshot/serde"
	"github.com/get-eventually/go-eventually-snapshot/snapshot"
)

// Connect validates the Config, then opens a new client to the configured
// MongoDB deployment and pings the primary.
//
// Additional client options (e.g. a command monitor from CommandMetrics)
// are applied after the Config URI.
func Connect(ctx context.Context, config Config, opts ...*options.ClientOptions) (*mongo.Client, error) {
	config = config.WithDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("mongodb.Connect: %w", err)
	}

	clientOpts := append([]*options.ClientOptions{options.Client().ApplyURI(config.URI)}, opts...)

	client, err := mongo.Connect(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("mongodb.Connect: failed to connect, %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb.Connect: failed to ping primary, %w", err)
	}

	return client, nil
}

// NewSnapshotStore returns a snapshot.BlobStore storing snapshots in the
// GridFS buckets of the configured database, using the bucket mapping
// and the read and write concerns of the Config.
//
// The provided options are applied after the ones derived from the Config.
func NewSnapshotStore[T any](
	client *mongo.Client,
	config Config,
	stateSerde serde.Bytes[T],
	opts ...snapshot.Option[*snapshot.BlobStore[T]],
) (*snapshot.BlobStore[T], error) {
	config = config.WithDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("mongodb.NewSnapshotStore: %w", err)
	}

	blobs := NewBlobStore(
		client.Database(config.DatabaseName),
		WithReadConcern(config.readConcern()),
		WithWriteConcern(config.writeConcern()),
	)

	opts = append([]snapshot.Option[*snapshot.BlobStore[T]]{
		snapshot.WithBuckets[T](config.SnapshotBuckets()),
	}, opts...)

	return snapshot.NewBlobStore(blobs, stateSerde, opts...), nil
}

package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SnapshotIndexName is the name of the index created by CreateIndexes.
const SnapshotIndexName = "aggregate_last_version"

// CreateIndexes creates the index used to look up the latest snapshot of
// an Aggregate on the files collection of the given GridFS bucket.
//
// The operation is idempotent.
func CreateIndexes(ctx context.Context, db *mongo.Database, bucket string) error {
	_, err := db.Collection(bucket+".files").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "metadata.aggregate_type", Value: 1},
			{Key: "metadata.aggregate_id", Value: 1},
			{Key: "metadata.last_version", Value: -1},
		},
		Options: options.Index().SetName(SnapshotIndexName),
	})
	if err != nil {
		return fmt.Errorf("mongodb.CreateIndexes: failed to create index on bucket %q, %w", bucket, err)
	}

	return nil
}

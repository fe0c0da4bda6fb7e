package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/get-eventually/go-eventually-snapshot/mongodb"
	"github.com/get-eventually/go-eventually-snapshot/snapshot"
	"github.com/get-eventually/go-eventually-snapshot/version"
)

var errUsage = errors.New("snapshot-admin: invalid usage")

type environment struct {
	config mongodb.Config
	db     *mongo.Database
	store  *snapshot.BlobStore[[]byte]
	stdout io.Writer
}

type command interface {
	exec(ctx context.Context, env environment) error
}

func parseCommand(args []string) (command, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: missing command", errUsage)
	}

	name, args := args[0], args[1:]

	switch {
	case name == "get" && len(args) == 2:
		return getCommand{aggregateType: args[0], aggregateID: args[1]}, nil
	case name == "prune" && len(args) == 2:
		return pruneCommand{aggregateType: args[0], aggregateID: args[1]}, nil
	case name == "delete" && len(args) == 1:
		return deleteCommand{aggregateType: args[0]}, nil
	case name == "delete" && len(args) == 2:
		return deleteCommand{aggregateType: args[0], aggregateID: args[1]}, nil
	case name == "create-indexes":
		return createIndexesCommand{buckets: args}, nil
	case slices.Contains([]string{"get", "prune", "delete"}, name):
		return nil, fmt.Errorf("%w: wrong number of arguments for %q", errUsage, name)
	default:
		return nil, fmt.Errorf("%w: unknown command %q", errUsage, name)
	}
}

type getCommand struct {
	aggregateType, aggregateID string
}

type snapshotView struct {
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	LastVersion   version.Version `json:"last_version"`
	CreatedAt     time.Time       `json:"created_at"`
	Bucket        string          `json:"bucket"`
	Payload       any             `json:"payload"`
}

func (c getCommand) exec(ctx context.Context, env environment) error {
	snap, err := env.store.Get(ctx, c.aggregateType, c.aggregateID)
	if err != nil {
		return fmt.Errorf("snapshot-admin.get: %w", err)
	}

	// JSON states are printed inline, anything else is base64-encoded.
	var payload any = snap.AggregateRoot
	if json.Valid(snap.AggregateRoot) {
		payload = json.RawMessage(snap.AggregateRoot)
	}

	encoder := json.NewEncoder(env.stdout)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(snapshotView{
		AggregateType: snap.AggregateType,
		AggregateID:   snap.AggregateID,
		LastVersion:   snap.LastVersion,
		CreatedAt:     snap.CreatedAt,
		Bucket:        env.store.BucketFor(snap.AggregateType),
		Payload:       payload,
	}); err != nil {
		return fmt.Errorf("snapshot-admin.get: failed to print snapshot, %w", err)
	}

	return nil
}

type pruneCommand struct {
	aggregateType, aggregateID string
}

func (c pruneCommand) exec(ctx context.Context, env environment) error {
	if err := env.store.PruneOlderVersions(ctx, c.aggregateType, c.aggregateID); err != nil {
		return fmt.Errorf("snapshot-admin.prune: %w", err)
	}

	return nil
}

type deleteCommand struct {
	aggregateType, aggregateID string
}

func (c deleteCommand) exec(ctx context.Context, env environment) error {
	var err error

	if c.aggregateID == "" {
		err = env.store.DeleteByAggregateType(ctx, c.aggregateType)
	} else {
		err = env.store.DeleteByAggregateID(ctx, c.aggregateID, c.aggregateType)
	}

	if err != nil {
		return fmt.Errorf("snapshot-admin.delete: %w", err)
	}

	return nil
}

type createIndexesCommand struct {
	buckets []string
}

// bucketsFor returns the explicit buckets, or all the buckets named by the Config.
func (c createIndexesCommand) bucketsFor(config mongodb.Config) []string {
	if len(c.buckets) > 0 {
		return c.buckets
	}

	buckets := []string{config.DefaultBucket}
	for _, bucket := range config.Buckets {
		if !slices.Contains(buckets, bucket) {
			buckets = append(buckets, bucket)
		}
	}

	slices.Sort(buckets)

	return buckets
}

func (c createIndexesCommand) exec(ctx context.Context, env environment) error {
	for _, bucket := range c.bucketsFor(env.config) {
		if err := mongodb.CreateIndexes(ctx, env.db, bucket); err != nil {
			return fmt.Errorf("snapshot-admin.create-indexes: %w", err)
		}

		fmt.Fprintf(env.stdout, "created indexes on bucket %q\n", bucket)
	}

	return nil
}

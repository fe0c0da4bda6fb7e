// Package eventuallyredis provides a blob.Store implementation on top of Redis.
package eventuallyredis

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/get-eventually/go-eventually-snapshot/blob"
	"github.com/get-eventually/go-eventually-snapshot/version"
)

var _ blob.Store = BlobStore{}

// DefaultKeyPrefix is the prefix of all the keys written by a BlobStore
// with no KeyPrefix set.
const DefaultKeyPrefix = "snapshot"

var metadataFields = []string{"aggregate_type", "aggregate_id", "last_version", "created_at", "seq"}

// BlobStore is a blob.Store implementation using Redis hashes for the
// stored objects, and sorted sets as indexes on their metadata.
//
// Objects get a per-bucket sequence number on upload, used to order
// objects with the same version by insertion order.
type BlobStore struct {
	Client    redis.UniversalClient
	KeyPrefix string
}

type keys struct {
	prefix string
}

func (s BlobStore) keys(bucket string) keys {
	prefix := s.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	return keys{prefix: prefix + ":" + url.QueryEscape(bucket)}
}

func (k keys) seq() string { return k.prefix + ":seq" }

func (k keys) all() string { return k.prefix + ":all" }

func (k keys) blob(id blob.ID) string { return k.prefix + ":blob:" + url.QueryEscape(string(id)) }

func (k keys) byType(aggregateType string) string {
	return k.prefix + ":type:" + url.QueryEscape(aggregateType)
}

func (k keys) byID(aggregateID string) string {
	return k.prefix + ":id:" + url.QueryEscape(aggregateID)
}

func (k keys) byAggregate(aggregateType, aggregateID string) string {
	return k.prefix + ":aggregate:" + url.QueryEscape(aggregateType) + ":" + url.QueryEscape(aggregateID)
}

// index returns the smallest index containing all the objects matching the query.
func (k keys) index(query blob.Query) string {
	switch {
	case query.AggregateType != "" && query.AggregateID != "":
		return k.byAggregate(query.AggregateType, query.AggregateID)
	case query.AggregateType != "":
		return k.byType(query.AggregateType)
	case query.AggregateID != "":
		return k.byID(query.AggregateID)
	default:
		return k.all()
	}
}

func (k keys) indexes(metadata blob.Metadata) []string {
	return []string{
		k.all(),
		k.byType(metadata.AggregateType),
		k.byID(metadata.AggregateID),
		k.byAggregate(metadata.AggregateType, metadata.AggregateID),
	}
}

// NewID returns a random UUID.
func (s BlobStore) NewID() blob.ID {
	return blob.ID(uuid.NewString())
}

// Upload implements the blob.Store interface.
func (s BlobStore) Upload(
	ctx context.Context,
	bucket string,
	id blob.ID,
	payload []byte,
	metadata blob.Metadata,
) error {
	k := s.keys(bucket)

	seq, err := s.Client.Incr(ctx, k.seq()).Result()
	if err != nil {
		return fmt.Errorf("eventuallyredis.BlobStore.Upload: failed to get next sequence number, %w", err)
	}

	created, err := s.Client.HSetNX(ctx, k.blob(id), "seq", seq).Result()
	if err != nil {
		return fmt.Errorf("eventuallyredis.BlobStore.Upload: failed to reserve object, %w", err)
	}

	if !created {
		return fmt.Errorf("eventuallyredis.BlobStore.Upload: file %s, %w", id, blob.ErrFileExists)
	}

	if _, err := s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k.blob(id),
			"aggregate_type", metadata.AggregateType,
			"aggregate_id", metadata.AggregateID,
			"last_version", int64(metadata.LastVersion),
			"created_at", metadata.CreatedAt,
			"payload", payload,
		)

		for _, index := range k.indexes(metadata) {
			pipe.ZAdd(ctx, index, redis.Z{Score: float64(seq), Member: string(id)})
		}

		return nil
	}); err != nil {
		return fmt.Errorf("eventuallyredis.BlobStore.Upload: failed to write object, %w", err)
	}

	return nil
}

type indexedFile struct {
	blob.File
	seq int64
}

func parseFile(id blob.ID, values []any) (indexedFile, bool) {
	if len(values) != len(metadataFields) || slices.Contains(values, nil) {
		return indexedFile{}, false
	}

	str := func(i int) string {
		s, _ := values[i].(string)
		return s
	}

	lastVersion, err := strconv.ParseUint(str(2), 10, 32)
	if err != nil {
		return indexedFile{}, false
	}

	seq, err := strconv.ParseInt(str(4), 10, 64)
	if err != nil {
		return indexedFile{}, false
	}

	return indexedFile{
		File: blob.File{
			ID: id,
			Metadata: blob.Metadata{
				AggregateType: str(0),
				AggregateID:   str(1),
				LastVersion:   version.Version(lastVersion),
				CreatedAt:     str(3),
			},
		},
		seq: seq,
	}, true
}

// Find implements the blob.Store interface.
//
// Objects being written or deleted concurrently, hence with incomplete
// metadata, are not returned.
func (s BlobStore) Find(ctx context.Context, bucket string, query blob.Query) ([]blob.File, error) {
	k := s.keys(bucket)

	ids, err := s.Client.ZRange(ctx, k.index(query), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("eventuallyredis.BlobStore.Find: failed to read index, %w", err)
	}

	cmds := make([]*redis.SliceCmd, len(ids))

	if _, err := s.Client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HMGet(ctx, k.blob(blob.ID(id)), metadataFields...)
		}

		return nil
	}); err != nil {
		return nil, fmt.Errorf("eventuallyredis.BlobStore.Find: failed to read objects metadata, %w", err)
	}

	found := make([]indexedFile, 0, len(ids))

	for i, cmd := range cmds {
		file, ok := parseFile(blob.ID(ids[i]), cmd.Val())
		if !ok {
			continue
		}

		if query.AggregateType != "" && file.Metadata.AggregateType != query.AggregateType {
			continue
		}

		if query.AggregateID != "" && file.Metadata.AggregateID != query.AggregateID {
			continue
		}

		found = append(found, file)
	}

	slices.SortFunc(found, func(a, b indexedFile) int {
		cmp := int64(a.Metadata.LastVersion) - int64(b.Metadata.LastVersion)
		if cmp == 0 {
			cmp = a.seq - b.seq
		}

		if query.Order == blob.NewestFirst {
			cmp = -cmp
		}

		switch {
		case cmp < 0:
			return -1
		case cmp > 0:
			return 1
		default:
			return 0
		}
	})

	if query.Skip > 0 {
		found = found[min(int(query.Skip), len(found)):]
	}

	if query.Limit > 0 && int(query.Limit) < len(found) {
		found = found[:query.Limit]
	}

	files := make([]blob.File, 0, len(found))
	for _, file := range found {
		files = append(files, file.File)
	}

	return files, nil
}

// FindOne implements the blob.Store interface.
func (s BlobStore) FindOne(ctx context.Context, bucket string, query blob.Query) (blob.File, error) {
	return blob.FindOneFromFind(ctx, s.Find, bucket, query)
}

// Download implements the blob.Store interface.
func (s BlobStore) Download(ctx context.Context, bucket string, id blob.ID) ([]byte, error) {
	values, err := s.Client.HMGet(ctx, s.keys(bucket).blob(id), "seq", "payload").Result()
	if err != nil {
		return nil, fmt.Errorf("eventuallyredis.BlobStore.Download: failed to read object, %w", err)
	}

	if values[0] == nil {
		return nil, fmt.Errorf("eventuallyredis.BlobStore.Download: file %s, %w", id, blob.ErrFileNotFound)
	}

	payload, ok := values[1].(string)
	if !ok {
		return nil, fmt.Errorf("eventuallyredis.BlobStore.Download: file %s has no payload, %w", id, blob.ErrFileCorrupted)
	}

	return []byte(payload), nil
}

// Delete implements the blob.Store interface.
func (s BlobStore) Delete(ctx context.Context, bucket string, id blob.ID) error {
	k := s.keys(bucket)

	values, err := s.Client.HMGet(ctx, k.blob(id), "aggregate_type", "aggregate_id").Result()
	if err != nil {
		return fmt.Errorf("eventuallyredis.BlobStore.Delete: failed to read object, %w", err)
	}

	aggregateType, _ := values[0].(string)
	aggregateID, _ := values[1].(string)

	var deleted *redis.IntCmd

	if _, err := s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, k.blob(id))

		indexes := []string{k.all()}
		if values[0] != nil && values[1] != nil {
			indexes = k.indexes(blob.Metadata{AggregateType: aggregateType, AggregateID: aggregateID})
		}

		for _, index := range indexes {
			pipe.ZRem(ctx, index, string(id))
		}

		return nil
	}); err != nil {
		return fmt.Errorf("eventuallyredis.BlobStore.Delete: failed to delete object, %w", err)
	}

	if deleted.Val() == 0 {
		return fmt.Errorf("eventuallyredis.BlobStore.Delete: file %s, %w", id, blob.ErrFileNotFound)
	}

	return nil
}

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/get-eventually/go-eventually-snapshot/blob"
	"github.com/get-eventually/go-eventually-snapshot/logger"
	"github.com/get-eventually/go-eventually-snapshot/serde"
)

// ErrEmptyIdentifier is returned by BlobStore operations called with
// an empty Aggregate type or id.
var ErrEmptyIdentifier = fmt.Errorf("snapshot: empty aggregate type or id")

var errCorrupted = fmt.Errorf("snapshot: corrupted entry")

// Number of lookups performed by Get when the newest snapshot vanishes,
// or is only partially readable, between the query and the download.
// This happens when a concurrent Save prunes it in favor of a newer version.
const maxGetAttempts = 3

var _ Store[any] = &BlobStore[any]{}

// BlobStore is a snapshot Store implementation on top of a blob.Store.
//
// Every Save writes a new object, then prunes all the objects of the same
// Aggregate except the one with the highest version. Since the surviving
// object is chosen by version and not by write order, concurrent writers
// of the same Aggregate always converge to the highest version.
//
// Use NewBlobStore to create a new instance of this type.
type BlobStore[T any] struct {
	blobs             blob.Store
	serde             serde.Bytes[T]
	buckets           Buckets
	logger            logger.Logger
	deleteConcurrency int
	validate          func(aggregateType string, state T) error
}

// NewBlobStore returns a new BlobStore storing snapshots in the provided
// blob.Store, using the provided serde to convert Aggregate Root states
// into the stored payload.
func NewBlobStore[T any](
	blobs blob.Store,
	stateSerde serde.Bytes[T],
	options ...Option[*BlobStore[T]],
) *BlobStore[T] {
	s := &BlobStore[T]{
		blobs:             blobs,
		serde:             stateSerde,
		deleteConcurrency: DefaultDeleteConcurrency,
	}

	for _, opt := range options {
		opt.apply(s)
	}

	return s
}

// BucketFor returns the bucket name snapshots of the given Aggregate type are stored into.
func (s *BlobStore[T]) BucketFor(aggregateType string) string {
	return s.buckets.Resolve(aggregateType)
}

// Get returns the snapshot with the highest version for the given Aggregate.
//
// ErrNotFound is returned when no snapshot exists, or when the most recent
// one cannot be read back: in that case the unreadable snapshot (and any
// older one) is removed, so that the next Save can start afresh.
//
// Any other error comes from the underlying blob.Store.
func (s *BlobStore[T]) Get(ctx context.Context, aggregateType, aggregateID string) (Snapshot[T], error) {
	var zeroValue Snapshot[T]

	if aggregateType == "" || aggregateID == "" {
		return zeroValue, fmt.Errorf("snapshot.BlobStore.Get: %w", ErrEmptyIdentifier)
	}

	bucket := s.buckets.Resolve(aggregateType)
	query := blob.Query{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Order:         blob.NewestFirst,
	}

	var unreadable blob.ID

	for attempt := 1; ; attempt++ {
		file, err := s.blobs.FindOne(ctx, bucket, query)
		if errors.Is(err, blob.ErrFileNotFound) {
			return zeroValue, ErrNotFound
		}

		if err != nil {
			return zeroValue, fmt.Errorf("snapshot.BlobStore.Get: failed to find latest snapshot, %w", err)
		}

		snap, err := s.read(ctx, bucket, file)
		if err == nil {
			return snap, nil
		}

		// The object may have been deleted, fully or partially, after the query:
		// look again, and only give up on it when the same object is listed again.
		if isDownloadFailure(err) && file.ID != unreadable && attempt < maxGetAttempts {
			unreadable = file.ID
			continue
		}

		if errors.Is(err, errCorrupted) || errors.Is(err, blob.ErrFileNotFound) {
			s.discardCorrupted(ctx, bucket, file, err)
			return zeroValue, ErrNotFound
		}

		return zeroValue, fmt.Errorf("snapshot.BlobStore.Get: failed to read snapshot, %w", err)
	}
}

func isDownloadFailure(err error) bool {
	return errors.Is(err, blob.ErrFileNotFound) || errors.Is(err, blob.ErrFileCorrupted)
}

func (s *BlobStore[T]) read(ctx context.Context, bucket string, file blob.File) (Snapshot[T], error) {
	var zeroValue Snapshot[T]

	payload, err := s.blobs.Download(ctx, bucket, file.ID)
	if errors.Is(err, blob.ErrFileCorrupted) {
		return zeroValue, fmt.Errorf("%w: %w", errCorrupted, err)
	}

	if err != nil {
		return zeroValue, err
	}

	root, err := s.serde.Deserialize(payload)
	if err != nil {
		return zeroValue, fmt.Errorf("%w: failed to deserialize aggregate root, %w", errCorrupted, err)
	}

	createdAt, err := blob.ParseCreatedAt(file.Metadata.CreatedAt)
	if err != nil {
		return zeroValue, fmt.Errorf("%w: %w", errCorrupted, err)
	}

	if s.validate != nil {
		if err := s.validate(file.Metadata.AggregateType, root); err != nil {
			return zeroValue, fmt.Errorf("%w: state validation failed, %w", errCorrupted, err)
		}
	}

	return Snapshot[T]{
		AggregateType: file.Metadata.AggregateType,
		AggregateID:   file.Metadata.AggregateID,
		AggregateRoot: root,
		LastVersion:   file.Metadata.LastVersion,
		CreatedAt:     createdAt,
	}, nil
}

// discardCorrupted removes the unreadable snapshot and all the older ones
// of the same Aggregate. Newer snapshots, written concurrently, are kept.
func (s *BlobStore[T]) discardCorrupted(ctx context.Context, bucket string, corrupted blob.File, cause error) {
	fields := []logger.Field{
		logger.With("aggregate.type", corrupted.Metadata.AggregateType),
		logger.With("aggregate.id", corrupted.Metadata.AggregateID),
		logger.With("bucket", bucket),
		logger.With("blob.id", corrupted.ID),
		logger.Err(cause),
	}

	logger.Info(s.logger, "snapshot.BlobStore: discarding corrupted snapshot", fields...)

	files, err := s.blobs.Find(ctx, bucket, blob.Query{
		AggregateType: corrupted.Metadata.AggregateType,
		AggregateID:   corrupted.Metadata.AggregateID,
	})
	if err != nil {
		logger.Error(s.logger, "snapshot.BlobStore: failed to list corrupted snapshots",
			append(fields, logger.With("find.error", err))...)

		return
	}

	stale := make([]blob.File, 0, len(files))
	for _, file := range files {
		if !file.Metadata.LastVersion.IsNewerThan(corrupted.Metadata.LastVersion) {
			stale = append(stale, file)
		}
	}

	s.deleteAll(ctx, bucket, stale)
}

// Save writes a new snapshot, then removes the older snapshots of the same Aggregate.
//
// Errors from serialization or from the write are returned. Failures while
// removing older snapshots are only logged, since a later Save retries it.
func (s *BlobStore[T]) Save(ctx context.Context, snapshot Snapshot[T]) error {
	if snapshot.AggregateType == "" || snapshot.AggregateID == "" {
		return fmt.Errorf("snapshot.BlobStore.Save: %w", ErrEmptyIdentifier)
	}

	payload, err := s.serde.Serialize(snapshot.AggregateRoot)
	if err != nil {
		return fmt.Errorf("snapshot.BlobStore.Save: failed to serialize aggregate root, %w", err)
	}

	bucket := s.buckets.Resolve(snapshot.AggregateType)

	if err := s.blobs.Upload(ctx, bucket, s.blobs.NewID(), payload, blob.Metadata{
		AggregateID:   snapshot.AggregateID,
		AggregateType: snapshot.AggregateType,
		LastVersion:   snapshot.LastVersion,
		CreatedAt:     blob.FormatCreatedAt(snapshot.CreatedAt),
	}); err != nil {
		return fmt.Errorf("snapshot.BlobStore.Save: failed to upload snapshot, %w", err)
	}

	if err := s.PruneOlderVersions(ctx, snapshot.AggregateType, snapshot.AggregateID); err != nil {
		logger.Error(s.logger, "snapshot.BlobStore: failed to prune older snapshots",
			logger.With("aggregate.type", snapshot.AggregateType),
			logger.With("aggregate.id", snapshot.AggregateID),
			logger.Err(err),
		)
	}

	return nil
}

// PruneOlderVersions removes all the snapshots of the given Aggregate,
// except the one with the highest version.
//
// Only the failure to list the snapshots is returned: single deletion
// failures are logged and skipped.
func (s *BlobStore[T]) PruneOlderVersions(ctx context.Context, aggregateType, aggregateID string) error {
	if aggregateType == "" || aggregateID == "" {
		return fmt.Errorf("snapshot.BlobStore.PruneOlderVersions: %w", ErrEmptyIdentifier)
	}

	bucket := s.buckets.Resolve(aggregateType)

	stale, err := s.blobs.Find(ctx, bucket, blob.Query{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Order:         blob.NewestFirst,
		Skip:          1,
	})
	if err != nil {
		return fmt.Errorf("snapshot.BlobStore.PruneOlderVersions: failed to find older snapshots, %w", err)
	}

	if deleted := s.deleteAll(ctx, bucket, stale); deleted > 0 {
		logger.Debug(s.logger, "snapshot.BlobStore: pruned older snapshots",
			logger.With("aggregate.type", aggregateType),
			logger.With("aggregate.id", aggregateID),
			logger.With("deleted", deleted),
		)
	}

	return nil
}

// DeleteByAggregateID removes all the snapshots of the given Aggregate instance.
//
// Only the failure to list the snapshots is returned: single deletion
// failures are logged and skipped.
func (s *BlobStore[T]) DeleteByAggregateID(ctx context.Context, aggregateID, aggregateType string) error {
	if aggregateType == "" || aggregateID == "" {
		return fmt.Errorf("snapshot.BlobStore.DeleteByAggregateID: %w", ErrEmptyIdentifier)
	}

	bucket := s.buckets.Resolve(aggregateType)

	files, err := s.blobs.Find(ctx, bucket, blob.Query{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
	})
	if err != nil {
		return fmt.Errorf("snapshot.BlobStore.DeleteByAggregateID: failed to find snapshots, %w", err)
	}

	s.deleteAll(ctx, bucket, files)

	return nil
}

// DeleteByAggregateType removes all the snapshots of all the instances of
// the given Aggregate type.
//
// Only the failure to list the snapshots is returned: single deletion
// failures are logged and skipped.
func (s *BlobStore[T]) DeleteByAggregateType(ctx context.Context, aggregateType string) error {
	if aggregateType == "" {
		return fmt.Errorf("snapshot.BlobStore.DeleteByAggregateType: %w", ErrEmptyIdentifier)
	}

	bucket := s.buckets.Resolve(aggregateType)

	files, err := s.blobs.Find(ctx, bucket, blob.Query{AggregateType: aggregateType})
	if err != nil {
		return fmt.Errorf("snapshot.BlobStore.DeleteByAggregateType: failed to find snapshots, %w", err)
	}

	s.deleteAll(ctx, bucket, files)

	return nil
}

// deleteAll attempts to delete every file, independently from the outcome
// of the other deletions, and returns the number of files actually deleted.
func (s *BlobStore[T]) deleteAll(ctx context.Context, bucket string, files []blob.File) int {
	var (
		group   errgroup.Group
		deleted atomic.Int64
	)

	limit := s.deleteConcurrency
	if limit < 1 {
		limit = DefaultDeleteConcurrency
	}

	group.SetLimit(limit)

	for _, file := range files {
		group.Go(func() error {
			err := s.blobs.Delete(ctx, bucket, file.ID)

			switch {
			case err == nil:
				deleted.Add(1)
			case errors.Is(err, blob.ErrFileNotFound):
				// Already removed by a concurrent prune.
			default:
				logger.Error(s.logger, "snapshot.BlobStore: failed to delete snapshot",
					logger.With("aggregate.type", file.Metadata.AggregateType),
					logger.With("aggregate.id", file.Metadata.AggregateID),
					logger.With("bucket", bucket),
					logger.With("blob.id", file.ID),
					logger.Err(err),
				)
			}

			return nil
		})
	}

	_ = group.Wait()

	return int(deleted.Load())
}

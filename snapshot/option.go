package snapshot

import (
	"maps"

	"github.com/get-eventually/go-eventually-snapshot/logger"
)

// Option can be used to change the configuration of an object.
type Option[T any] interface {
	apply(T)
}

type option[T any] func(T)

func newOption[T any](f func(T)) option[T] { return option[T](f) }

func (apply option[T]) apply(val T) { apply(val) }

// DefaultDeleteConcurrency is the default number of concurrent deletions
// performed by a BlobStore when pruning or bulk-deleting snapshots.
const DefaultDeleteConcurrency = 4

// WithBuckets specifies how a BlobStore maps Aggregate types to bucket names.
//
// The overrides are copied: later changes to the map do not affect the BlobStore.
func WithBuckets[T any](buckets Buckets) Option[*BlobStore[T]] {
	buckets.Overrides = maps.Clone(buckets.Overrides)

	return newOption(func(s *BlobStore[T]) {
		s.buckets = buckets
	})
}

// WithLogger specifies the logger.Logger a BlobStore reports
// best-effort cleanup failures to.
func WithLogger[T any](l logger.Logger) Option[*BlobStore[T]] {
	return newOption(func(s *BlobStore[T]) {
		s.logger = l
	})
}

// WithDeleteConcurrency specifies the maximum number of deletions a BlobStore
// performs concurrently. Values lower than 1 are ignored.
func WithDeleteConcurrency[T any](n int) Option[*BlobStore[T]] {
	return newOption(func(s *BlobStore[T]) {
		if n > 0 {
			s.deleteConcurrency = n
		}
	})
}

// WithStateValidator specifies a function to validate the deserialized
// Aggregate Root state against the requested Aggregate type.
//
// A snapshot failing validation is handled like a corrupted one:
// it gets removed, and ErrNotFound is returned.
func WithStateValidator[T any](validate func(aggregateType string, state T) error) Option[*BlobStore[T]] {
	return newOption(func(s *BlobStore[T]) {
		s.validate = validate
	})
}

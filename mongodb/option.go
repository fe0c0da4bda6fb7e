package mongodb

import (
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// Option can be used to change the configuration of an object.
type Option[T any] interface {
	apply(T)
}

type option[T any] func(T)

func newOption[T any](f func(T)) option[T] { return option[T](f) }

func (apply option[T]) apply(val T) { apply(val) }

// WithReadConcern specifies the read concern used by the GridFS buckets
// of a BlobStore.
func WithReadConcern(rc *readconcern.ReadConcern) Option[*BlobStore] {
	return newOption(func(s *BlobStore) {
		s.readConcern = rc
	})
}

// WithWriteConcern specifies the write concern used by the GridFS buckets
// of a BlobStore.
func WithWriteConcern(wc *writeconcern.WriteConcern) Option[*BlobStore] {
	return newOption(func(s *BlobStore) {
		s.writeConcern = wc
	})
}

// WithChunkSize specifies the GridFS chunk size, in bytes, of the uploaded snapshots.
func WithChunkSize(size int32) Option[*BlobStore] {
	return newOption(func(s *BlobStore) {
		if size > 0 {
			s.chunkSize = size
		}
	})
}

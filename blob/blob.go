// Package blob defines the object storage capability consumed by the
// snapshot store adapter: named buckets holding opaque byte payloads,
// addressed by an object id and queryable through their metadata.
package blob

import (
	"context"
	"fmt"
	"time"

	"github.com/get-eventually/go-eventually-snapshot/version"
)

// CreatedAtLayout is the layout used to store snapshot creation times
// in the blob metadata: UTC, microsecond precision, no zone designator.
const CreatedAtLayout = "2006-01-02T15:04:05.000000"

var (
	// ErrFileNotFound is returned by a Store when the requested object does not exist.
	ErrFileNotFound = fmt.Errorf("blob: file not found")

	// ErrFileCorrupted is returned by a Store when the requested object exists,
	// but its payload could not be read back in full.
	ErrFileCorrupted = fmt.Errorf("blob: file corrupted")

	// ErrFileExists is returned by Store.Upload when the object id is already in use.
	ErrFileExists = fmt.Errorf("blob: file already exists")
)

// ID identifies a stored object inside a bucket.
type ID string

// Metadata is the queryable metadata attached to every stored snapshot payload.
type Metadata struct {
	AggregateID   string
	AggregateType string
	LastVersion   version.Version
	CreatedAt     string
}

// FormatCreatedAt formats t using CreatedAtLayout, after converting it to UTC.
func FormatCreatedAt(t time.Time) string {
	return t.UTC().Format(CreatedAtLayout)
}

// ParseCreatedAt parses a value formatted by FormatCreatedAt.
func ParseCreatedAt(value string) (time.Time, error) {
	t, err := time.ParseInLocation(CreatedAtLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("blob.ParseCreatedAt: invalid created_at value, %w", err)
	}

	return t, nil
}

// File is a stored object, as returned by queries: the payload is
// not included and must be fetched through Store.Download.
type File struct {
	ID       ID
	Metadata Metadata
}

// Order is the ordering of query results on Metadata.LastVersion.
type Order uint8

const (
	// NewestFirst sorts by last version, descending.
	NewestFirst Order = iota
	// OldestFirst sorts by last version, ascending.
	OldestFirst
)

// Query selects files by exact match on their metadata.
//
// Empty AggregateType or AggregateID fields are not used as filters.
// Zero Skip and Limit values mean no skip and no limit.
type Query struct {
	AggregateType string
	AggregateID   string
	Order         Order
	Skip          int64
	Limit         int64
}

// Store is a named-bucket object storage with queryable metadata.
//
// Implementations must provide per-call atomicity only: no isolation
// between different calls is expected.
type Store interface {
	// NewID returns a fresh, unique object id.
	NewID() ID

	// Upload stores a new object with the given id, payload and metadata.
	// ErrFileExists is returned if the id is already in use in the bucket.
	Upload(ctx context.Context, bucket string, id ID, payload []byte, metadata Metadata) error

	// Find returns all the files in the bucket matching the query.
	Find(ctx context.Context, bucket string, query Query) ([]File, error)

	// FindOne returns the first file matching the query, or ErrFileNotFound.
	FindOne(ctx context.Context, bucket string, query Query) (File, error)

	// Download returns the payload of the object, or ErrFileNotFound.
	Download(ctx context.Context, bucket string, id ID) ([]byte, error)

	// Delete removes the object, or returns ErrFileNotFound if absent.
	Delete(ctx context.Context, bucket string, id ID) error
}

// FindOneFromFind implements Store.FindOne on top of a Find function,
// for backends with no dedicated single-result lookup.
func FindOneFromFind(
	ctx context.Context,
	find func(ctx context.Context, bucket string, query Query) ([]File, error),
	bucket string,
	query Query,
) (File, error) {
	query.Limit = 1

	files, err := find(ctx, bucket, query)
	if err != nil {
		return File{}, err
	}

	if len(files) == 0 {
		return File{}, ErrFileNotFound
	}

	return files[0], nil
}

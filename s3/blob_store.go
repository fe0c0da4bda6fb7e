// Package eventuallys3 provides a blob.Store implementation on top of
// S3-compatible object storages, using the MinIO client.
package eventuallys3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"github.com/get-eventually/go-eventually-snapshot/blob"
	"github.com/get-eventually/go-eventually-snapshot/version"
)

var _ blob.Store = BlobStore{}

const (
	indexKeyMetadata = "Index-Key"
	noSuchKeyCode    = "NoSuchKey"
)

// BlobStore is a blob.Store implementation storing every snapshot bucket
// under its own key prefix of a single S3 bucket.
//
// Each object is written twice: the payload under "<bucket>/objects/<id>",
// and an empty index marker whose key carries the object metadata, under
// "<bucket>/index/<type>/<id>/<version>/<created at>/<object id>".
// Find only lists the index markers.
type BlobStore struct {
	Client *minio.Client
	// Bucket is the S3 bucket holding all the objects, which must exist.
	Bucket string
}

func escape(segment string) string { return url.PathEscape(segment) }

func prefix(bucket string) string { return escape(bucket) + "/" }

func objectKey(bucket string, id blob.ID) string {
	return prefix(bucket) + "objects/" + escape(string(id))
}

func indexPrefix(bucket string, query blob.Query) string {
	p := prefix(bucket) + "index/"

	if query.AggregateType == "" {
		return p
	}

	p += escape(query.AggregateType) + "/"

	if query.AggregateID == "" {
		return p
	}

	return p + escape(query.AggregateID) + "/"
}

func indexKey(bucket string, id blob.ID, metadata blob.Metadata) string {
	return indexPrefix(bucket, blob.Query{
		AggregateType: metadata.AggregateType,
		AggregateID:   metadata.AggregateID,
	}) + fmt.Sprintf("%010d", metadata.LastVersion) + "/" +
		escape(metadata.CreatedAt) + "/" +
		escape(string(id))
}

func parseIndexKey(bucket, key string) (blob.File, bool) {
	segments := strings.Split(strings.TrimPrefix(key, prefix(bucket)+"index/"), "/")
	if len(segments) != 5 { //nolint:mnd // Number of segments in the index key.
		return blob.File{}, false
	}

	for i, segment := range segments {
		unescaped, err := url.PathUnescape(segment)
		if err != nil {
			return blob.File{}, false
		}

		segments[i] = unescaped
	}

	lastVersion, err := strconv.ParseUint(segments[2], 10, 32)
	if err != nil {
		return blob.File{}, false
	}

	return blob.File{
		ID: blob.ID(segments[4]),
		Metadata: blob.Metadata{
			AggregateType: segments[0],
			AggregateID:   segments[1],
			LastVersion:   version.Version(lastVersion),
			CreatedAt:     segments[3],
		},
	}, true
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == noSuchKeyCode
}

// NewID returns a random UUID.
func (s BlobStore) NewID() blob.ID {
	return blob.ID(uuid.NewString())
}

// Upload implements the blob.Store interface.
//
// The existence check on the object id is not atomic with the write.
func (s BlobStore) Upload(
	ctx context.Context,
	bucket string,
	id blob.ID,
	payload []byte,
	metadata blob.Metadata,
) error {
	key := objectKey(bucket, id)

	_, err := s.Client.StatObject(ctx, s.Bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return fmt.Errorf("eventuallys3.BlobStore.Upload: file %s, %w", id, blob.ErrFileExists)
	}

	if !isNoSuchKey(err) {
		return fmt.Errorf("eventuallys3.BlobStore.Upload: failed to check object, %w", err)
	}

	marker := indexKey(bucket, id, metadata)

	if _, err := s.Client.PutObject(ctx, s.Bucket, key, bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{
			ContentType:  "application/octet-stream",
			UserMetadata: map[string]string{indexKeyMetadata: marker},
		},
	); err != nil {
		return fmt.Errorf("eventuallys3.BlobStore.Upload: failed to put object, %w", err)
	}

	if _, err := s.Client.PutObject(ctx, s.Bucket, marker, bytes.NewReader(nil), 0,
		minio.PutObjectOptions{},
	); err != nil {
		return fmt.Errorf("eventuallys3.BlobStore.Upload: failed to put index marker, %w", err)
	}

	return nil
}

type listedFile struct {
	blob.File
	key          string
	lastModified int64
}

// Find implements the blob.Store interface.
func (s BlobStore) Find(ctx context.Context, bucket string, query blob.Query) ([]blob.File, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var found []listedFile

	for object := range s.Client.ListObjects(ctx, s.Bucket, minio.ListObjectsOptions{
		Prefix:    indexPrefix(bucket, query),
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("eventuallys3.BlobStore.Find: failed to list index, %w", object.Err)
		}

		file, ok := parseIndexKey(bucket, object.Key)
		if !ok {
			continue
		}

		if query.AggregateID != "" && file.Metadata.AggregateID != query.AggregateID {
			continue
		}

		found = append(found, listedFile{
			File:         file,
			key:          object.Key,
			lastModified: object.LastModified.UnixNano(),
		})
	}

	slices.SortFunc(found, func(a, b listedFile) int {
		cmp := compare(int64(a.Metadata.LastVersion), int64(b.Metadata.LastVersion))
		if cmp == 0 {
			cmp = compare(a.lastModified, b.lastModified)
		}

		if cmp == 0 {
			cmp = strings.Compare(a.key, b.key)
		}

		if query.Order == blob.NewestFirst {
			return -cmp
		}

		return cmp
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

func compare(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// FindOne implements the blob.Store interface.
func (s BlobStore) FindOne(ctx context.Context, bucket string, query blob.Query) (blob.File, error) {
	return blob.FindOneFromFind(ctx, s.Find, bucket, query)
}

// Download implements the blob.Store interface.
func (s BlobStore) Download(ctx context.Context, bucket string, id blob.ID) ([]byte, error) {
	object, err := s.Client.GetObject(ctx, s.Bucket, objectKey(bucket, id), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("eventuallys3.BlobStore.Download: failed to get object, %w", err)
	}

	defer object.Close()

	payload, err := io.ReadAll(object)
	if isNoSuchKey(err) {
		return nil, fmt.Errorf("eventuallys3.BlobStore.Download: file %s, %w", id, blob.ErrFileNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("eventuallys3.BlobStore.Download: failed to read object, %w", err)
	}

	return payload, nil
}

// Delete implements the blob.Store interface.
//
// The index marker is removed first, so that an interrupted deletion
// leaves an unreachable payload rather than a dangling marker.
func (s BlobStore) Delete(ctx context.Context, bucket string, id blob.ID) error {
	key := objectKey(bucket, id)

	info, err := s.Client.StatObject(ctx, s.Bucket, key, minio.StatObjectOptions{})
	if isNoSuchKey(err) {
		return fmt.Errorf("eventuallys3.BlobStore.Delete: file %s, %w", id, blob.ErrFileNotFound)
	}

	if err != nil {
		return fmt.Errorf("eventuallys3.BlobStore.Delete: failed to check object, %w", err)
	}

	if marker, ok := info.UserMetadata[indexKeyMetadata]; ok {
		if err := s.Client.RemoveObject(ctx, s.Bucket, marker, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("eventuallys3.BlobStore.Delete: failed to remove index marker, %w", err)
		}
	}

	if err := s.Client.RemoveObject(ctx, s.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("eventuallys3.BlobStore.Delete: failed to remove object, %w", err)
	}

	return nil
}

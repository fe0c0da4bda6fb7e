// Package eventuallyfirestore provides a blob.Store implementation
// on top of Google Cloud Firestore.
package eventuallyfirestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/get-eventually/go-eventually-snapshot/blob"
	"github.com/get-eventually/go-eventually-snapshot/version"
)

var _ blob.Store = BlobStore{}

type blobDocument struct {
	AggregateID   string    `firestore:"aggregate_id"`
	AggregateType string    `firestore:"aggregate_type"`
	LastVersion   int64     `firestore:"last_version"`
	CreatedAt     string    `firestore:"created_at"`
	UploadedAt    time.Time `firestore:"uploaded_at,serverTimestamp"`
	Payload       []byte    `firestore:"payload"`
}

// BlobStore is a blob.Store implementation using one Firestore collection
// per bucket, and one document per stored object.
//
// Payloads are stored inline, so they are subject to the Firestore
// document size limit. Queries filtering on both Aggregate type and id
// need a composite index on (aggregate_type, aggregate_id, last_version, uploaded_at).
type BlobStore struct {
	Client *firestore.Client
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
	if payload == nil {
		payload = []byte{}
	}

	_, err := s.Client.Collection(bucket).Doc(string(id)).Create(ctx, blobDocument{
		AggregateID:   metadata.AggregateID,
		AggregateType: metadata.AggregateType,
		LastVersion:   int64(metadata.LastVersion),
		CreatedAt:     metadata.CreatedAt,
		Payload:       payload,
	})

	if status.Code(err) == codes.AlreadyExists {
		return fmt.Errorf("eventuallyfirestore.BlobStore.Upload: file %s, %w: %w", id, blob.ErrFileExists, err)
	}

	if err != nil {
		return fmt.Errorf("eventuallyfirestore.BlobStore.Upload: failed to create document, %w", err)
	}

	return nil
}

// Find implements the blob.Store interface.
func (s BlobStore) Find(ctx context.Context, bucket string, query blob.Query) ([]blob.File, error) {
	q := s.Client.Collection(bucket).
		Select("aggregate_id", "aggregate_type", "last_version", "created_at")

	if query.AggregateType != "" {
		q = q.Where("aggregate_type", "==", query.AggregateType)
	}

	if query.AggregateID != "" {
		q = q.Where("aggregate_id", "==", query.AggregateID)
	}

	direction := firestore.Desc
	if query.Order == blob.OldestFirst {
		direction = firestore.Asc
	}

	q = q.OrderBy("last_version", direction).OrderBy("uploaded_at", direction)

	if query.Skip > 0 {
		q = q.Offset(int(query.Skip))
	}

	if query.Limit > 0 {
		q = q.Limit(int(query.Limit))
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var files []blob.File

	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("eventuallyfirestore.BlobStore.Find: failed while reading iterator, %w", err)
		}

		var document blobDocument
		if err := doc.DataTo(&document); err != nil {
			return nil, fmt.Errorf("eventuallyfirestore.BlobStore.Find: failed to decode document %s, %w", doc.Ref.ID, err)
		}

		files = append(files, blob.File{
			ID: blob.ID(doc.Ref.ID),
			Metadata: blob.Metadata{
				AggregateID:   document.AggregateID,
				AggregateType: document.AggregateType,
				LastVersion:   version.Version(document.LastVersion), //nolint:gosec // Written from a version.Version.
				CreatedAt:     document.CreatedAt,
			},
		})
	}

	return files, nil
}

// FindOne implements the blob.Store interface.
func (s BlobStore) FindOne(ctx context.Context, bucket string, query blob.Query) (blob.File, error) {
	return blob.FindOneFromFind(ctx, s.Find, bucket, query)
}

// Download implements the blob.Store interface.
func (s BlobStore) Download(ctx context.Context, bucket string, id blob.ID) ([]byte, error) {
	doc, err := s.Client.Collection(bucket).Doc(string(id)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("eventuallyfirestore.BlobStore.Download: file %s, %w", id, blob.ErrFileNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("eventuallyfirestore.BlobStore.Download: failed to get document, %w", err)
	}

	payload, ok := doc.Data()["payload"].([]byte)
	if !ok {
		return nil, fmt.Errorf("eventuallyfirestore.BlobStore.Download: file %s has no payload, %w", id, blob.ErrFileCorrupted)
	}

	return payload, nil
}

// Delete implements the blob.Store interface.
func (s BlobStore) Delete(ctx context.Context, bucket string, id blob.ID) error {
	_, err := s.Client.Collection(bucket).Doc(string(id)).Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("eventuallyfirestore.BlobStore.Delete: file %s, %w", id, blob.ErrFileNotFound)
	}

	if err != nil {
		return fmt.Errorf("eventuallyfirestore.BlobStore.Delete: failed to delete document, %w", err)
	}

	return nil
}

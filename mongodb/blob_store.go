package mongodb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/get-eventually/go-eventually-snapshot/blob"
	"github.com/get-eventually/go-eventually-snapshot/version"
)

var _ blob.Store = &BlobStore{}

type metadataDocument struct {
	AggregateID   string `bson:"aggregate_id"`
	AggregateType string `bson:"aggregate_type"`
	LastVersion   int64  `bson:"last_version"`
	CreatedAt     string `bson:"created_at"`
}

type fileDocument struct {
	ID       any              `bson:"_id"`
	Metadata metadataDocument `bson:"metadata"`
}

// BlobStore is a blob.Store implementation using MongoDB GridFS buckets.
//
// Snapshot metadata is stored in the "metadata" document of the
// GridFS files collection, which is what Find queries and sorts on.
type BlobStore struct {
	db           *mongo.Database
	readConcern  *readconcern.ReadConcern
	writeConcern *writeconcern.WriteConcern
	chunkSize    int32
}

// NewBlobStore returns a new BlobStore using the GridFS buckets of the given database.
func NewBlobStore(db *mongo.Database, options ...Option[*BlobStore]) *BlobStore {
	s := &BlobStore{db: db}

	for _, opt := range options {
		opt.apply(s)
	}

	return s
}

// bucket opens the named GridFS bucket. Uploads and downloads in the v1 driver
// have no context support, so the context deadline is applied to the bucket.
func (s *BlobStore) bucket(ctx context.Context, name string) (*gridfs.Bucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := options.GridFSBucket().SetName(name)

	if s.readConcern != nil {
		opts.SetReadConcern(s.readConcern)
	}

	if s.writeConcern != nil {
		opts.SetWriteConcern(s.writeConcern)
	}

	if s.chunkSize > 0 {
		opts.SetChunkSizeBytes(s.chunkSize)
	}

	bucket, err := gridfs.NewBucket(s.db, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open gridfs bucket %q, %w", name, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := bucket.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("failed to set read deadline, %w", err)
		}

		if err := bucket.SetWriteDeadline(deadline); err != nil {
			return nil, fmt.Errorf("failed to set write deadline, %w", err)
		}
	}

	return bucket, nil
}

// NewID returns the hex representation of a new ObjectID.
func (s *BlobStore) NewID() blob.ID {
	return blob.ID(primitive.NewObjectID().Hex())
}

// Upload implements the blob.Store interface.
func (s *BlobStore) Upload(
	ctx context.Context,
	bucketName string,
	id blob.ID,
	payload []byte,
	metadata blob.Metadata,
) error {
	bucket, err := s.bucket(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("mongodb.BlobStore.Upload: %w", err)
	}

	opts := options.GridFSUpload().SetMetadata(metadataDocument{
		AggregateID:   metadata.AggregateID,
		AggregateType: metadata.AggregateType,
		LastVersion:   int64(metadata.LastVersion),
		CreatedAt:     metadata.CreatedAt,
	})

	filename := metadata.AggregateType + "/" + metadata.AggregateID

	err = bucket.UploadFromStreamWithID(fileID(id), filename, bytes.NewReader(payload), opts)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("mongodb.BlobStore.Upload: file %s, %w: %w", id, blob.ErrFileExists, err)
	}

	if err != nil {
		return fmt.Errorf("mongodb.BlobStore.Upload: failed to upload file, %w", err)
	}

	return nil
}

// Find implements the blob.Store interface.
func (s *BlobStore) Find(ctx context.Context, bucketName string, query blob.Query) ([]blob.File, error) {
	bucket, err := s.bucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("mongodb.BlobStore.Find: %w", err)
	}

	filter := bson.D{}

	if query.AggregateType != "" {
		filter = append(filter, bson.E{Key: "metadata.aggregate_type", Value: query.AggregateType})
	}

	if query.AggregateID != "" {
		filter = append(filter, bson.E{Key: "metadata.aggregate_id", Value: query.AggregateID})
	}

	direction := -1
	if query.Order == blob.OldestFirst {
		direction = 1
	}

	opts := options.GridFSFind().SetSort(bson.D{
		{Key: "metadata.last_version", Value: direction},
		{Key: "_id", Value: direction},
	})

	if query.Skip > 0 {
		opts.SetSkip(clampInt32(query.Skip))
	}

	if query.Limit > 0 {
		opts.SetLimit(clampInt32(query.Limit))
	}

	cursor, err := bucket.FindContext(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb.BlobStore.Find: failed to query files, %w", err)
	}

	var documents []fileDocument
	if err := cursor.All(ctx, &documents); err != nil {
		return nil, fmt.Errorf("mongodb.BlobStore.Find: failed to decode files, %w", err)
	}

	files := make([]blob.File, 0, len(documents))
	for _, doc := range documents {
		files = append(files, blob.File{
			ID: blobID(doc.ID),
			Metadata: blob.Metadata{
				AggregateID:   doc.Metadata.AggregateID,
				AggregateType: doc.Metadata.AggregateType,
				LastVersion:   version.Version(doc.Metadata.LastVersion), //nolint:gosec // Written from a version.Version.
				CreatedAt:     doc.Metadata.CreatedAt,
			},
		})
	}

	return files, nil
}

// FindOne implements the blob.Store interface.
func (s *BlobStore) FindOne(ctx context.Context, bucketName string, query blob.Query) (blob.File, error) {
	return blob.FindOneFromFind(ctx, s.Find, bucketName, query)
}

// Download implements the blob.Store interface.
func (s *BlobStore) Download(ctx context.Context, bucketName string, id blob.ID) ([]byte, error) {
	bucket, err := s.bucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("mongodb.BlobStore.Download: %w", err)
	}

	var buf bytes.Buffer
	if _, err := bucket.DownloadToStream(fileID(id), &buf); err != nil {
		return nil, fmt.Errorf("mongodb.BlobStore.Download: failed to download file %s, %w", id, mapError(err))
	}

	return buf.Bytes(), nil
}

// Delete implements the blob.Store interface.
func (s *BlobStore) Delete(ctx context.Context, bucketName string, id blob.ID) error {
	bucket, err := s.bucket(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("mongodb.BlobStore.Delete: %w", err)
	}

	if err := bucket.DeleteContext(ctx, fileID(id)); err != nil {
		return fmt.Errorf("mongodb.BlobStore.Delete: failed to delete file %s, %w", id, mapError(err))
	}

	return nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, gridfs.ErrFileNotFound):
		return fmt.Errorf("%w: %w", blob.ErrFileNotFound, err)
	case errors.Is(err, gridfs.ErrWrongIndex), errors.Is(err, gridfs.ErrWrongSize):
		return fmt.Errorf("%w: %w", blob.ErrFileCorrupted, err)
	default:
		return err
	}
}

// fileID converts a blob.ID to the GridFS file id: ids created by NewID
// are ObjectIDs, any other id is stored as a string.
func fileID(id blob.ID) any {
	if oid, err := primitive.ObjectIDFromHex(string(id)); err == nil {
		return oid
	}

	return string(id)
}

func blobID(v any) blob.ID {
	switch id := v.(type) {
	case primitive.ObjectID:
		return blob.ID(id.Hex())
	case string:
		return blob.ID(id)
	default:
		return blob.ID(fmt.Sprint(id))
	}
}

func clampInt32(v int64) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}

	return int32(v)
}

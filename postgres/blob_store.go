package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/get-eventually/go-eventually-snapshot/blob"
	"github.com/get-eventually/go-eventually-snapshot/version"
)

var _ blob.Store = BlobStore{}

const uniqueViolationCode = "23505"

// BlobStore is a blob.Store implementation targeted to PostgreSQL databases.
//
// All buckets share the "snapshot_blobs" table, created by RunMigrations.
type BlobStore struct {
	Conn *pgxpool.Pool
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

	_, err := s.Conn.Exec(
		ctx,
		`INSERT INTO snapshot_blobs (bucket, id, aggregate_type, aggregate_id, last_version, created_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		bucket, string(id),
		metadata.AggregateType, metadata.AggregateID, int64(metadata.LastVersion), metadata.CreatedAt,
		payload,
	)

	if isUniqueViolation(err) {
		return fmt.Errorf("postgres.BlobStore.Upload: file %s, %w: %w", id, blob.ErrFileExists, err)
	}

	if err != nil {
		return fmt.Errorf("postgres.BlobStore.Upload: failed to insert file, %w", err)
	}

	return nil
}

// Find implements the blob.Store interface.
func (s BlobStore) Find(ctx context.Context, bucket string, query blob.Query) ([]blob.File, error) {
	var (
		sql  strings.Builder
		args = []any{bucket}
	)

	sql.WriteString(`SELECT id, aggregate_type, aggregate_id, last_version, created_at
		FROM snapshot_blobs WHERE bucket = $1`)

	if query.AggregateType != "" {
		args = append(args, query.AggregateType)
		sql.WriteString(" AND aggregate_type = $" + strconv.Itoa(len(args)))
	}

	if query.AggregateID != "" {
		args = append(args, query.AggregateID)
		sql.WriteString(" AND aggregate_id = $" + strconv.Itoa(len(args)))
	}

	if query.Order == blob.OldestFirst {
		sql.WriteString(" ORDER BY last_version ASC, seq ASC")
	} else {
		sql.WriteString(" ORDER BY last_version DESC, seq DESC")
	}

	if query.Limit > 0 {
		args = append(args, query.Limit)
		sql.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}

	if query.Skip > 0 {
		args = append(args, query.Skip)
		sql.WriteString(" OFFSET $" + strconv.Itoa(len(args)))
	}

	rows, err := s.Conn.Query(ctx, sql.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("postgres.BlobStore.Find: failed to query files, %w", err)
	}

	files, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (blob.File, error) {
		var (
			file        blob.File
			lastVersion int64
		)

		if err := row.Scan(
			&file.ID,
			&file.Metadata.AggregateType,
			&file.Metadata.AggregateID,
			&lastVersion,
			&file.Metadata.CreatedAt,
		); err != nil {
			return blob.File{}, err
		}

		file.Metadata.LastVersion = version.Version(lastVersion) //nolint:gosec // Written from a version.Version.

		return file, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres.BlobStore.Find: failed to scan files, %w", err)
	}

	return files, nil
}

// FindOne implements the blob.Store interface.
func (s BlobStore) FindOne(ctx context.Context, bucket string, query blob.Query) (blob.File, error) {
	return blob.FindOneFromFind(ctx, s.Find, bucket, query)
}

// Download implements the blob.Store interface.
func (s BlobStore) Download(ctx context.Context, bucket string, id blob.ID) ([]byte, error) {
	var payload []byte

	err := s.Conn.QueryRow(
		ctx,
		"SELECT payload FROM snapshot_blobs WHERE bucket = $1 AND id = $2",
		bucket, string(id),
	).Scan(&payload)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres.BlobStore.Download: file %s, %w", id, blob.ErrFileNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("postgres.BlobStore.Download: failed to fetch file, %w", err)
	}

	return payload, nil
}

// Delete implements the blob.Store interface.
func (s BlobStore) Delete(ctx context.Context, bucket string, id blob.ID) error {
	tag, err := s.Conn.Exec(
		ctx,
		"DELETE FROM snapshot_blobs WHERE bucket = $1 AND id = $2",
		bucket, string(id),
	)
	if err != nil {
		return fmt.Errorf("postgres.BlobStore.Delete: failed to delete file, %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres.BlobStore.Delete: file %s, %w", id, blob.ErrFileNotFound)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

package storage

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"time"
)

// PostgresClient stores objects as rows in the blobs table. It is the
// default avatar backend: the image bytes live next to the rest of the
// user's data and need no external service.
type PostgresClient struct {
	db *sql.DB
}

// NewPostgresClient constructs a blob store over the given database.
func NewPostgresClient(db *sql.DB) *PostgresClient {
	return &PostgresClient{db: db}
}

// EnsureBucket is a no-op; the blobs table is created by migrations.
func (p *PostgresClient) EnsureBucket(ctx context.Context) error {
	return nil
}

// Put upserts the object row for key.
func (p *PostgresClient) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO blobs (key, content_type, data, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET content_type = EXCLUDED.content_type,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at`
	_, err = p.db.ExecContext(ctx, query, key, contentType, data, time.Now())
	return err
}

// Get reads the object row for key.
func (p *PostgresClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	const query = `SELECT data FROM blobs WHERE key = $1`
	var data []byte
	if err := p.db.QueryRowContext(ctx, query, key).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotExist
		}
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes the object row for key.
func (p *PostgresClient) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM blobs WHERE key = $1`
	_, err := p.db.ExecContext(ctx, query, key)
	return err
}

// Bucket returns the backing table name.
func (p *PostgresClient) Bucket() string {
	return "blobs"
}

// Package docstore persists schemaless documents at hierarchical text paths
// (e.g. users/{userId}/recordings/{id}) backed by a PostgreSQL jsonb table.
// Writes to the same path overwrite: last write wins.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Get when no document exists at the path.
var ErrNotFound = errors.New("document not found")

// Document is a stored document with its path key.
type Document struct {
	Path   string
	Fields map[string]any
}

// Postgres is a document store backed by the documents table.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres creates a Postgres-backed document store.
func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) *Postgres {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{pool: pool, logger: logger}
}

// Write upserts the document at docPath. An existing document at the same
// path is overwritten in full.
func (p *Postgres) Write(ctx context.Context, docPath string, fields map[string]any) error {
	if docPath == "" {
		return fmt.Errorf("empty document path")
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	const q = `INSERT INTO documents (doc_path, fields)
		VALUES ($1, $2)
		ON CONFLICT (doc_path) DO UPDATE SET fields = EXCLUDED.fields, updated_at = NOW()`
	if _, err := p.pool.Exec(ctx, q, docPath, body); err != nil {
		return fmt.Errorf("write document %s: %w", docPath, err)
	}
	p.logger.Debug("document written", zap.String("path", docPath))
	return nil
}

// Get returns the document at docPath, or ErrNotFound.
func (p *Postgres) Get(ctx context.Context, docPath string) (*Document, error) {
	const q = `SELECT fields FROM documents WHERE doc_path = $1`
	var body []byte
	if err := p.pool.QueryRow(ctx, q, docPath).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document %s: %w", docPath, err)
	}
	fields := make(map[string]any)
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal document %s: %w", docPath, err)
	}
	return &Document{Path: docPath, Fields: fields}, nil
}

// ListByPrefix returns all documents whose path starts with prefix, newest first.
func (p *Postgres) ListByPrefix(ctx context.Context, prefix string) ([]Document, error) {
	const q = `SELECT doc_path, fields FROM documents WHERE doc_path LIKE $1 || '%' ORDER BY updated_at DESC`
	rows, err := p.pool.Query(ctx, q, prefix)
	if err != nil {
		return nil, fmt.Errorf("list documents %s: %w", prefix, err)
	}
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		var (
			docPath string
			body    []byte
		)
		if err := rows.Scan(&docPath, &body); err != nil {
			return nil, err
		}
		fields := make(map[string]any)
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, fmt.Errorf("unmarshal document %s: %w", docPath, err)
		}
		docs = append(docs, Document{Path: docPath, Fields: fields})
	}
	return docs, rows.Err()
}

// Delete removes the document at docPath if present.
func (p *Postgres) Delete(ctx context.Context, docPath string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM documents WHERE doc_path = $1`, docPath); err != nil {
		return fmt.Errorf("delete document %s: %w", docPath, err)
	}
	return nil
}

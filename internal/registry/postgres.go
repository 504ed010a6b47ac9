package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/ragvault/internal/apperr"
)

// PostgresStore keeps records in the rag_documents table.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const recordColumns = `document_id, original_file, stored_file, size_bytes, chunks, uploaded_at, metadata`

func (s *PostgresStore) Upsert(ctx context.Context, rec Record) error {
	meta := rec.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO rag_documents (`+recordColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (document_id) DO UPDATE
		 SET original_file = EXCLUDED.original_file,
		     stored_file = EXCLUDED.stored_file,
		     size_bytes = EXCLUDED.size_bytes,
		     chunks = EXCLUDED.chunks,
		     uploaded_at = EXCLUDED.uploaded_at,
		     metadata = EXCLUDED.metadata`,
		rec.DocumentID, rec.OriginalFile, rec.StoredFile, rec.SizeBytes, rec.ChunkCount, rec.UploadedAt, meta,
	)
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", rec.DocumentID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, documentID string) (*Record, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM rag_documents WHERE document_id = $1`, documentID)

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("document %s", documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+recordColumns+` FROM rag_documents ORDER BY uploaded_at DESC, document_id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) Remove(ctx context.Context, documentID string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM rag_documents WHERE document_id = $1", documentID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("document %s", documentID)
	}
	return nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.DocumentID, &rec.OriginalFile, &rec.StoredFile, &rec.SizeBytes,
		&rec.ChunkCount, &rec.UploadedAt, &rec.Metadata)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

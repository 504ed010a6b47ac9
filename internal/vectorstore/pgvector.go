package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/nikhilbhutani/ragvault/internal/apperr"
)

// PgVectorStore keeps chunks in a Postgres table named after the collection,
// compared with the pgvector cosine distance operator.
type PgVectorStore struct {
	db         *pgxpool.Pool
	collection string
	table      string
	dimension  int
}

func NewPgVectorStore(db *pgxpool.Pool, collection string, dimension int) *PgVectorStore {
	return &PgVectorStore{
		db:         db,
		collection: collection,
		table:      pgx.Identifier{collection}.Sanitize(),
		dimension:  dimension,
	}
}

func (s *PgVectorStore) Name() string { return "pgvector" }

func (s *PgVectorStore) EnsureCollection(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id           TEXT PRIMARY KEY,
			document_id  TEXT NOT NULL,
			chunk_index  INT NOT NULL,
			chunk_offset INT NOT NULL,
			content      TEXT NOT NULL,
			metadata     JSONB NOT NULL DEFAULT '{}',
			embedding    vector(%d) NOT NULL
		)`, s.table, s.dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (document_id, chunk_index, chunk_offset, id)`,
			pgx.Identifier{s.collection + "_document_idx"}.Sanitize(), s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return classify(ctx, fmt.Errorf("ensure collection: %w", err))
		}
	}
	return nil
}

func (s *PgVectorStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return classify(ctx, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(
		`INSERT INTO %s (id, document_id, chunk_index, chunk_offset, content, metadata, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET document_id = $2, chunk_index = $3, chunk_offset = $4,
		   content = $5, metadata = $6, embedding = $7`, s.table)

	for _, p := range points {
		_, err := tx.Exec(ctx, query,
			p.ID, p.DocumentID(), p.Index(), p.Offset(), p.Content, p.Metadata, pgvector.NewVector(p.Vector),
		)
		if err != nil {
			return classify(ctx, fmt.Errorf("upsert chunk %s: %w", p.ID, err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(ctx, fmt.Errorf("commit upsert: %w", err))
	}
	return nil
}

func (s *PgVectorStore) Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	embedding := pgvector.NewVector(vector)

	rows, err := s.db.Query(ctx, fmt.Sprintf(
		`SELECT id, content, metadata, COALESCE(NULLIF(1 - (embedding <=> $1), 'NaN'), 0) AS score
		 FROM %s
		 ORDER BY embedding <=> $1, chunk_index, id
		 LIMIT $2`, s.table),
		embedding, topK,
	)
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("similarity search: %w", err))
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Chunk.ID, &r.Chunk.Content, &r.Chunk.Metadata, &r.Score); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(ctx, fmt.Errorf("similarity search: %w", err))
	}
	return results, nil
}

func (s *PgVectorStore) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := s.db.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE document_id = $1", s.table), documentID)
	if err != nil {
		return classify(ctx, fmt.Errorf("delete document chunks: %w", err))
	}
	return nil
}

func (s *PgVectorStore) DeletePoints(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ANY($1)", s.table), ids)
	if err != nil {
		return classify(ctx, fmt.Errorf("delete chunks: %w", err))
	}
	return nil
}

// ScrollByDocument pages through a document in (chunk_index, chunk_offset, id)
// order using the last row of each page as the cursor.
func (s *PgVectorStore) ScrollByDocument(ctx context.Context, documentID string, limit int) ([]Chunk, error) {
	query := fmt.Sprintf(
		`SELECT id, content, metadata, chunk_index, chunk_offset
		 FROM %s
		 WHERE document_id = $1 AND (chunk_index, chunk_offset, id) > ($2, $3, $4)
		 ORDER BY chunk_index, chunk_offset, id
		 LIMIT $5`, s.table)

	var (
		chunks     []Chunk
		lastIndex  = -1
		lastOffset = -1
		lastID     = ""
	)
	for {
		pageSize := scrollPageSize
		if limit > 0 {
			pageSize = min(pageSize, limit-len(chunks))
		}

		rows, err := s.db.Query(ctx, query, documentID, lastIndex, lastOffset, lastID, pageSize)
		if err != nil {
			return nil, classify(ctx, fmt.Errorf("scroll chunks: %w", err))
		}
		n := 0
		for rows.Next() {
			var c Chunk
			if err := rows.Scan(&c.ID, &c.Content, &c.Metadata, &lastIndex, &lastOffset); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan chunk: %w", err)
			}
			lastID = c.ID
			chunks = append(chunks, c)
			n++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, classify(ctx, fmt.Errorf("scroll chunks: %w", err))
		}

		if n < pageSize || (limit > 0 && len(chunks) >= limit) {
			break
		}
	}
	return chunks, nil
}

const undefinedTable = "42P01"

// classify marks connection-level failures as transient. Errors reported by
// the server itself (syntax, constraint, dimension mismatch) are returned as is.
func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == undefinedTable {
			return fmt.Errorf("%w: %w", ErrCollectionMissing, err)
		}
		return err
	}
	return apperr.Transient(err, "postgres unavailable")
}

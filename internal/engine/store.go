package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// Querier is the subset of pgx pool behavior the chunk store needs.
// Satisfied by *pgxpool.Pool.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ScoredChunk is one retrieved slice of a document with its similarity to
// the query, higher meaning closer.
type ScoredChunk struct {
	Handle     string
	Ordinal    int
	Content    string
	Similarity float64
}

// ChunkStore persists embedded document chunks in PostgreSQL + pgvector.
//
// ChunkStore is safe for concurrent use by multiple goroutines.
type ChunkStore struct {
	db     Querier
	logger *slog.Logger
}

func NewChunkStore(db Querier, logger *slog.Logger) *ChunkStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChunkStore{db: db, logger: logger}
}

// Replace swaps all chunks stored under handle for the given set.
// Delete-then-insert keeps re-indexing idempotent: the table never holds
// stale chunks from a previous version of the file.
func (s *ChunkStore) Replace(ctx context.Context, handle string, chunks []string, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunk/embedding count mismatch: %d vs %d", len(chunks), len(embeddings))
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM document_chunks WHERE handle = $1`, handle); err != nil {
		return fmt.Errorf("delete chunks for %s: %w", handle, err)
	}

	for i, content := range chunks {
		vec := pgvector.NewVector(embeddings[i])
		_, err := s.db.Exec(ctx,
			`INSERT INTO document_chunks (handle, ordinal, content, embedding) VALUES ($1, $2, $3, $4)`,
			handle, i, content, vec)
		if err != nil {
			return fmt.Errorf("insert chunk %d for %s: %w", i, handle, err)
		}
	}

	s.logger.Debug("replaced chunks", slog.String("handle", handle), slog.Int("count", len(chunks)))
	return nil
}

// Search returns the chunks closest to the query embedding, restricted to
// the given handles, ordered by similarity descending.
func (s *ChunkStore) Search(ctx context.Context, handles []string, embedding []float32, limit int) ([]ScoredChunk, error) {
	if len(handles) == 0 {
		return nil, nil
	}

	vec := pgvector.NewVector(embedding)
	rows, err := s.db.Query(ctx,
		`SELECT handle, ordinal, content, 1 - (embedding <=> $1) AS similarity
		   FROM document_chunks
		  WHERE handle = ANY($2)
		  ORDER BY embedding <=> $1
		  LIMIT $3`,
		vec, handles, limit)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var results []ScoredChunk
	for rows.Next() {
		var c ScoredChunk
		if err := rows.Scan(&c.Handle, &c.Ordinal, &c.Content, &c.Similarity); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk rows: %w", err)
	}
	return results, nil
}

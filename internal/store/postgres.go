package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkuo/paperrag/internal/paper"
)

// PostgresStore persists chunks in a paper_chunks table. The paper ID and
// content hash are lifted out of the metadata into columns so deletes and
// dedup checks stay indexed; the full metadata map is kept alongside as
// JSONB so chunks round-trip unchanged.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to connStr, pings, and ensures the schema.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initialize(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS paper_chunks (
            id SERIAL PRIMARY KEY,
            content TEXT NOT NULL,
            chunk_index INTEGER NOT NULL,
            total_chunks INTEGER NOT NULL,
            char_count INTEGER NOT NULL,
            word_count INTEGER NOT NULL,
            section TEXT,
            page INTEGER,
            paper_id TEXT,
            content_hash TEXT,
            extra JSONB
        )
    `)
	if err != nil {
		return fmt.Errorf("create paper_chunks table: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
        CREATE INDEX IF NOT EXISTS paper_chunks_paper_id_idx ON paper_chunks (paper_id);
        CREATE INDEX IF NOT EXISTS paper_chunks_content_hash_idx ON paper_chunks (content_hash);
    `)
	if err != nil {
		return fmt.Errorf("create paper_chunks indices: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveChunks(ctx context.Context, chunks []paper.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range chunks {
		hash, _ := c.Extra["content_hash"].(string)
		var extra []byte
		if len(c.Extra) > 0 {
			extra, err = json.Marshal(c.Extra)
			if err != nil {
				return fmt.Errorf("encode chunk metadata: %w", err)
			}
		}
		_, err = tx.Exec(ctx, `
            INSERT INTO paper_chunks (
                content, chunk_index, total_chunks, char_count, word_count,
                section, page, paper_id, content_hash, extra
            )
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        `,
			c.Content, c.ChunkIndex, c.TotalChunks, c.CharCount, c.WordCount,
			c.Section, c.Page, c.PaperID(), hash, extra)
		if err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chunks: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadAll(ctx context.Context) ([]paper.Chunk, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT content, chunk_index, total_chunks, char_count, word_count,
               section, page, extra
        FROM paper_chunks
        ORDER BY id
    `)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []paper.Chunk
	for rows.Next() {
		var c paper.Chunk
		var extra []byte
		if err := rows.Scan(&c.Content, &c.ChunkIndex, &c.TotalChunks,
			&c.CharCount, &c.WordCount, &c.Section, &c.Page, &extra); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if len(extra) > 0 {
			if err := json.Unmarshal(extra, &c.Extra); err != nil {
				return nil, fmt.Errorf("decode chunk metadata: %w", err)
			}
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read chunks: %w", err)
	}
	return chunks, nil
}

func (s *PostgresStore) DeletePaper(ctx context.Context, paperID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM paper_chunks WHERE paper_id = $1`, paperID)
	if err != nil {
		return 0, fmt.Errorf("delete paper %s: %w", paperID, err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) ListPapers(ctx context.Context) ([]PaperInfo, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT COALESCE(NULLIF(paper_id, ''), 'unknown'), COUNT(*)
        FROM paper_chunks
        GROUP BY 1
        ORDER BY 1
    `)
	if err != nil {
		return nil, fmt.Errorf("list papers: %w", err)
	}
	infos, err := pgx.CollectRows(rows, pgx.RowToStructByPos[PaperInfo])
	if err != nil {
		return nil, fmt.Errorf("collect papers: %w", err)
	}
	return infos, nil
}

func (s *PostgresStore) HasContentHash(ctx context.Context, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM paper_chunks WHERE content_hash = $1)`, hash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check content hash: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/ragcache/internal/pkg/dbutil"
	appErr "github.com/xxxsen/ragcache/internal/pkg/errors"
)

const (
	vectorTable          = "vector_entries"
	vectorEmbeddingIndex = "vector_entries_embedding_idx"
	vectorCtimeIndex     = "idx_vector_entries_corpus_ctime"
)

type VectorEntry struct {
	Corpus    string
	ID        string
	Content   string
	Embedding []float32
	Payload   map[string]string
	Ctime     int64
}

type VectorMatch struct {
	ID       string
	Content  string
	Payload  map[string]string
	Distance float64
}

// VectorRepo keeps every corpus in one pgvector table and searches it by cosine distance.
type VectorRepo struct {
	db *sql.DB
}

func NewVectorRepo(db *sql.DB) *VectorRepo {
	return &VectorRepo{db: db}
}

// EnsureSchema creates the table and its HNSW index for the given dimension. A table
// built for another dimension is dropped and recreated.
func (r *VectorRepo) EnsureSchema(ctx context.Context, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("vector dimension must be positive, got %d", dims)
	}
	if _, err := r.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	var current int
	err := r.db.QueryRowContext(ctx, `
		SELECT a.atttypmod
		FROM pg_attribute a
		JOIN pg_class c ON a.attrelid = c.oid
		WHERE c.relname = $1 AND a.attname = 'embedding'
	`, vectorTable).Scan(&current)
	if err == nil && current > 0 && current != dims {
		if _, err := r.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+vectorTable+" CASCADE"); err != nil {
			return fmt.Errorf("drop %s: %w", vectorTable, err)
		}
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			corpus TEXT NOT NULL,
			id TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			payload JSONB NOT NULL DEFAULT '{}',
			ctime BIGINT NOT NULL,
			PRIMARY KEY (corpus, id)
		)`, vectorTable, dims),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)", vectorEmbeddingIndex, vectorTable),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (corpus, ctime)", vectorCtimeIndex, vectorTable),
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure %s schema: %w", vectorTable, err)
		}
	}
	return nil
}

func (r *VectorRepo) Upsert(ctx context.Context, item *VectorEntry) error {
	payload, err := json.Marshal(item.Payload)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO vector_entries (corpus, id, content, embedding, payload, ctime)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (corpus, id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			payload = EXCLUDED.payload,
			ctime = EXCLUDED.ctime
	`
	_, err = r.db.ExecContext(ctx, query,
		item.Corpus,
		item.ID,
		item.Content,
		pgvector.NewVector(item.Embedding),
		payload,
		item.Ctime,
	)
	return err
}

// Nearest returns at most k entries of corpus ordered by ascending cosine distance.
func (r *VectorRepo) Nearest(ctx context.Context, corpus string, vec []float32, k int) ([]VectorMatch, error) {
	if k <= 0 {
		return nil, nil
	}
	const query = `
		SELECT id, content, payload, embedding <=> $2 AS distance
		FROM vector_entries
		WHERE corpus = $1
		ORDER BY embedding <=> $2 ASC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, corpus, pgvector.NewVector(vec), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []VectorMatch
	for rows.Next() {
		var item VectorMatch
		var payload []byte
		if err := rows.Scan(&item.ID, &item.Content, &payload, &item.Distance); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &item.Payload); err != nil {
				return nil, fmt.Errorf("decode payload of %s: %w", item.ID, err)
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *VectorRepo) DeleteByID(ctx context.Context, corpus, id string) error {
	sqlStr, args, err := builder.BuildDelete(vectorTable, map[string]interface{}{"corpus": corpus, "id": id})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *VectorRepo) DeleteAll(ctx context.Context, corpus string) (int64, error) {
	return r.deleteWhere(ctx, map[string]interface{}{"corpus": corpus})
}

func (r *VectorRepo) DeleteBefore(ctx context.Context, corpus string, cutoff int64) (int64, error) {
	return r.deleteWhere(ctx, map[string]interface{}{"corpus": corpus, "ctime <": cutoff})
}

func (r *VectorRepo) deleteWhere(ctx context.Context, where map[string]interface{}) (int64, error) {
	sqlStr, args, err := builder.BuildDelete(vectorTable, where)
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListIDs returns the ids of corpus, oldest first.
func (r *VectorRepo) ListIDs(ctx context.Context, corpus string) ([]string, error) {
	sqlStr, args, err := builder.BuildSelect(vectorTable, map[string]interface{}{
		"corpus":   corpus,
		"_orderby": "ctime asc, id asc",
	}, []string{"id"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var ids []string
	if err := sqlx.NewDb(r.db, "postgres").SelectContext(ctx, &ids, sqlStr, args...); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *VectorRepo) Count(ctx context.Context, corpus string) (int64, error) {
	sqlStr, args := dbutil.Finalize("SELECT COUNT(*) FROM vector_entries WHERE corpus = ?", []interface{}{corpus})
	var n int64
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

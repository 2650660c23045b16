package semantic

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/WessleyAI/resume-portal/engine/domain"
)

// pgDB is the subset of *pgxpool.Pool used by PGStore.
type pgDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var tableNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PGStore keeps resume vectors in a Postgres table with a pgvector column.
type PGStore struct {
	db    pgDB
	pool  *pgxpool.Pool
	table string
}

var _ Store = (*PGStore)(nil)

// NewPGStore connects to Postgres at dsn and stores resumes in table.
func NewPGStore(ctx context.Context, dsn, table string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("semantic: connect postgres: %w", err)
	}
	s, err := NewPGStoreWithDB(pool, table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.pool = pool
	return s, nil
}

// NewPGStoreWithDB builds a store over an existing connection. An empty
// table means DefaultCollection.
func NewPGStoreWithDB(db pgDB, table string) (*PGStore, error) {
	if table == "" {
		table = DefaultCollection
	}
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("semantic: invalid table name %q", table)
	}
	return &PGStore{db: db, table: table}, nil
}

// Close releases the pool, if the store owns one.
func (s *PGStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// EnsureCollection creates the vector extension and the resumes table.
func (s *PGStore) EnsureCollection(ctx context.Context, dims int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id        text PRIMARY KEY,
	name      text NOT NULL DEFAULT '',
	email     text NOT NULL DEFAULT '',
	linkedin  text NOT NULL DEFAULT '',
	text      text NOT NULL DEFAULT '',
	embedding vector(%d) NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`, s.table, dims),
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("semantic: ensure table %s: %w", s.table, err)
		}
	}
	return nil
}

func (s *PGStore) Upsert(ctx context.Context, id string, vector []float32, meta domain.ResumeMetadata) error {
	q := fmt.Sprintf(`INSERT INTO %s (id, name, email, linkedin, text, embedding)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name, email = EXCLUDED.email, linkedin = EXCLUDED.linkedin,
	text = EXCLUDED.text, embedding = EXCLUDED.embedding, updated_at = now()`, s.table)
	_, err := s.db.Exec(ctx, q, id, meta.Name, meta.Email, meta.LinkedIn, meta.Text, pgvector.NewVector(vector))
	if err != nil {
		return fmt.Errorf("semantic: upsert %s: %w", id, err)
	}
	return nil
}

// Query ranks rows by cosine distance; the reported score is 1 - distance.
func (s *PGStore) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	q := fmt.Sprintf(`SELECT id, name, email, linkedin, text, 1 - (embedding <=> $1) AS score
FROM %s ORDER BY embedding <=> $1 LIMIT $2`, s.table)
	rows, err := s.db.Query(ctx, q, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("semantic: query: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Meta.Name, &m.Meta.Email, &m.Meta.LinkedIn, &m.Meta.Text, &m.Score); err != nil {
			return nil, fmt.Errorf("semantic: scan: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("semantic: query: %w", err)
	}
	return matches, nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table), id); err != nil {
		return fmt.Errorf("semantic: delete %s: %w", id, err)
	}
	return nil
}

//go:build integration

package semantic

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WessleyAI/resume-portal/engine/domain"
)

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.EnsureCollection(ctx, 4))
	require.NoError(t, s.EnsureCollection(ctx, 4), "idempotent")

	require.NoError(t, s.Upsert(ctx, "go-dev", []float32{1, 0, 0, 0}, domain.ResumeMetadata{Name: "Gopher", Text: "Skills: Go"}))
	require.NoError(t, s.Upsert(ctx, "designer", []float32{0, 1, 0, 0}, domain.ResumeMetadata{Name: "Figma Fan"}))

	got, err := s.Query(ctx, []float32{0.9, 0.1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "go-dev", got[0].ID)
	assert.Equal(t, "Gopher", got[0].Meta.Name)
	assert.Greater(t, got[0].Score, got[1].Score)

	require.NoError(t, s.Delete(ctx, "go-dev"))
	got, err = s.Query(ctx, []float32{1, 0, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "designer", got[0].ID)
}

func TestQdrantStore(t *testing.T) {
	addr := os.Getenv("QDRANT_URL")
	if addr == "" {
		addr = "localhost:6334"
	}
	vs, err := New(addr, "test_resumes")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = vs.DeleteCollection(context.Background())
		_ = vs.Close()
	})
	exerciseStore(t, vs)
}

func TestPGStore(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	s, err := NewPGStore(context.Background(), dsn, "test_resumes")
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = s.db.Exec(context.Background(), "DROP TABLE IF EXISTS test_resumes")
		_ = s.Close()
	})
	exerciseStore(t, s)
}

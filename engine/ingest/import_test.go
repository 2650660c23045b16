package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WessleyAI/resume-portal/engine/domain"
	"github.com/WessleyAI/resume-portal/engine/portal"
)

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(`{"id":"x2","name":"Bo","email":"bo@example.com","text":"t"}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{"name":"Ada","email":"ada@example.com","text":"t"}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	apps, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, "a", apps[0].ID)
	assert.Equal(t, "x2", apps[1].ID)
}

func TestLoadDir_BadJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{`), 0o600))
	_, err := LoadDir(dir)
	assert.Error(t, err)
}

type selectiveSubmitter struct {
	mu   sync.Mutex
	seen []string
}

func (s *selectiveSubmitter) Submit(_ context.Context, app domain.Application) (portal.Receipt, error) {
	s.mu.Lock()
	s.seen = append(s.seen, app.ID)
	s.mu.Unlock()
	if app.ID == "bad" {
		return portal.Receipt{}, errors.New("rejected")
	}
	return portal.Receipt{ID: app.ID}, nil
}

func TestImportAll(t *testing.T) {
	s := &selectiveSubmitter{}
	apps := []domain.Application{{ID: "a"}, {ID: "bad"}, {ID: "c"}}

	res := ImportAll(context.Background(), s, apps, 2)
	require.Len(t, res, 3)
	assert.Equal(t, "a", res[0].ID)
	assert.NoError(t, res[0].Err)
	assert.Error(t, res[1].Err)
	assert.NoError(t, res[2].Err)
	assert.Len(t, s.seen, 3)
}

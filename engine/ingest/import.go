package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/WessleyAI/resume-portal/engine/domain"
	"github.com/WessleyAI/resume-portal/pkg/fn"
)

// LoadDir reads every *.json file in dir as one domain.Application, in
// name order. An application without an id takes the file's base name.
func LoadDir(dir string) ([]domain.Application, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("ingest: list %s: %w", dir, err)
	}
	sort.Strings(paths)

	apps := make([]domain.Application, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("ingest: read %s: %w", p, err)
		}
		var app domain.Application
		if err := json.Unmarshal(data, &app); err != nil {
			return nil, fmt.Errorf("ingest: parse %s: %w", p, err)
		}
		if app.ID == "" {
			app.ID = strings.TrimSuffix(filepath.Base(p), ".json")
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// ImportResult is the outcome of importing one application.
type ImportResult struct {
	ID  string
	Err error
}

// ImportAll submits apps with at most workers concurrent submissions.
// Results keep the order of apps.
func ImportAll(ctx context.Context, s Submitter, apps []domain.Application, workers int) []ImportResult {
	return fn.ParMap(apps, workers, func(app domain.Application) ImportResult {
		_, err := s.Submit(ctx, app)
		return ImportResult{ID: app.ID, Err: err}
	})
}

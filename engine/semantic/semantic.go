// Package semantic stores resume vectors and answers similarity queries.
// VectorStore is backed by Qdrant, PGStore by Postgres with pgvector.
package semantic

import (
	"context"

	"github.com/google/uuid"

	"github.com/WessleyAI/resume-portal/engine/domain"
)

// Match is one ranked hit of a similarity query. Score is the cosine
// similarity, higher is closer.
type Match struct {
	ID    string                `json:"id"`
	Score float64               `json:"score"`
	Meta  domain.ResumeMetadata `json:"metadata"`
}

// Store is a similarity-search backend keyed by applicant id.
type Store interface {
	EnsureCollection(ctx context.Context, dims int) error
	// Upsert replaces any vector previously stored under id.
	Upsert(ctx context.Context, id string, vector []float32, meta domain.ResumeMetadata) error
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// pointNamespace scopes the UUIDv5 point ids derived from applicant ids.
var pointNamespace = uuid.MustParse("6f1c1f0e-8a53-4d58-9a3e-4b1f3c2f7a10")

// PointID maps an applicant id to the stable UUID used as Qdrant point id.
func PointID(applicantID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(applicantID)).String()
}

// Package graph keeps an optional Neo4j graph of applicants and the skills
// extracted from their resumes: (:Applicant)-[:HAS_SKILL]->(:Skill).
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/WessleyAI/resume-portal/pkg/repo"
)

// DefaultTopSkills is the TopSkills limit used for non-positive limits.
const DefaultTopSkills = 20

// GraphStore provides the applicant/skill graph operations.
type GraphStore struct {
	sessions   repo.SessionFunc
	applicants *repo.Neo4jRepo[Applicant, string]
}

// New creates a GraphStore on a Neo4j driver.
func New(driver neo4j.DriverWithContext) *GraphStore {
	return NewWithSessions(repo.DriverSessions(driver))
}

// NewWithSessions creates a GraphStore over an arbitrary session source.
func NewWithSessions(sessions repo.SessionFunc) *GraphStore {
	return &GraphStore{
		sessions:   sessions,
		applicants: repo.NewNeo4jRepo[Applicant, string](sessions, "Applicant", applicantFromRecord),
	}
}

func applicantFromRecord(rec *neo4j.Record) (Applicant, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return Applicant{}, err
	}
	return applicantFromProps(node.Props), nil
}

// EnsureSchema creates the uniqueness constraints the merges rely on.
func (g *GraphStore) EnsureSchema(ctx context.Context) error {
	sess := g.sessions(ctx)
	defer sess.Close(ctx)

	for _, cypher := range []string{
		`CREATE CONSTRAINT applicant_id IF NOT EXISTS FOR (a:Applicant) REQUIRE a.id IS UNIQUE`,
		`CREATE CONSTRAINT skill_name IF NOT EXISTS FOR (s:Skill) REQUIRE s.name IS UNIQUE`,
	} {
		if _, err := sess.Run(ctx, cypher, nil); err != nil {
			return fmt.Errorf("graph: ensure schema: %w", err)
		}
	}
	return nil
}

const saveApplicantCypher = `MERGE (a:Applicant {id: $id})
SET a.name = $name, a.email = $email, a.linkedin = $linkedin, a.updated_at = datetime()
WITH a
OPTIONAL MATCH (a)-[old:HAS_SKILL]->(:Skill)
DELETE old
WITH DISTINCT a
UNWIND $skills AS skill
MERGE (s:Skill {name: skill})
MERGE (a)-[:HAS_SKILL]->(s)`

// SaveApplicant creates or updates the applicant and replaces its skill
// edges. Skills are expected to be normalized (see NormalizeSkills).
func (g *GraphStore) SaveApplicant(ctx context.Context, a Applicant, skills []string) error {
	sess := g.sessions(ctx)
	defer sess.Close(ctx)

	if skills == nil {
		skills = []string{}
	}
	_, err := sess.Run(ctx, saveApplicantCypher, map[string]any{
		"id":       a.ID,
		"name":     a.Name,
		"email":    a.Email,
		"linkedin": a.LinkedIn,
		"skills":   skills,
	})
	if err != nil {
		return fmt.Errorf("graph: save applicant %s: %w", a.ID, err)
	}
	return nil
}

// GetApplicant returns an applicant by id. Missing ids wrap repo.ErrNotFound.
func (g *GraphStore) GetApplicant(ctx context.Context, id string) (Applicant, error) {
	return g.applicants.Get(ctx, id)
}

// ListApplicants pages through applicants ordered by id.
func (g *GraphStore) ListApplicants(ctx context.Context, opts repo.ListOpts) ([]Applicant, error) {
	return g.applicants.List(ctx, opts)
}

// DeleteApplicant removes the applicant and its skill edges. Skills left
// without applicants are removed as well.
func (g *GraphStore) DeleteApplicant(ctx context.Context, id string) error {
	if err := g.applicants.Delete(ctx, id); err != nil {
		return fmt.Errorf("graph: %w", err)
	}
	sess := g.sessions(ctx)
	defer sess.Close(ctx)
	if _, err := sess.Run(ctx, `MATCH (s:Skill) WHERE NOT (s)<-[:HAS_SKILL]-() DELETE s`, nil); err != nil {
		return fmt.Errorf("graph: prune skills: %w", err)
	}
	return nil
}

// ApplicantsWithSkill returns the applicants declaring skill, ordered by id.
func (g *GraphStore) ApplicantsWithSkill(ctx context.Context, skill string) ([]Applicant, error) {
	norm := NormalizeSkills([]string{skill})
	if len(norm) == 0 {
		return nil, nil
	}
	sess := g.sessions(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx,
		`MATCH (n:Applicant)-[:HAS_SKILL]->(:Skill {name: $skill}) RETURN n ORDER BY n.id`,
		map[string]any{"skill": norm[0]})
	if err != nil {
		return nil, fmt.Errorf("graph: applicants with %s: %w", skill, err)
	}

	var out []Applicant
	for res.Next(ctx) {
		a, err := applicantFromRecord(res.Record())
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, res.Err()
}

// TopSkills returns the most common skills, most frequent first.
func (g *GraphStore) TopSkills(ctx context.Context, limit int) ([]SkillCount, error) {
	if limit <= 0 {
		limit = DefaultTopSkills
	}
	sess := g.sessions(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx,
		`MATCH (:Applicant)-[:HAS_SKILL]->(s:Skill)
RETURN s.name AS skill, count(*) AS applicants
ORDER BY applicants DESC, skill ASC LIMIT $limit`,
		map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("graph: top skills: %w", err)
	}

	var out []SkillCount
	for res.Next(ctx) {
		rec := res.Record()
		skill, _, err := neo4j.GetRecordValue[string](rec, "skill")
		if err != nil {
			return nil, err
		}
		n, _, err := neo4j.GetRecordValue[int64](rec, "applicants")
		if err != nil {
			return nil, err
		}
		out = append(out, SkillCount{Skill: skill, Applicants: n})
	}
	return out, res.Err()
}

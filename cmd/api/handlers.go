package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/WessleyAI/resume-portal/engine/domain"
	"github.com/WessleyAI/resume-portal/engine/graph"
	"github.com/WessleyAI/resume-portal/engine/portal"
	"github.com/WessleyAI/resume-portal/engine/resume"
	"github.com/WessleyAI/resume-portal/engine/summary"
)

// maxUploadBytes bounds the multipart form kept in memory for a PDF upload.
const maxUploadBytes = 10 << 20

// Response messages shown by the portal front end.
const (
	msgStored          = "Resume stored successfully"
	msgWithdrawn       = "Resume deleted successfully"
	msgMissingFields   = "Missing required fields"
	msgQueryRequired   = "Query text is required"
	msgNoFile          = "No file uploaded"
	msgTextRequired    = "Resume text is required"
	msgSummaryFailed   = "Failed to generate summary"
	msgSummaryDisabled = "Summaries are not configured"
	msgGraphDisabled   = "Skill graph is not configured"
	msgInvalidBody     = "invalid request body"
	msgInternal        = "internal server error"
)

func registerRoutes(mux *http.ServeMux, svc *portal.Service, model string, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	mux.HandleFunc("GET /api/health", handleHealth(model))
	mux.HandleFunc("POST /api/store", handleStore(svc, logger))
	mux.HandleFunc("POST /api/search", handleSearch(svc, logger))
	mux.HandleFunc("POST /api/parseResume", handleParseResume(svc, logger))
	mux.HandleFunc("GET /api/parseResume", handleParseResumeUsage)
	mux.HandleFunc("POST /api/summarize", handleSummarize(svc, logger))
	mux.HandleFunc("DELETE /api/applications/{id}", handleWithdraw(svc, logger))
	mux.HandleFunc("GET /api/skills", handleTopSkills(svc, logger))
	mux.HandleFunc("GET /api/skills/{skill}", handleSkillApplicants(svc, logger))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- Handlers ---

func handleHealth(model string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "embedding_model": model})
	}
}

// StoreRequest is the JSON body for POST /api/store. Text and ID may be
// any JSON value; non-strings are stored in their JSON encoding.
type StoreRequest struct {
	ID       json.RawMessage `json:"id"`
	Text     json.RawMessage `json:"text"`
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	LinkedIn string          `json:"linkedin,omitempty"`
}

// rawString renders a JSON value as text: strings are unquoted, null and
// absent values are empty and everything else keeps its compact encoding.
func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func handleStore(svc *portal.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}
		app := domain.Application{
			ID:       rawString(req.ID),
			Text:     rawString(req.Text),
			Name:     req.Name,
			Email:    req.Email,
			LinkedIn: req.LinkedIn,
		}

		receipt, err := svc.Submit(r.Context(), app)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrMissingField):
				writeError(w, http.StatusBadRequest, msgMissingFields)
			case domain.IsValidation(err):
				writeError(w, http.StatusBadRequest, err.Error())
			default:
				logger.Error("store failed", "id", app.ID, "err", err)
				writeError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": msgStored, "id": receipt.ID, "skills": receipt.Skills})
	}
}

// SearchRequest is the JSON body for POST /api/search.
type SearchRequest struct {
	Query string `json:"query"`
}

// SearchResponse is the JSON response for POST /api/search.
type SearchResponse struct {
	Results []domain.Candidate `json:"results"`
}

func handleSearch(svc *portal.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			writeError(w, http.StatusBadRequest, msgQueryRequired)
			return
		}

		results, err := svc.Search(r.Context(), req.Query)
		if err != nil {
			logger.Error("search failed", "err", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, SearchResponse{Results: results})
	}
}

// ParseResumeResponse is the JSON response for POST /api/parseResume.
type ParseResumeResponse struct {
	Sections resume.Sections `json:"extractedSections"`
	Skills   []string        `json:"skills"`
}

func handleParseResume(svc *portal.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			logger.Error("parse upload failed", "err", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		file, _, err := r.FormFile("resume")
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
				writeError(w, http.StatusBadRequest, msgNoFile)
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		parsed, err := svc.ParseResume(r.Context(), data)
		if err != nil {
			logger.Error("resume parse failed", "err", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, ParseResumeResponse{Sections: parsed.Sections, Skills: parsed.Skills})
	}
}

func handleParseResumeUsage(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Resume Parser API",
		"usage":   "Send a POST request with a PDF file to extract text and keywords.",
	})
}

// SummarizeRequest is the JSON body for POST /api/summarize.
type SummarizeRequest struct {
	Text string `json:"text"`
}

func handleSummarize(svc *portal.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SummarizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			writeError(w, http.StatusBadRequest, msgTextRequired)
			return
		}

		out, err := svc.Summarize(r.Context(), req.Text)
		switch {
		case errors.Is(err, summary.ErrEmptyText):
			writeError(w, http.StatusBadRequest, msgTextRequired)
		case errors.Is(err, portal.ErrSummaryDisabled):
			writeError(w, http.StatusServiceUnavailable, msgSummaryDisabled)
		case err != nil:
			logger.Error("summarize failed", "err", err)
			writeError(w, http.StatusInternalServerError, msgSummaryFailed)
		default:
			writeJSON(w, http.StatusOK, map[string]string{"summary": out})
		}
	}
}

func handleWithdraw(svc *portal.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := svc.Withdraw(r.Context(), id); err != nil {
			if domain.IsValidation(err) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			logger.Error("withdraw failed", "id", id, "err", err)
			writeError(w, http.StatusInternalServerError, msgInternal)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": msgWithdrawn, "id": id})
	}
}

// TopSkillsResponse is the JSON response for GET /api/skills.
type TopSkillsResponse struct {
	Skills []graph.SkillCount `json:"skills"`
}

func handleTopSkills(svc *portal.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := graph.DefaultTopSkills
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}
		skills, err := svc.TopSkills(r.Context(), limit)
		if err != nil {
			graphError(w, logger, err)
			return
		}
		if skills == nil {
			skills = []graph.SkillCount{}
		}
		writeJSON(w, http.StatusOK, TopSkillsResponse{Skills: skills})
	}
}

// SkillApplicantsResponse is the JSON response for GET /api/skills/{skill}.
type SkillApplicantsResponse struct {
	Skill      string            `json:"skill"`
	Applicants []graph.Applicant `json:"applicants"`
}

func handleSkillApplicants(svc *portal.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		skill := r.PathValue("skill")
		apps, err := svc.ApplicantsWithSkill(r.Context(), skill)
		if err != nil {
			graphError(w, logger, err)
			return
		}
		if apps == nil {
			apps = []graph.Applicant{}
		}
		writeJSON(w, http.StatusOK, SkillApplicantsResponse{Skill: skill, Applicants: apps})
	}
}

func graphError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if errors.Is(err, portal.ErrGraphDisabled) {
		writeError(w, http.StatusServiceUnavailable, msgGraphDisabled)
		return
	}
	logger.Error("graph query failed", "err", err)
	writeError(w, http.StatusInternalServerError, msgInternal)
}

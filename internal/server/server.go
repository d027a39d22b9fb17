// Package server exposes the ingest and job-tracking HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/amishk599/jobsieve/internal/model"
	"github.com/amishk599/jobsieve/internal/runner"
)

const (
	maxIngestBodySize = 10 << 20 // 10MB
	defaultListLimit  = 50
)

// Ingester accepts a batch of collector postings.
type Ingester interface {
	Ingest(ctx context.Context, postings []model.RawPosting) (runner.IngestReport, error)
}

// Deps are the collaborators the handlers need.
type Deps struct {
	Store    model.JobStore
	Ingester Ingester
	Token    string
	Logger   *slog.Logger
}

type postingRequest struct {
	Title          string `json:"title" validate:"required"`
	Company        string `json:"company" validate:"required"`
	Location       string `json:"location"`
	Description    string `json:"description"`
	URL            string `json:"url" validate:"omitempty,url"`
	Source         string `json:"source" validate:"required,oneof=linkedin seek jora indeed other"`
	SourceSearchID string `json:"source_search_id"`
	Region         string `json:"region"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note"`
}

type jobResponse struct {
	Hash      string        `json:"job_hash"`
	Title     string        `json:"title"`
	Company   string        `json:"company"`
	Location  string        `json:"location,omitempty"`
	URL       string        `json:"url,omitempty"`
	Source    string        `json:"source"`
	Status    string        `json:"status"`
	Active    bool          `json:"active"`
	FirstSeen time.Time     `json:"first_seen"`
	LastSeen  time.Time     `json:"last_seen"`
	Score     *scoreSummary `json:"score,omitempty"`
}

type scoreSummary struct {
	Value          int               `json:"score"`
	Recommendation string            `json:"recommendation"`
	HardGateFailed string            `json:"hard_gate_failed,omitempty"`
	Components     []model.Component `json:"components,omitempty"`
	RiskProfile    model.RiskProfile `json:"risk_profile"`
	Explanation    string            `json:"explanation,omitempty"`
	ModelUsed      string            `json:"model_used"`
	ScoredAt       time.Time         `json:"scored_at"`
}

type runResponse struct {
	ID         string              `json:"run_id"`
	StartedAt  time.Time           `json:"started_at"`
	DurationMS int64               `json:"duration_ms"`
	Metrics    model.FilterMetrics `json:"metrics"`
	Accepted   int                 `json:"accepted"`
	Rejected   int                 `json:"rejected"`
	Scored     int                 `json:"scored"`
	HardGated  int                 `json:"hard_gated"`
	Failed     int                 `json:"failed"`
	Rescored   int                 `json:"rescored"`
	Upgraded   int                 `json:"upgraded"`
	Error      string              `json:"error,omitempty"`
}

type statusChangeResponse struct {
	From string    `json:"from,omitempty"`
	To   string    `json:"to"`
	At   time.Time `json:"at"`
	Note string    `json:"note,omitempty"`
}

// NewHandler returns the API router. /healthz is served without auth.
func NewHandler(deps Deps) http.Handler {
	v := validator.New()

	r := chi.NewRouter()
	r.Get("/healthz", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/postings", handleIngest(deps, v))
		r.Get("/jobs", handleListJobs(deps))
		r.Get("/jobs/{hash}", handleGetJob(deps))
		r.Post("/jobs/{hash}/status", handleTransition(deps, v))
		r.Get("/jobs/{hash}/history", handleHistory(deps))
		r.Get("/runs", handleListRuns(deps))
	})
	return r
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleIngest(deps Deps, v *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxIngestBodySize)
		defer r.Body.Close()

		var reqs []postingRequest
		if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(reqs) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "at least one posting is required")
			return
		}

		postings := make([]model.RawPosting, 0, len(reqs))
		for i, p := range reqs {
			p.Source = strings.ToLower(strings.TrimSpace(p.Source))
			if err := v.Struct(p); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "posting %d: %v", i, err)
				return
			}
			postings = append(postings, model.RawPosting(p))
		}

		report, err := deps.Ingester.Ingest(r.Context(), postings)
		if err != nil {
			deps.Logger.Error("ingest failed", "error", err)
			httpError(w, http.StatusInternalServerError, "api_error", "ingest failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func handleGetJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := chi.URLParam(r, "hash")
		job, err := deps.Store.FindByHash(r.Context(), hash)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "looking up job: %v", err)
			return
		}
		if job == nil {
			httpError(w, http.StatusNotFound, "not_found_error", "job %s not found", hash)
			return
		}

		score, err := deps.Store.GetScore(r.Context(), job.ID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "looking up score: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, toJobResponse(*job, score))
	}
}

// handleListJobs serves GET /jobs?min_score=&status=&limit=, best score first.
func handleListJobs(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			q   model.JobQuery
			err error
		)
		if q.MinScore, err = intParam(r, "min_score", 0); err != nil || q.MinScore < 0 || q.MinScore > 100 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "min_score must be an integer between 0 and 100")
			return
		}
		if q.Limit, err = intParam(r, "limit", defaultListLimit); err != nil || q.Limit < 1 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "limit must be a positive integer")
			return
		}
		if raw := r.URL.Query().Get("status"); raw != "" {
			if q.Status, err = model.ParseStatus(raw); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
		}

		jobs, err := deps.Store.ListJobs(r.Context(), q)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing jobs: %v", err)
			return
		}
		resp := make([]jobResponse, 0, len(jobs))
		for _, j := range jobs {
			resp = append(resp, toJobResponse(j.Job, j.Score))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleListRuns serves GET /runs?limit=, newest first.
func handleListRuns(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := intParam(r, "limit", defaultListLimit)
		if err != nil || limit < 1 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "limit must be a positive integer")
			return
		}
		runs, err := deps.Store.ListRuns(r.Context(), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing runs: %v", err)
			return
		}
		resp := make([]runResponse, 0, len(runs))
		for _, run := range runs {
			resp = append(resp, runResponse{
				ID:         run.ID,
				StartedAt:  run.StartedAt,
				DurationMS: run.Duration.Milliseconds(),
				Metrics:    run.Metrics,
				Accepted:   run.Accepted,
				Rejected:   run.Rejected,
				Scored:     run.Scored,
				HardGated:  run.HardGated,
				Failed:     run.Failed,
				Rescored:   run.Rescored,
				Upgraded:   run.Upgraded,
				Error:      run.Error,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleTransition(deps Deps, v *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
		defer r.Body.Close()

		var req statusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if err := v.Struct(req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		to, err := model.ParseStatus(req.Status)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		change, err := deps.Store.TransitionStatus(r.Context(), chi.URLParam(r, "hash"), to, req.Note)
		switch {
		case errors.Is(err, model.ErrNotFound):
			httpError(w, http.StatusNotFound, "not_found_error", "%v", err)
			return
		case errors.Is(err, model.ErrInvalidTransition):
			httpError(w, http.StatusConflict, "conflict_error", "%v", err)
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "updating status: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, toChangeResponse(change))
	}
}

func handleHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		history, err := deps.Store.StatusHistory(r.Context(), chi.URLParam(r, "hash"))
		if errors.Is(err, model.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading history: %v", err)
			return
		}

		resp := make([]statusChangeResponse, 0, len(history))
		for _, c := range history {
			resp = append(resp, toChangeResponse(c))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func toJobResponse(job model.JobPosting, score *model.Score) jobResponse {
	resp := jobResponse{
		Hash:      job.Hash,
		Title:     job.Title,
		Company:   job.Company,
		Location:  job.Location,
		URL:       job.URL,
		Source:    string(job.Source),
		Status:    string(job.Status),
		Active:    job.Active,
		FirstSeen: job.FirstSeen,
		LastSeen:  job.LastSeen,
	}
	if score != nil {
		resp.Score = &scoreSummary{
			Value:          score.Value,
			Recommendation: string(score.Recommendation),
			HardGateFailed: score.HardGateFailed,
			Components:     score.Components,
			RiskProfile:    score.RiskProfile,
			Explanation:    score.Explanation,
			ModelUsed:      score.ModelUsed,
			ScoredAt:       score.ScoredAt,
		}
	}
	return resp
}

// intParam reads an integer query parameter, returning def when it is absent.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func toChangeResponse(c model.StatusChange) statusChangeResponse {
	return statusChangeResponse{From: string(c.From), To: string(c.To), At: c.At, Note: c.Note}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

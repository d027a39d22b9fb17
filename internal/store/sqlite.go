package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/amishk599/jobsieve/internal/model"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is fixed width and always UTC so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// SQLiteStore persists jobs, scores, status history, profile changes and run
// records in a single SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ model.JobStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at dbPath and applies pending
// migrations. Pass ":memory:" for a throwaway database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	// One connection avoids "database is locked" between pool workers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// migrate applies embedded migrations that are not yet recorded in schema_version.
func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var applied int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&applied); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// appliedMigrations returns applied migration versions in ascending order.
func (s *SQLiteStore) appliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Jobs ---

const jobColumns = `id, job_hash, title, company, normalized_company, location, description, url,
	source, source_search_id, region, first_seen, last_seen, is_active, status`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (model.JobPosting, error) {
	var (
		j                   model.JobPosting
		source, status      string
		firstSeen, lastSeen string
		active              int
	)
	err := r.Scan(&j.ID, &j.Hash, &j.Title, &j.Company, &j.NormalizedCompany, &j.Location,
		&j.Description, &j.URL, &source, &j.SourceSearchID, &j.Region, &firstSeen, &lastSeen,
		&active, &status)
	if err != nil {
		return model.JobPosting{}, err
	}
	j.Source = model.Source(source)
	j.Status = model.Status(status)
	j.Active = active == 1
	if j.FirstSeen, err = parseTime(firstSeen); err != nil {
		return model.JobPosting{}, err
	}
	if j.LastSeen, err = parseTime(lastSeen); err != nil {
		return model.JobPosting{}, err
	}
	return j, nil
}

// FindByHash returns the job with the given hash, or nil when none is stored.
func (s *SQLiteStore) FindByHash(ctx context.Context, hash string) (*model.JobPosting, error) {
	j, err := scanJob(s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE job_hash = ?", hash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &model.PersistenceError{Op: "find", JobHash: hash, Err: err}
	}
	return &j, nil
}

// Insert stores a new job and records its initial status. A job whose hash is
// already stored is left untouched and model.ErrAlreadyExists is returned.
func (s *SQLiteStore) Insert(ctx context.Context, job model.JobPosting) (int64, error) {
	now := s.now()
	if job.FirstSeen.IsZero() {
		job.FirstSeen = now
	}
	if job.LastSeen.IsZero() {
		job.LastSeen = job.FirstSeen
	}
	if job.Status == "" {
		job.Status = model.StatusNew
	}
	if job.Source == "" {
		job.Source = model.SourceOther
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &model.PersistenceError{Op: "insert", JobHash: job.Hash, Err: err}
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO jobs (job_hash, title, company, normalized_company, location, description, url,
			source, source_search_id, region, first_seen, last_seen, is_active, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(job_hash) DO NOTHING`,
		job.Hash, job.Title, job.Company, job.NormalizedCompany, job.Location, job.Description,
		job.URL, string(job.Source), job.SourceSearchID, job.Region,
		formatTime(job.FirstSeen), formatTime(job.LastSeen), string(job.Status),
	)
	if err != nil {
		return 0, &model.PersistenceError{Op: "insert", JobHash: job.Hash, Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, model.ErrAlreadyExists
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &model.PersistenceError{Op: "insert", JobHash: job.Hash, Err: err}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO status_history (job_id, from_status, to_status, changed_at, note) VALUES (?, '', ?, ?, ?)",
		id, string(job.Status), formatTime(now), "ingested",
	); err != nil {
		return 0, &model.PersistenceError{Op: "insert", JobHash: job.Hash, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return 0, &model.PersistenceError{Op: "insert", JobHash: job.Hash, Err: err}
	}
	return id, nil
}

// TouchLastSeen marks a re-ingested job as seen now and active again.
func (s *SQLiteStore) TouchLastSeen(ctx context.Context, hash string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET last_seen = ?, is_active = 1 WHERE job_hash = ?",
		formatTime(s.now()), hash)
	if err != nil {
		return &model.PersistenceError{Op: "touch", JobHash: hash, Err: err}
	}
	return nil
}

// MarkInactive deactivates every job from searchID whose hash is not in
// activeHashes. An empty searchID is a no-op.
func (s *SQLiteStore) MarkInactive(ctx context.Context, searchID string, activeHashes []string) error {
	if searchID == "" {
		return nil
	}
	query := "UPDATE jobs SET is_active = 0 WHERE source_search_id = ? AND is_active = 1"
	args := []any{searchID}
	if len(activeHashes) > 0 {
		query += " AND job_hash NOT IN (" + placeholders(len(activeHashes)) + ")"
		for _, h := range activeHashes {
			args = append(args, h)
		}
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return &model.PersistenceError{Op: "mark inactive", Err: fmt.Errorf("search %s: %w", searchID, err)}
	}
	return nil
}

// RecentJobs returns every job first seen within window, newest first.
func (s *SQLiteStore) RecentJobs(ctx context.Context, window time.Duration) ([]model.RecentJob, error) {
	cutoff := formatTime(s.now().Add(-window))
	rows, err := s.db.QueryContext(ctx,
		"SELECT job_hash, url, title, company, first_seen FROM jobs WHERE first_seen >= ? ORDER BY first_seen DESC",
		cutoff)
	if err != nil {
		return nil, &model.PersistenceError{Op: "recent jobs", Err: err}
	}
	defer rows.Close()

	var jobs []model.RecentJob
	for rows.Next() {
		var (
			j         model.RecentJob
			firstSeen string
		)
		if err := rows.Scan(&j.Hash, &j.URL, &j.Title, &j.Company, &firstSeen); err != nil {
			return nil, &model.PersistenceError{Op: "recent jobs", Err: err}
		}
		if j.FirstSeen, err = parseTime(firstSeen); err != nil {
			return nil, &model.PersistenceError{Op: "recent jobs", JobHash: j.Hash, Err: err}
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// --- Scores ---

// ListUnscored returns active jobs without a score, oldest first. A limit of
// zero or less returns all of them.
func (s *SQLiteStore) ListUnscored(ctx context.Context, limit int) ([]model.JobPosting, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT j.id, j.job_hash, j.title, j.company, j.normalized_company, j.location, j.description,
			j.url, j.source, j.source_search_id, j.region, j.first_seen, j.last_seen, j.is_active, j.status
		FROM jobs j LEFT JOIN scores s ON s.job_id = j.id
		WHERE s.job_id IS NULL AND j.is_active = 1
		ORDER BY j.first_seen ASC, j.id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, &model.PersistenceError{Op: "list unscored", Err: err}
	}
	defer rows.Close()

	var jobs []model.JobPosting
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, &model.PersistenceError{Op: "list unscored", Err: err}
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ListJobs returns jobs with their scores, best score first. Unscored jobs
// sort last and are left out when q.MinScore is positive.
func (s *SQLiteStore) ListJobs(ctx context.Context, q model.JobQuery) ([]model.ScoredJob, error) {
	query := `
		SELECT j.id, j.job_hash, j.title, j.company, j.normalized_company, j.location, j.description,
			j.url, j.source, j.source_search_id, j.region, j.first_seen, j.last_seen, j.is_active, j.status,
			s.score, s.recommendation, s.hard_gate_failed, s.model_used, s.profile_hash, s.scored_at
		FROM jobs j LEFT JOIN scores s ON s.job_id = j.id
		WHERE 1 = 1`
	var args []any
	if q.MinScore > 0 {
		query += " AND s.score >= ?"
		args = append(args, q.MinScore)
	}
	if q.Status != "" {
		query += " AND j.status = ?"
		args = append(args, string(q.Status))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	query += " ORDER BY s.score IS NULL, s.score DESC, j.first_seen DESC, j.id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &model.PersistenceError{Op: "list jobs", Err: err}
	}
	defer rows.Close()

	var jobs []model.ScoredJob
	for rows.Next() {
		var (
			j                              model.JobPosting
			source, status                 string
			firstSeen, lastSeen            string
			active                         int
			score                          sql.NullInt64
			rec, gate, modelUsed, ph, when sql.NullString
		)
		if err := rows.Scan(&j.ID, &j.Hash, &j.Title, &j.Company, &j.NormalizedCompany, &j.Location,
			&j.Description, &j.URL, &source, &j.SourceSearchID, &j.Region, &firstSeen, &lastSeen,
			&active, &status, &score, &rec, &gate, &modelUsed, &ph, &when); err != nil {
			return nil, &model.PersistenceError{Op: "list jobs", Err: err}
		}
		j.Source = model.Source(source)
		j.Status = model.Status(status)
		j.Active = active == 1
		if j.FirstSeen, err = parseTime(firstSeen); err != nil {
			return nil, &model.PersistenceError{Op: "list jobs", Err: err}
		}
		if j.LastSeen, err = parseTime(lastSeen); err != nil {
			return nil, &model.PersistenceError{Op: "list jobs", Err: err}
		}

		sj := model.ScoredJob{Job: j}
		if score.Valid {
			sc := &model.Score{
				JobID:          j.ID,
				Value:          int(score.Int64),
				Recommendation: model.Recommendation(rec.String),
				HardGateFailed: gate.String,
				ModelUsed:      modelUsed.String,
				ProfileHash:    ph.String,
			}
			if sc.ScoredAt, err = parseTime(when.String); err != nil {
				return nil, &model.PersistenceError{Op: "list jobs", Err: err}
			}
			sj.Score = sc
		}
		jobs = append(jobs, sj)
	}
	return jobs, rows.Err()
}

// GetScore returns the score for jobID, or nil when the job is unscored.
func (s *SQLiteStore) GetScore(ctx context.Context, jobID int64) (*model.Score, error) {
	var (
		sc                          model.Score
		rec, components, risk, when string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT job_id, score, recommendation, components, hard_gate_failed, risk_profile,
			explanation, model_used, profile_hash, scored_at
		FROM scores WHERE job_id = ?`, jobID,
	).Scan(&sc.JobID, &sc.Value, &rec, &components, &sc.HardGateFailed, &risk,
		&sc.Explanation, &sc.ModelUsed, &sc.ProfileHash, &when)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &model.PersistenceError{Op: "get score", Err: err}
	}
	sc.Recommendation = model.Recommendation(rec)
	if err := json.Unmarshal([]byte(components), &sc.Components); err != nil {
		return nil, &model.PersistenceError{Op: "get score", Err: fmt.Errorf("decoding components: %w", err)}
	}
	if err := json.Unmarshal([]byte(risk), &sc.RiskProfile); err != nil {
		return nil, &model.PersistenceError{Op: "get score", Err: fmt.Errorf("decoding risk profile: %w", err)}
	}
	if sc.ScoredAt, err = parseTime(when); err != nil {
		return nil, &model.PersistenceError{Op: "get score", Err: err}
	}
	return &sc, nil
}

// InsertScore stores the first score for a job. A second score for the same
// job is a broken invariant: rescoring goes through ReplaceScore.
func (s *SQLiteStore) InsertScore(ctx context.Context, score model.Score) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &model.PersistenceError{Op: "insert score", Err: err}
	}
	defer tx.Rollback()

	if err := s.insertScore(ctx, tx, score); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &model.PersistenceError{Op: "insert score", Err: err}
	}
	return nil
}

// DeleteScore removes the score for jobID. Deleting a missing score is a no-op.
func (s *SQLiteStore) DeleteScore(ctx context.Context, jobID int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM scores WHERE job_id = ?", jobID); err != nil {
		return &model.PersistenceError{Op: "delete score", Err: err}
	}
	return nil
}

// ReplaceScore deletes the existing score and inserts score in one transaction.
func (s *SQLiteStore) ReplaceScore(ctx context.Context, score model.Score) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &model.PersistenceError{Op: "replace score", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM scores WHERE job_id = ?", score.JobID); err != nil {
		return &model.PersistenceError{Op: "replace score", Err: err}
	}
	if err := s.insertScore(ctx, tx, score); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &model.PersistenceError{Op: "replace score", Err: err}
	}
	return nil
}

func (s *SQLiteStore) insertScore(ctx context.Context, tx *sql.Tx, score model.Score) error {
	components, err := json.Marshal(score.Components)
	if err != nil {
		return &model.PersistenceError{Op: "insert score", Err: fmt.Errorf("encoding components: %w", err)}
	}
	if score.Components == nil {
		components = []byte("[]")
	}
	risk, err := json.Marshal(score.RiskProfile)
	if err != nil {
		return &model.PersistenceError{Op: "insert score", Err: fmt.Errorf("encoding risk profile: %w", err)}
	}
	if score.ScoredAt.IsZero() {
		score.ScoredAt = s.now()
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO scores (job_id, score, recommendation, components, hard_gate_failed, risk_profile,
			explanation, model_used, profile_hash, scored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO NOTHING`,
		score.JobID, score.Value, string(score.Recommendation), string(components), score.HardGateFailed,
		string(risk), score.Explanation, score.ModelUsed, score.ProfileHash, formatTime(score.ScoredAt),
	)
	if err != nil {
		return &model.PersistenceError{Op: "insert score", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &model.PersistenceError{
			Op:  "insert score",
			Err: fmt.Errorf("%w: job %d already scored", model.ErrHashInvariant, score.JobID),
		}
	}
	return nil
}

// ListForRescore returns active jobs whose score lies in [MinScore, MaxScore],
// first seen within MaxAge and scored against a profile other than
// ExcludeProfileHash.
func (s *SQLiteStore) ListForRescore(ctx context.Context, q model.RescoreQuery) ([]model.RescoreCandidate, error) {
	cutoff := formatTime(s.now().Add(-q.MaxAge))
	rows, err := s.db.QueryContext(ctx, `
		SELECT j.id, j.job_hash, j.title, j.company, j.normalized_company, j.location, j.description,
			j.url, j.source, j.source_search_id, j.region, j.first_seen, j.last_seen, j.is_active, j.status,
			s.score
		FROM jobs j JOIN scores s ON s.job_id = j.id
		WHERE s.score BETWEEN ? AND ?
			AND j.first_seen >= ?
			AND s.profile_hash != ?
			AND j.is_active = 1
		ORDER BY s.score DESC, j.id ASC`,
		q.MinScore, q.MaxScore, cutoff, q.ExcludeProfileHash)
	if err != nil {
		return nil, &model.PersistenceError{Op: "list for rescore", Err: err}
	}
	defer rows.Close()

	var out []model.RescoreCandidate
	for rows.Next() {
		var (
			c                   model.RescoreCandidate
			source, status      string
			firstSeen, lastSeen string
			active              int
		)
		j := &c.Job
		if err := rows.Scan(&j.ID, &j.Hash, &j.Title, &j.Company, &j.NormalizedCompany, &j.Location,
			&j.Description, &j.URL, &source, &j.SourceSearchID, &j.Region, &firstSeen, &lastSeen,
			&active, &status, &c.OldScore); err != nil {
			return nil, &model.PersistenceError{Op: "list for rescore", Err: err}
		}
		j.Source = model.Source(source)
		j.Status = model.Status(status)
		j.Active = active == 1
		if j.FirstSeen, err = parseTime(firstSeen); err != nil {
			return nil, &model.PersistenceError{Op: "list for rescore", JobHash: j.Hash, Err: err}
		}
		if j.LastSeen, err = parseTime(lastSeen); err != nil {
			return nil, &model.PersistenceError{Op: "list for rescore", JobHash: j.Hash, Err: err}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- Profile changes ---

// LastProfileHash returns the most recently recorded profile hash, or "" when
// none has been recorded.
func (s *SQLiteStore) LastProfileHash(ctx context.Context) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		"SELECT profile_hash FROM profile_changes ORDER BY id DESC LIMIT 1").Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", &model.PersistenceError{Op: "last profile hash", Err: err}
	}
	return hash, nil
}

// RecordProfileHash appends a profile change.
func (s *SQLiteStore) RecordProfileHash(ctx context.Context, hash string, rescored bool) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO profile_changes (profile_hash, changed_at, rescored) VALUES (?, ?, ?)",
		hash, formatTime(s.now()), boolToInt(rescored))
	if err != nil {
		return &model.PersistenceError{Op: "record profile hash", Err: err}
	}
	return nil
}

// --- Status ---

// TransitionStatus moves the job to status to, appending a history row. The
// update and the history row commit together.
func (s *SQLiteStore) TransitionStatus(ctx context.Context, hash string, to model.Status, note string) (model.StatusChange, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.StatusChange{}, &model.PersistenceError{Op: "transition", JobHash: hash, Err: err}
	}
	defer tx.Rollback()

	var (
		id   int64
		from string
	)
	err = tx.QueryRowContext(ctx, "SELECT id, status FROM jobs WHERE job_hash = ?", hash).Scan(&id, &from)
	if errors.Is(err, sql.ErrNoRows) {
		return model.StatusChange{}, fmt.Errorf("job %s: %w", hash, model.ErrNotFound)
	}
	if err != nil {
		return model.StatusChange{}, &model.PersistenceError{Op: "transition", JobHash: hash, Err: err}
	}

	if !model.IsTransitionAllowed(model.Status(from), to) {
		return model.StatusChange{}, fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, from, to)
	}

	change := model.StatusChange{JobID: id, From: model.Status(from), To: to, At: s.now(), Note: note}
	if _, err := tx.ExecContext(ctx, "UPDATE jobs SET status = ? WHERE id = ?", string(to), id); err != nil {
		return model.StatusChange{}, &model.PersistenceError{Op: "transition", JobHash: hash, Err: err}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO status_history (job_id, from_status, to_status, changed_at, note) VALUES (?, ?, ?, ?, ?)",
		id, from, string(to), formatTime(change.At), note,
	); err != nil {
		return model.StatusChange{}, &model.PersistenceError{Op: "transition", JobHash: hash, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return model.StatusChange{}, &model.PersistenceError{Op: "transition", JobHash: hash, Err: err}
	}
	return change, nil
}

// StatusHistory lists the status changes of a job, newest first.
func (s *SQLiteStore) StatusHistory(ctx context.Context, hash string) ([]model.StatusChange, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM jobs WHERE job_hash = ?", hash).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", hash, model.ErrNotFound)
	}
	if err != nil {
		return nil, &model.PersistenceError{Op: "status history", JobHash: hash, Err: err}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT from_status, to_status, changed_at, note FROM status_history
		WHERE job_id = ? ORDER BY changed_at DESC, id DESC`, id)
	if err != nil {
		return nil, &model.PersistenceError{Op: "status history", JobHash: hash, Err: err}
	}
	defer rows.Close()

	var history []model.StatusChange
	for rows.Next() {
		var (
			c        = model.StatusChange{JobID: id}
			from, to string
			at       string
		)
		if err := rows.Scan(&from, &to, &at, &c.Note); err != nil {
			return nil, &model.PersistenceError{Op: "status history", JobHash: hash, Err: err}
		}
		c.From, c.To = model.Status(from), model.Status(to)
		if c.At, err = parseTime(at); err != nil {
			return nil, &model.PersistenceError{Op: "status history", JobHash: hash, Err: err}
		}
		history = append(history, c)
	}
	return history, rows.Err()
}

// --- Runs ---

// RecordRun stores a run summary.
func (s *SQLiteStore) RecordRun(ctx context.Context, run model.RunRecord) error {
	m := run.Metrics
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, duration_ms, cards_seen, tier1_filtered, tier2_skipped,
			tier3_filtered, jobs_scraped, efficiency_percent, accepted, rejected, scored, hard_gated,
			failed, rescored, upgraded, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, formatTime(run.StartedAt), run.Duration.Milliseconds(), m.CardsSeen, m.Tier1Filtered,
		m.Tier2Skipped, m.Tier3Filtered, m.JobsScraped, m.Efficiency(), run.Accepted, run.Rejected,
		run.Scored, run.HardGated, run.Failed, run.Rescored, run.Upgraded, run.Error,
	)
	if err != nil {
		return &model.PersistenceError{Op: "record run", Err: err}
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, duration_ms, cards_seen, tier1_filtered, tier2_skipped, tier3_filtered,
			jobs_scraped, accepted, rejected, scored, hard_gated, failed, rescored, upgraded, error
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, &model.PersistenceError{Op: "list runs", Err: err}
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		var (
			r          model.RunRecord
			started    string
			durationMS int64
		)
		m := &r.Metrics
		if err := rows.Scan(&r.ID, &started, &durationMS, &m.CardsSeen, &m.Tier1Filtered, &m.Tier2Skipped,
			&m.Tier3Filtered, &m.JobsScraped, &r.Accepted, &r.Rejected, &r.Scored, &r.HardGated,
			&r.Failed, &r.Rescored, &r.Upgraded, &r.Error); err != nil {
			return nil, &model.PersistenceError{Op: "list runs", Err: err}
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, &model.PersistenceError{Op: "list runs", Err: err}
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

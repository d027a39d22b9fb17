package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/amishk599/jobsieve/internal/model"
)

// processedDir is where consumed inbox files are moved.
const processedDir = "processed"

// LoadPostings reads a collector output file: a JSON array of postings.
func LoadPostings(path string) ([]model.RawPosting, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading postings: %w", err)
	}
	var postings []model.RawPosting
	if err := json.Unmarshal(data, &postings); err != nil {
		return nil, fmt.Errorf("decoding postings %s: %w", path, err)
	}
	return postings, nil
}

// Inbox is a directory collectors drop JSON files into.
type Inbox struct {
	Dir string
}

// Drain reads every *.json file in the inbox, oldest name first. It returns
// the combined postings and the files they came from so the caller can
// Archive them once the run succeeded. Unreadable files are skipped and
// reported in the returned error slice.
func (in Inbox) Drain() ([]model.RawPosting, []string, []error) {
	matches, err := filepath.Glob(filepath.Join(in.Dir, "*.json"))
	if err != nil {
		return nil, nil, []error{fmt.Errorf("listing inbox: %w", err)}
	}
	sort.Strings(matches)

	var (
		postings []model.RawPosting
		files    []string
		errs     []error
	)
	for _, path := range matches {
		batch, err := LoadPostings(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		postings = append(postings, batch...)
		files = append(files, path)
	}
	return postings, files, errs
}

// Archive moves consumed files into the inbox's processed directory.
func (in Inbox) Archive(files []string) error {
	dest := filepath.Join(in.Dir, processedDir)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), ".json") + ".done.json"
		if err := os.Rename(f, filepath.Join(dest, name)); err != nil {
			return fmt.Errorf("archiving %s: %w", f, err)
		}
	}
	return nil
}

// RunInbox drains the inbox, runs the pipeline over its postings and archives
// the files. Files stay in the inbox when ingest did not get through every
// posting, so a deadline-cut run picks them up again next time.
func (r *Runner) RunInbox(ctx context.Context, in Inbox, profile model.CandidateProfile) (Report, error) {
	postings, files, errs := in.Drain()
	for _, err := range errs {
		r.logger.Warn("skipping inbox file", "error", err)
	}

	report, err := r.Run(ctx, postings, profile)
	if err != nil {
		return report, err
	}
	if !report.Ingest.Complete {
		r.logger.Warn("ingest incomplete, leaving inbox files in place",
			"run_id", report.RunID,
			"files", len(files),
			"ingested", len(report.Ingest.Decisions),
			"received", report.Ingest.Received,
		)
		return report, nil
	}
	return report, in.Archive(files)
}

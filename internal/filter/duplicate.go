package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/amishk599/jobsieve/internal/model"
	"github.com/amishk599/jobsieve/internal/normalize"
)

// DefaultSimilarity is the Jaccard score both title and company must reach.
const DefaultSimilarity = 0.85

type seenJob struct {
	url       string
	title     string // normalize.Text
	company   string // normalize.Text of normalize.Company
	firstSeen time.Time
}

// DuplicateDetector flags postings already stored, either at the same URL or
// as the same role at the same company on another platform. It works on a
// snapshot taken before the run starts and never sees its own inserts.
type DuplicateDetector struct {
	seen      []seenJob
	byURL     map[string]time.Time
	threshold float64
	window    time.Duration
	now       time.Time
}

// NewDuplicateDetector copies snapshot so later store writes cannot change it.
func NewDuplicateDetector(snapshot []model.RecentJob, window time.Duration, threshold float64, now time.Time) *DuplicateDetector {
	d := &DuplicateDetector{
		byURL:     make(map[string]time.Time, len(snapshot)),
		threshold: threshold,
		window:    window,
		now:       now,
	}
	for _, j := range snapshot {
		sj := seenJob{
			url:       strings.TrimSpace(j.URL),
			title:     normalize.Text(j.Title),
			company:   normalize.Text(normalize.Company(j.Company)),
			firstSeen: j.FirstSeen,
		}
		d.seen = append(d.seen, sj)
		if sj.url != "" {
			if prev, ok := d.byURL[sj.url]; !ok || sj.firstSeen.After(prev) {
				d.byURL[sj.url] = sj.firstSeen
			}
		}
	}
	return d
}

// Name implements Stage.
func (d *DuplicateDetector) Name() string { return "dedup" }

// Check implements Stage. A duplicate does not pass.
func (d *DuplicateDetector) Check(p Posting) (bool, string, error) {
	dup, reason := d.IsDuplicate(p.URL, p.Title, p.Company, d.window)
	return !dup, reason, nil
}

// IsDuplicate reports whether the posting matches a stored job first seen
// within window.
func (d *DuplicateDetector) IsDuplicate(url, title, company string, window time.Duration) (bool, string) {
	cutoff := d.now.Add(-window)

	if seenAt, ok := d.byURL[strings.TrimSpace(url)]; ok && !seenAt.Before(cutoff) {
		return true, fmt.Sprintf("exact URL match (first seen %s)", seenAt.Format("2006-01-02"))
	}

	t := normalize.Text(title)
	c := normalize.Text(normalize.Company(company))
	for _, s := range d.seen {
		if s.firstSeen.Before(cutoff) {
			continue
		}
		ts := Similarity(t, s.title)
		if ts < d.threshold {
			continue
		}
		cs := Similarity(c, s.company)
		if cs < d.threshold {
			continue
		}
		return true, fmt.Sprintf("fuzzy match on title (%.2f) and company (%.2f), first seen %s",
			ts, cs, s.firstSeen.Format("2006-01-02"))
	}
	return false, ""
}

// Similarity is the Jaccard index of the whitespace-separated word sets of a
// and b. Equal strings score 1 and an empty side scores 0.
func Similarity(a, b string) float64 {
	if a == b && a != "" {
		return 1
	}
	wa := wordSet(a)
	wb := wordSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	inter := 0
	for w := range wa {
		if wb[w] {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		set[w] = true
	}
	return set
}

package filter

import (
	"fmt"
	"unicode/utf8"

	"github.com/amishk599/jobsieve/internal/config"
)

// QualityFilter rejects descriptions too thin to be worth scoring. It leans
// toward accepting: one strong keyword is enough when the required-keyword
// count falls short.
type QualityFilter struct {
	minLength int
	threshold int
	required  []keyword
	strong    []keyword
}

// NewQualityFilter builds the Tier 3 filter from vocab.
func NewQualityFilter(vocab *config.Vocabulary) *QualityFilter {
	return &QualityFilter{
		minLength: vocab.DescriptionMinLength(),
		threshold: vocab.DescriptionThreshold(),
		required:  newKeywords(vocab.DescriptionKeywords),
		strong:    newKeywords(vocab.StrongKeywords),
	}
}

// Name implements Stage.
func (q *QualityFilter) Name() string { return "quality" }

// Check implements Stage.
func (q *QualityFilter) Check(p Posting) (bool, string, error) {
	ok, reason := q.HasQuality(p.Description)
	return ok, reason, nil
}

// HasQuality reports whether description carries enough signal.
func (q *QualityFilter) HasQuality(description string) (bool, string) {
	if n := utf8.RuneCountInString(description); n < q.minLength {
		return false, fmt.Sprintf("description too short (%d < %d chars)", n, q.minLength)
	}

	found := countMatches(q.required, description)
	if found >= q.threshold {
		return true, ""
	}
	if kw, ok := firstMatch(q.strong, description); ok {
		return true, fmt.Sprintf("strong keyword %q", kw)
	}
	return false, fmt.Sprintf("low quality: %d of %d required keywords", found, q.threshold)
}

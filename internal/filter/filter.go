// Package filter implements the three filtering tiers applied to raw postings
// before they are persisted: title relevance, deduplication and description
// quality.
package filter

import (
	"regexp"
	"sort"
)

// Stage is one tier of the pipeline. Check reports whether the posting may
// continue and, when it may not (or when the decision is notable), why.
type Stage interface {
	Name() string
	Check(p Posting) (pass bool, reason string, err error)
}

// Posting is the subset of a raw posting the tiers look at.
type Posting struct {
	Title       string
	Company     string
	URL         string
	Description string
}

// keyword is a case-insensitive whole-word matcher for one configured term.
// Boundaries are any non letter/digit so terms like "c++" and "node.js" work.
type keyword struct {
	term string
	re   *regexp.Regexp
}

func newKeyword(term string) keyword {
	return keyword{
		term: term,
		re:   regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])` + regexp.QuoteMeta(term) + `(?:$|[^\p{L}\p{N}])`),
	}
}

func newKeywords(terms []string) []keyword {
	out := make([]keyword, 0, len(terms))
	for _, t := range terms {
		if t == "" {
			continue
		}
		out = append(out, newKeyword(t))
	}
	return out
}

// firstMatch returns the first keyword found in text, in configured order.
func firstMatch(kws []keyword, text string) (string, bool) {
	for _, kw := range kws {
		if kw.re.MatchString(text) {
			return kw.term, true
		}
	}
	return "", false
}

// countMatches returns how many distinct keywords occur in text.
func countMatches(kws []keyword, text string) int {
	n := 0
	for _, kw := range kws {
		if kw.re.MatchString(text) {
			n++
		}
	}
	return n
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

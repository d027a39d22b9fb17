package filter

import (
	"fmt"
	"regexp"

	"github.com/amishk599/jobsieve/internal/config"
	"github.com/amishk599/jobsieve/internal/normalize"
)

type verdict int

const (
	next verdict = iota
	accept
	reject
)

// titleRule is one row of the Tier 1 decision table. Exclusion rules only see
// the original title; acceptance rules see the acronym-expanded copy.
type titleRule struct {
	name string
	eval func(original, expanded string) (verdict, string)
}

// TitleFilter decides whether a job title is in the candidate's domain.
// Rules run in order and the first non-neutral verdict wins; a title that no
// rule accepts is rejected.
type TitleFilter struct {
	rules    []titleRule
	acronyms []acronym
}

type acronym struct {
	pattern *regexp.Regexp
	full    string
}

// NewTitleFilter builds the Tier 1 rule table from vocab.
func NewTitleFilter(vocab *config.Vocabulary) *TitleFilter {
	f := &TitleFilter{}
	for _, short := range sortedKeys(vocab.AcronymMappings) {
		f.acronyms = append(f.acronyms, acronym{
			pattern: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(short) + `\b`),
			full:    vocab.AcronymMappings[short],
		})
	}

	falsePositives := append([]*regexp.Regexp(nil), vocab.FalsePositivePatterns()...)
	seniority := newKeywords(vocab.ExcludeSeniority)
	exclude := newKeywords(vocab.TitleExclude)
	phrases := newKeywords(vocab.RequiredPhrases)
	standalone := newKeywords(vocab.StandaloneKeywords)
	domain := newKeywords(vocab.DomainKeywords)
	role := newKeywords(vocab.RoleKeywords)

	f.rules = []titleRule{
		{"false_positive", func(original, _ string) (verdict, string) {
			for _, re := range falsePositives {
				if re.MatchString(original) {
					return reject, fmt.Sprintf("matches false-positive pattern %q", re.String())
				}
			}
			return next, ""
		}},
		{"seniority", func(original, _ string) (verdict, string) {
			if kw, ok := firstMatch(seniority, original); ok {
				return reject, fmt.Sprintf("senior/leadership role: excluded seniority keyword %q", kw)
			}
			return next, ""
		}},
		{"exclude", func(original, _ string) (verdict, string) {
			if kw, ok := firstMatch(exclude, original); ok {
				return reject, fmt.Sprintf("title exclude keyword %q", kw)
			}
			return next, ""
		}},
		{"required_phrase", func(_, expanded string) (verdict, string) {
			if kw, ok := firstMatch(phrases, expanded); ok {
				return accept, fmt.Sprintf("required phrase %q", kw)
			}
			return next, ""
		}},
		{"standalone", func(_, expanded string) (verdict, string) {
			if kw, ok := firstMatch(standalone, expanded); ok {
				return accept, fmt.Sprintf("standalone keyword %q", kw)
			}
			return next, ""
		}},
		{"domain_role", func(_, expanded string) (verdict, string) {
			d, hasDomain := firstMatch(domain, expanded)
			if len(role) == 0 {
				if hasDomain {
					return accept, fmt.Sprintf("domain keyword %q", d)
				}
				return next, ""
			}
			r, hasRole := firstMatch(role, expanded)
			switch {
			case hasDomain && hasRole:
				return accept, fmt.Sprintf("domain keyword %q with role keyword %q", d, r)
			case hasDomain:
				return reject, fmt.Sprintf("domain keyword %q without a role keyword", d)
			case hasRole:
				return reject, fmt.Sprintf("role keyword %q without a domain keyword", r)
			}
			return next, ""
		}},
	}
	return f
}

// Name implements Stage.
func (f *TitleFilter) Name() string { return "title" }

// Check implements Stage.
func (f *TitleFilter) Check(p Posting) (bool, string, error) {
	ok, reason := f.ShouldAccept(p.Title)
	return ok, reason, nil
}

// ShouldAccept evaluates title against the rule table.
func (f *TitleFilter) ShouldAccept(title string) (bool, string) {
	title = normalize.Whitespace(title)
	expanded := f.expand(title)
	for _, rule := range f.rules {
		switch v, reason := rule.eval(title, expanded); v {
		case accept:
			return true, reason
		case reject:
			return false, reason
		}
	}
	return false, "no target keyword in title"
}

// expand returns a copy of title with the full form of every recognised
// acronym written after it, so "ML Engineer" reads "ML machine learning Engineer".
func (f *TitleFilter) expand(title string) string {
	expanded := title
	for _, a := range f.acronyms {
		expanded = a.pattern.ReplaceAllStringFunc(expanded, func(m string) string {
			return m + " " + a.full
		})
	}
	return expanded
}

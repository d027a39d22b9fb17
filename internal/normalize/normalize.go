// Package normalize derives canonical identities for companies and job postings.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// companySuffixes are stripped in order. Longer forms come first so that
// "pty ltd" is not left as "pty" by the bare "ltd" rule.
var companySuffixes = []*regexp.Regexp{
	regexp.MustCompile(`\s+pty\.?\s+ltd\.?$`),
	regexp.MustCompile(`\s+pty\.?\s+limited$`),
	regexp.MustCompile(`\s+pty\.?$`),
	regexp.MustCompile(`\s+ltd\.?$`),
	regexp.MustCompile(`\s+limited$`),
	regexp.MustCompile(`\s+inc\.?$`),
	regexp.MustCompile(`\s+incorporated$`),
	regexp.MustCompile(`\s+corp\.?$`),
	regexp.MustCompile(`\s+corporation$`),
	regexp.MustCompile(`\s+llc\.?$`),
	regexp.MustCompile(`\s+llp\.?$`),
	regexp.MustCompile(`\s+plc\.?$`),
	regexp.MustCompile(`\s+gmbh$`),
}

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// Company returns the canonical form of a raw company name: lowercase, trimmed,
// corporate suffixes removed, whitespace collapsed.
func Company(raw string) string {
	s := Whitespace(strings.ToLower(raw))
	// A trailing comma ("Acme, Inc.") would hide the suffix from the rules.
	s = strings.ReplaceAll(s, ",", " ")
	s = Whitespace(s)
	for _, re := range companySuffixes {
		s = re.ReplaceAllString(s, "")
	}
	return Whitespace(s)
}

// Whitespace trims s and collapses internal runs of whitespace to one space.
func Whitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Text lowercases s, drops punctuation and collapses whitespace. Used for
// fuzzy comparisons where "ML-Engineer" and "ml engineer" should agree.
func Text(s string) string {
	return Whitespace(punctuation.ReplaceAllString(strings.ToLower(s), " "))
}

// JobHash derives the identity of a posting. With includeURL the hash is
// per-platform; without it the same role at the same company collides across
// platforms.
func JobHash(title, company, url string, includeURL bool) string {
	parts := []string{Whitespace(title), Company(company)}
	if includeURL {
		parts = append(parts, strings.TrimSpace(url))
	}
	sum := sha256.Sum256([]byte(strings.ToLower(strings.Join(parts, "|"))))
	return hex.EncodeToString(sum[:])
}

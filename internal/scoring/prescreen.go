package scoring

import (
	"fmt"
	"regexp"
)

// dealbreaker is one row of the local pre-screen table.
type dealbreaker struct {
	name    string
	pattern *regexp.Regexp
	// unless cancels the rule when it also matches, for example a posting
	// that rules out sponsorship in one place and offers it in another.
	unless *regexp.Regexp
	reason func(match []string) string
}

// dealbreakers are checked in order against the job description; the first
// hit wins.
var dealbreakers = []dealbreaker{
	{
		name:    "citizenship",
		pattern: regexp.MustCompile(`(?i)\b(australian\s+citizen(ship)?|citizenship\s+(is\s+)?required|permanent\s+residen(cy|t)\s+(is\s+)?required|must\s+be\s+an?\s+australian\s+(citizen|pr))\b`),
		reason:  func([]string) string { return "citizenship or permanent residency required" },
	},
	{
		name:    "clearance",
		pattern: regexp.MustCompile(`(?i)\b(nv1|nv2|baseline\s+clearance|security\s+clearance)\b`),
		reason:  func([]string) string { return "security clearance required" },
	},
	{
		name:    "sponsorship",
		pattern: regexp.MustCompile(`(?i)\b(no\s+visa\s+sponsorship|unable\s+to\s+(offer|provide)\s+(visa\s+)?sponsorship|will\s+not\s+sponsor|sponsorship\s+is\s+not\s+available)\b`),
		unless:  regexp.MustCompile(`(?i)\b(sponsorship\s+available|will\s+sponsor)\b`),
		reason:  func([]string) string { return "no visa sponsorship offered" },
	},
	{
		name:    "experience",
		pattern: regexp.MustCompile(`(?i)\b([5-9]|1[0-9])\+?\s*years?\s*(of\s+)?(professional\s+|commercial\s+|industry\s+)?experience\b`),
		reason: func(m []string) string {
			return fmt.Sprintf("minimum experience not met: %s+ years required", m[1])
		},
	},
	{
		name:    "doctorate",
		pattern: regexp.MustCompile(`(?i)\b(phd|doctorate)\s+(is\s+)?required\b`),
		reason:  func([]string) string { return "doctorate required" },
	},
}

// prescreen runs the dealbreaker table over description and returns the rule
// name and reason of the first rule that fires.
func prescreen(description string) (rule, reason string, ok bool) {
	for _, d := range dealbreakers {
		m := d.pattern.FindStringSubmatch(description)
		if m == nil {
			continue
		}
		if d.unless != nil && d.unless.MatchString(description) {
			continue
		}
		return d.name, d.reason(m), true
	}
	return "", "", false
}

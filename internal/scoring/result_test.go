package scoring

import (
	"errors"
	"strings"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, false},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`, false},
		{"prose around", `Sure! {"a":{"b":2}} Let me know.`, `{"a":{"b":2}}`, false},
		{"no object", "I cannot help with that.", "", true},
		{"broken object", `{"a": }`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseResult(t *testing.T) {
	t.Run("scored", func(t *testing.T) {
		r, err := parseResult(scored80)
		if err != nil {
			t.Fatal(err)
		}
		s, ok := r.(Scored)
		if !ok || len(s.Components) != 2 {
			t.Fatalf("result = %#v", r)
		}
	})

	t.Run("yes and no spellings", func(t *testing.T) {
		body := `{"hard_gate_failed": null, "components": [
			{"name": "a", "match_status": "yes", "weight": 50},
			{"name": "b", "match_status": "no", "weight": 50}]}`
		r, err := parseResult(body)
		if err != nil {
			t.Fatal(err)
		}
		s := r.(Scored)
		if s.Components[0].Contribution != 50 || s.Components[1].Contribution != 0 {
			t.Errorf("contributions = %v / %v", s.Components[0].Contribution, s.Components[1].Contribution)
		}
	})

	t.Run("hard gate", func(t *testing.T) {
		r, err := parseResult(`{"hard_gate_failed": "PR required", "explanation": "x"}`)
		if err != nil {
			t.Fatal(err)
		}
		if g, ok := r.(HardGateRejected); !ok || g.Reason != "PR required" {
			t.Fatalf("result = %#v", r)
		}
	})

	t.Run("empty gate string is not a gate", func(t *testing.T) {
		if _, err := parseResult(`{"hard_gate_failed": "  "}`); err == nil {
			t.Fatal("expected error: no gate and no components")
		}
	})

	t.Run("weights off", func(t *testing.T) {
		_, err := parseResult(scored97)
		if !errors.Is(err, ErrWeightSum) {
			t.Fatalf("err = %v, want ErrWeightSum", err)
		}
	})

	t.Run("missing hard gate key", func(t *testing.T) {
		_, err := parseResult(`{"components": []}`)
		if err == nil || !strings.Contains(err.Error(), "schema") {
			t.Fatalf("err = %v, want schema error", err)
		}
	})

	t.Run("unknown status", func(t *testing.T) {
		body := `{"hard_gate_failed": null, "components": [{"name": "a", "match_status": "maybe", "weight": 100}]}`
		if _, err := parseResult(body); err == nil {
			t.Fatal("expected schema error for unknown status")
		}
	})

	t.Run("fractional weight", func(t *testing.T) {
		body := `{"hard_gate_failed": null, "components": [{"name": "a", "match_status": "match", "weight": 99.5}]}`
		if _, err := parseResult(body); err == nil {
			t.Fatal("expected schema error for non-integer weight")
		}
	})
}

func TestPrescreen(t *testing.T) {
	tests := []struct {
		desc     string
		wantRule string
	}{
		{"You must be an Australian citizen to apply.", "citizenship"},
		{"Baseline clearance or ability to obtain NV1.", "clearance"},
		{"Unfortunately we are unable to offer visa sponsorship.", "sponsorship"},
		{"No visa sponsorship for this role, but sponsorship available for seniors.", ""},
		{"Requires 7+ years of commercial experience.", "experience"},
		{"2 years experience with Python.", ""},
		{"PhD required in a related field.", "doctorate"},
		{"Great graduate role with mentoring.", ""},
	}
	for _, tt := range tests {
		rule, reason, hit := prescreen(tt.desc)
		if rule != tt.wantRule || hit != (tt.wantRule != "") {
			t.Errorf("prescreen(%q) = %q %q %v, want rule %q", tt.desc, rule, reason, hit, tt.wantRule)
		}
	}
}

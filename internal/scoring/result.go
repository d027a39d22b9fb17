package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/amishk599/jobsieve/internal/model"
)

// Result is what a backend concluded about a job: either HardGateRejected or
// Scored. The unexported method keeps the set closed.
type Result interface {
	isResult()
}

// HardGateRejected means a dealbreaker made the application pointless.
type HardGateRejected struct {
	Reason        string
	ProposedScore *int // the backend's own score, used when it lies in the hard-gate band
	Explanation   string
	RiskProfile   model.RiskProfile
}

// Scored carries the component breakdown of a job that passed every hard gate.
// Component weights sum to exactly 100.
type Scored struct {
	Components  []model.Component
	Explanation string
	RiskProfile model.RiskProfile
}

func (HardGateRejected) isResult() {}
func (Scored) isResult()           {}

// rawResult is the JSON shape the prompt asks for.
type rawResult struct {
	HardGateFailed *string            `json:"hard_gate_failed"`
	FinalScore     *float64           `json:"final_score"`
	Explanation    string             `json:"explanation"`
	Components     []rawComponent     `json:"components"`
	RiskProfile    *model.RiskProfile `json:"risk_profile"`
}

type rawComponent struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	MatchStatus string `json:"match_status"`
	Weight      int    `json:"weight"`
}

var responseSchema = gojsonschema.NewStringLoader(responseSchemaRaw)

// ErrWeightSum is returned when the component weights of a non-gated result
// do not add up to 100. Weights are never renormalized.
var ErrWeightSum = errors.New("component weights must sum to 100")

// parseResult turns a cleaned JSON body into a Result.
func parseResult(body string) (Result, error) {
	if err := validateSchema(body); err != nil {
		return nil, err
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal score JSON: %w", err)
	}

	var risk model.RiskProfile
	if raw.RiskProfile != nil {
		risk = *raw.RiskProfile
	}

	if raw.HardGateFailed != nil && strings.TrimSpace(*raw.HardGateFailed) != "" {
		r := HardGateRejected{
			Reason:      strings.TrimSpace(*raw.HardGateFailed),
			Explanation: raw.Explanation,
			RiskProfile: risk,
		}
		if raw.FinalScore != nil {
			v := int(*raw.FinalScore)
			r.ProposedScore = &v
		}
		return r, nil
	}

	if len(raw.Components) == 0 {
		return nil, errors.New("no components and no hard gate")
	}

	components := make([]model.Component, 0, len(raw.Components))
	sum := 0
	for i, rc := range raw.Components {
		status, err := model.ParseMatchStatus(strings.ToLower(strings.TrimSpace(rc.MatchStatus)))
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		sum += rc.Weight
		components = append(components, model.Component{
			Label:        rc.Name,
			Category:     rc.Category,
			Weight:       rc.Weight,
			Status:       status,
			Contribution: float64(rc.Weight) * status.Factor(),
		})
	}
	if sum != 100 {
		return nil, fmt.Errorf("%w, got %d", ErrWeightSum, sum)
	}

	return Scored{Components: components, Explanation: raw.Explanation, RiskProfile: risk}, nil
}

// validateSchema checks the structure of body against the embedded schema.
func validateSchema(body string) error {
	result, err := gojsonschema.Validate(responseSchema, gojsonschema.NewStringLoader(body))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		msgs = append(msgs, field+": "+desc.Description())
	}
	return fmt.Errorf("response does not match schema: %s", strings.Join(msgs, "; "))
}

// extractJSON returns the JSON object inside raw. Models sometimes wrap it in
// markdown fences or prose; the fallback takes everything from the first '{'
// to the last '}'.
func extractJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if json.Valid([]byte(s)) {
		return s, nil
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", errors.New("no JSON object in response")
	}
	candidate := s[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return "", errors.New("no valid JSON object in response")
	}
	return candidate, nil
}

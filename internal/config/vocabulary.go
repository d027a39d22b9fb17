package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/amishk599/jobsieve/internal/model"
)

// DefaultExcludeSeniority is used when the vocabulary does not list its own.
var DefaultExcludeSeniority = []string{
	"senior", "sr", "lead", "principal", "staff", "manager", "director",
	"head of", "chief", "vp", "vice president", "executive",
}

// Vocabulary is the keyword configuration produced by the external vocabulary
// generator. It is read-only once loaded; filters copy what they need.
type Vocabulary struct {
	DomainKeywords      []string          `json:"title_domain_keywords" validate:"dive,required"`
	RoleKeywords        []string          `json:"title_role_keywords" validate:"dive,required"`
	StandaloneKeywords  []string          `json:"title_standalone_keywords" validate:"dive,required"`
	RequiredPhrases     []string          `json:"title_required_phrases" validate:"dive,required"`
	TitleExclude        []string          `json:"title_exclude_keywords" validate:"dive,required"`
	AcronymMappings     map[string]string `json:"acronym_mappings" validate:"dive,keys,required,endkeys,required"`
	FalsePositives      []string          `json:"false_positive_patterns" validate:"dive,required"`
	DescriptionKeywords []string          `json:"description_required_keywords" validate:"dive,required"`
	QualityThreshold    *int              `json:"description_quality_threshold" validate:"omitempty,min=0"`
	MinLength           *int              `json:"description_min_length" validate:"omitempty,min=0"`
	ExcludeSeniority    []string          `json:"exclude_seniority" validate:"dive,required"`

	// Older generator output, still honoured.
	LegacyTitleKeywords []string `json:"title_keywords" validate:"dive,required"`
	StrongKeywords      []string `json:"strong_keywords" validate:"dive,required"`

	falsePositives []*regexp.Regexp
}

// FalsePositivePatterns returns the compiled false-positive regexes.
func (v *Vocabulary) FalsePositivePatterns() []*regexp.Regexp {
	return v.falsePositives
}

// DescriptionMinLength returns the Tier 3 length floor (default 100).
func (v *Vocabulary) DescriptionMinLength() int {
	if v.MinLength == nil {
		return 100
	}
	return *v.MinLength
}

// DescriptionThreshold returns the Tier 3 keyword count needed (default 2).
func (v *Vocabulary) DescriptionThreshold() int {
	if v.QualityThreshold == nil {
		return 2
	}
	return *v.QualityThreshold
}

// LoadVocabulary reads and validates the vocabulary JSON at path.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.ConfigurationError{Field: "vocabulary", Err: fmt.Errorf("read vocabulary: %w", err)}
	}
	return ParseVocabulary(data)
}

// ParseVocabulary decodes and validates vocabulary JSON.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, &model.ConfigurationError{Field: "vocabulary", Err: fmt.Errorf("parse vocabulary: %w", err)}
	}
	if err := v.prepare(); err != nil {
		return nil, err
	}
	return &v, nil
}

func (v *Vocabulary) prepare() error {
	if err := structValidator.Struct(v); err != nil {
		return &model.ConfigurationError{Field: "vocabulary", Err: err}
	}

	// Configs without the domain/role split list their terms as title_keywords.
	if len(v.DomainKeywords) == 0 && len(v.LegacyTitleKeywords) > 0 {
		v.DomainKeywords = v.LegacyTitleKeywords
	}
	if len(v.DomainKeywords) == 0 && len(v.RequiredPhrases) == 0 && len(v.StandaloneKeywords) == 0 {
		return &model.ConfigurationError{
			Field: "vocabulary",
			Err:   errors.New("no domain keywords, required phrases or standalone keywords: every title would be rejected"),
		}
	}
	if len(v.ExcludeSeniority) == 0 {
		v.ExcludeSeniority = append([]string(nil), DefaultExcludeSeniority...)
	}

	for i, p := range v.FalsePositives {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return &model.ConfigurationError{Field: fmt.Sprintf("false_positive_patterns[%d]", i), Err: err}
		}
		v.falsePositives = append(v.falsePositives, re)
	}

	lowerAll(v.DomainKeywords)
	lowerAll(v.RoleKeywords)
	lowerAll(v.StandaloneKeywords)
	lowerAll(v.RequiredPhrases)
	lowerAll(v.TitleExclude)
	lowerAll(v.DescriptionKeywords)
	lowerAll(v.ExcludeSeniority)
	lowerAll(v.StrongKeywords)

	acronyms := make(map[string]string, len(v.AcronymMappings))
	for k, full := range v.AcronymMappings {
		acronyms[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(strings.TrimSpace(full))
	}
	v.AcronymMappings = acronyms
	return nil
}

func lowerAll(words []string) {
	for i, w := range words {
		words[i] = strings.ToLower(strings.TrimSpace(w))
	}
}

package scoring

import (
	_ "embed"
	"text/template"
)

//go:embed prompts/score.md
var scorePromptRaw string

//go:embed prompts/score.schema.json
var responseSchemaRaw string

// scoreTemplate is parsed once at package init and reused on every Score call.
var scoreTemplate = template.Must(template.New("score").Parse(scorePromptRaw))

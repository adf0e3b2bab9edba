package llm

import (
	"encoding/json"
	"strings"

	"github.com/invopop/jsonschema"
)

// CodeEnvelope is the response every backend produces.
type CodeEnvelope struct {
	Code string `json:"code" jsonschema:"description=code text without code block characters"`
}

// EnvelopeSchema returns the JSON Schema of CodeEnvelope, inlined so it can be
// used directly as function parameters.
func EnvelopeSchema() *jsonschema.Schema {
	return (&jsonschema.Reflector{DoNotReference: true}).Reflect(&CodeEnvelope{})
}

// Envelope encodes code as a response envelope.
func Envelope(code string) string {
	data, _ := json.Marshal(CodeEnvelope{Code: code})
	return string(data)
}

// StripFences removes a markdown code fence wrapped around the whole text.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") && strings.HasSuffix(text, "```") {
		lines := strings.Split(text, "\n")
		if len(lines) < 2 {
			return strings.Trim(text, "`")
		}
		text = strings.Join(lines[1:len(lines)-1], "\n")
	}
	return text
}

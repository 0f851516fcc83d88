package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/i474232898/weather-assistant/internal/llm"
)

// Intent is the structured reading of one query. An empty Location means
// the user has to be asked which place they mean.
type Intent struct {
	Location        string `json:"location,omitempty"`
	WantsForecast   bool   `json:"wantsForecast"`
	WantsComparison bool   `json:"wantsComparison"`
	RawQuery        string `json:"rawQuery"`
}

// HasLocation reports whether a location was extracted.
func (i Intent) HasLocation() bool {
	return i.Location != ""
}

// Engine is the language engine capability.
type Engine interface {
	Complete(ctx context.Context, p llm.Prompt) (string, error)
}

// IntentExtractor turns a query into an Intent.
type IntentExtractor interface {
	Extract(ctx context.Context, query string) (Intent, error)
}

const intentSystemPrompt = `You classify weather questions. You never answer them.
Read the user's message and reply with exactly one JSON object and nothing else:
{"location": "<place name or null>", "wants_forecast": <true|false>, "wants_comparison": <true|false>}

Rules:
- "location" is the first city or place mentioned, as written by the user. Use null when no place is mentioned.
- When several places are compared, put only the first one in "location" and set "wants_comparison" to true.
- "wants_forecast" is true when the user asks about a future time (tomorrow, tonight, this week, later).
- No markdown, no code blocks, no explanations.

Examples:
"What's the weather in Pune?" -> {"location": "Pune", "wants_forecast": false, "wants_comparison": false}
"Compare Mumbai and Pune" -> {"location": "Mumbai", "wants_forecast": false, "wants_comparison": true}
"Will it rain in London tomorrow?" -> {"location": "London", "wants_forecast": true, "wants_comparison": false}
"is it nice out" -> {"location": null, "wants_forecast": false, "wants_comparison": false}`

// LLMExtractor asks the language engine to classify the query.
type LLMExtractor struct {
	engine Engine
	model  string
}

// NewLLMExtractor creates an extractor. model may be empty to use the engine default.
func NewLLMExtractor(engine Engine, model string) *LLMExtractor {
	return &LLMExtractor{engine: engine, model: model}
}

// Extract makes one engine call and strictly parses its answer.
func (x *LLMExtractor) Extract(ctx context.Context, query string) (Intent, error) {
	raw, err := x.engine.Complete(ctx, llm.Prompt{
		System: intentSystemPrompt,
		User:   query,
		Model:  x.model,
	})
	if err != nil {
		return Intent{}, &IntentParseError{Reason: "engine call failed", Err: err}
	}

	intent, err := ParseIntent(raw, query)
	if err != nil {
		slog.Warn("assistant: could not parse intent", "error", err, "raw", raw)
		return Intent{}, err
	}
	slog.Debug("assistant: intent extracted", "location", intent.Location, "forecast", intent.WantsForecast, "comparison", intent.WantsComparison)
	return intent, nil
}

// intentPayload mirrors the JSON the engine is told to emit.
// Location is kept raw so a missing key can be told apart from null.
type intentPayload struct {
	Location        json.RawMessage `json:"location"`
	WantsForecast   *bool           `json:"wants_forecast"`
	WantsComparison *bool           `json:"wants_comparison"`
}

// ParseIntent maps engine output to an Intent or fails with *IntentParseError.
// Reasoning segments and code fences are removed first; then the first JSON
// object must decode and carry a "location" key holding a string or null.
// The two flags default to false when absent but must be booleans when present.
func ParseIntent(raw, query string) (Intent, error) {
	cleaned := llm.StripCodeFences(llm.StripReasoning(raw))
	obj, ok := firstJSONObject(cleaned)
	if !ok {
		return Intent{}, &IntentParseError{Raw: raw, Reason: "no JSON object in engine output"}
	}

	var p intentPayload
	if err := json.Unmarshal([]byte(obj), &p); err != nil {
		return Intent{}, &IntentParseError{Raw: raw, Reason: "malformed JSON", Err: err}
	}
	if p.Location == nil {
		return Intent{}, &IntentParseError{Raw: raw, Reason: `missing required field "location"`}
	}

	var location string
	if !bytes.Equal(bytes.TrimSpace(p.Location), []byte("null")) {
		if err := json.Unmarshal(p.Location, &location); err != nil {
			return Intent{}, &IntentParseError{Raw: raw, Reason: `"location" must be a string or null`, Err: err}
		}
	}

	intent := Intent{
		Location: normalizeLocation(location),
		RawQuery: query,
	}
	if p.WantsForecast != nil {
		intent.WantsForecast = *p.WantsForecast
	}
	if p.WantsComparison != nil {
		intent.WantsComparison = *p.WantsComparison
	}
	return intent, nil
}

func normalizeLocation(s string) string {
	s = strings.Trim(strings.TrimSpace(s), `"'?.!`)
	switch strings.ToLower(s) {
	case "", "null", "none", "unknown", "n/a", "nil":
		return ""
	}
	return s
}

// firstJSONObject returns the first balanced {...} block in s.
func firstJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

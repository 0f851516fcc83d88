package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/i474232898/weather-assistant/internal/knowledge"
	"github.com/i474232898/weather-assistant/internal/llm"
	"github.com/i474232898/weather-assistant/internal/weather"
)

// SynthesisContext is everything the final answer may draw on.
type SynthesisContext struct {
	Intent    Intent
	Retrieved []knowledge.Entry // most relevant first
	Fresh     *weather.Snapshot // nil when the cache was sufficient
}

const synthesisSystemPrompt = `You are a senior meteorological analyst answering weather questions.

You may receive two kinds of context:
1. Knowledge base insights: earlier observations, possibly about other places or times.
2. Fresh telemetry: a live reading taken moments ago.

Instructions:
- Answer in natural, conversational prose. Do not use bullet points or lists.
- Quote concrete metrics (temperature, pressure, humidity, wind, visibility, sunrise and sunset) when available and explain what they mean.
- Prefer fresh telemetry over older insights. When both exist, relate them.
- When only knowledge base insights are available, say when they were observed.
- Keep simple answers to 2-4 sentences; go longer only for comparisons or analysis.
- Never invent data that is not in the context.`

// Synthesizer produces the user-facing answer.
type Synthesizer struct {
	engine Engine
	model  string
}

// NewSynthesizer creates a Synthesizer. model may be empty to use the engine default.
func NewSynthesizer(engine Engine, model string) *Synthesizer {
	return &Synthesizer{engine: engine, model: model}
}

// Synthesize makes one engine call and returns its answer with any
// reasoning segment removed.
func (s *Synthesizer) Synthesize(ctx context.Context, sc SynthesisContext) (string, error) {
	raw, err := s.engine.Complete(ctx, llm.Prompt{
		System: synthesisSystemPrompt,
		User:   buildSynthesisInput(sc),
		Model:  s.model,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSynthesis, err)
	}

	answer := llm.StripReasoning(raw)
	if answer == "" {
		return "", fmt.Errorf("%w: empty answer", ErrSynthesis)
	}
	return answer, nil
}

func buildSynthesisInput(sc SynthesisContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User query: %s\n", sc.Intent.RawQuery)
	fmt.Fprintf(&b, "Location: %s\n", sc.Intent.Location)
	if sc.Intent.WantsForecast {
		b.WriteString("The user is asking about a future time. Only current data is available; say so if it matters.\n")
	}
	if sc.Intent.WantsComparison {
		b.WriteString("The user wants a comparison. Use every relevant insight below.\n")
	}

	b.WriteString("\nAvailable context:\n")
	if len(sc.Retrieved) == 0 && sc.Fresh == nil {
		b.WriteString("No context available.\n")
	}
	if len(sc.Retrieved) > 0 {
		b.WriteString("\nKnowledge base insights:\n")
		for i, e := range sc.Retrieved {
			fmt.Fprintf(&b, "%d. [%s, observed %s] %s\n", i+1, e.Location, e.ObservedAt.UTC().Format("2006-01-02 15:04 MST"), e.Text)
		}
	}
	if sc.Fresh != nil {
		data, err := json.MarshalIndent(sc.Fresh, "", "  ")
		if err != nil {
			data = []byte(weather.Describe(*sc.Fresh))
		}
		fmt.Fprintf(&b, "\nFresh telemetry:\n%s\n", data)
	}

	b.WriteString("\nProvide a natural, expert meteorological response:")
	return b.String()
}

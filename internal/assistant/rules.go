package assistant

import (
	"context"
	"regexp"
	"strings"

	"github.com/i474232898/weather-assistant/internal/common"
)

var simpleQueryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^weather (?:in|at|for) [a-z\s\-\.]+\??$`),
	regexp.MustCompile(`^what.?s? (?:the )?weather (?:in|at|for) [a-z\s\-\.]+\??$`),
	regexp.MustCompile(`^how.?s? [a-z\s\-\.]+ weather\??$`),
	regexp.MustCompile(`^[a-z\s\-\.]+ weather\??$`),
	regexp.MustCompile(`^current weather (?:in|at|for) [a-z\s\-\.]+\??$`),
}

var complexKeywords = []string{
	"compare", "analysis", "picnic", "should i", "recommend", "better",
	"worse", "why", "planning", "party", "safe", "run", "bike", "hike",
	"opinion", "think", "suggest", "advice", "wear", "umbrella", "raincoat",
}

var forecastKeywords = []string{"forecast", "tomorrow", "tonight", "this week", "next week", "later", "weekend"}

var comparisonKeywords = []string{"compare", " vs ", " vs.", "versus", "warmer than", "colder than", "than in"}

var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`weather (?:in|of|for|at) ([a-z\s\-\.']+?)(?:\?|$|today|now|tomorrow|tonight)`),
	regexp.MustCompile(`report (?:for|of|on) ([a-z\s\-\.']+?)(?:\?|$)`),
	regexp.MustCompile(`^(?:how.?s? |current )?(?:the )?([a-z\s\-\.']+?) weather\??$`),
	regexp.MustCompile(`\b(?:in|for|at) ([a-z\s\-\.']+?)(?:\?|$|\s+(?:today|now|tomorrow|tonight))`),
}

var noiseWords = regexp.MustCompile(`\b(the|a|an|weather|report|now|today|current|like)\b`)

// words that are capitalized at the start of a question but never places
var notPlaces = map[string]bool{
	"what": true, "whats": true, "how": true, "hows": true, "is": true,
	"will": true, "weather": true, "tell": true, "should": true, "the": true,
	"today": true, "tomorrow": true, "now": true, "please": true, "does": true,
}

// IsSimpleQuery reports whether q is a plain "weather in X" style question
// that can be classified without the language engine.
func IsSimpleQuery(q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if common.HasAny(q, complexKeywords...) {
		return false
	}
	for _, p := range simpleQueryPatterns {
		if p.MatchString(q) {
			return true
		}
	}
	return false
}

// RuleExtractor classifies queries with regular expressions only.
type RuleExtractor struct{}

// Extract never fails; an unrecognized place yields an Intent without location.
func (RuleExtractor) Extract(_ context.Context, query string) (Intent, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	return Intent{
		Location:        extractLocation(query),
		WantsForecast:   common.HasAny(q, forecastKeywords...),
		WantsComparison: common.HasAny(" "+q+" ", comparisonKeywords...),
		RawQuery:        query,
	}, nil
}

func extractLocation(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	for _, p := range locationPatterns {
		m := p.FindStringSubmatch(q)
		if m == nil {
			continue
		}
		city := strings.Join(strings.Fields(noiseWords.ReplaceAllString(m[1], "")), " ")
		city = strings.Trim(city, "-.' ")
		if city != "" && !notPlaces[strings.ReplaceAll(city, "'", "")] {
			return common.TitleWords(city)
		}
	}

	// Capitalized word fallback, scanning from the end of the query.
	words := strings.Fields(query)
	for i := len(words) - 1; i >= 0; i-- {
		w := strings.Trim(words[i], "?.,!")
		if len(w) > 2 && w[0] >= 'A' && w[0] <= 'Z' && !notPlaces[strings.ToLower(strings.ReplaceAll(w, "'", ""))] {
			return w
		}
	}
	return ""
}

// SmartExtractor uses the rules for simple queries and the engine otherwise,
// saving an engine call on the most common question shape.
type SmartExtractor struct {
	rules  RuleExtractor
	engine IntentExtractor
}

// NewSmartExtractor wraps an engine-backed extractor.
func NewSmartExtractor(engine IntentExtractor) *SmartExtractor {
	return &SmartExtractor{engine: engine}
}

func (x *SmartExtractor) Extract(ctx context.Context, query string) (Intent, error) {
	if IsSimpleQuery(query) {
		return x.rules.Extract(ctx, query)
	}
	return x.engine.Extract(ctx, query)
}

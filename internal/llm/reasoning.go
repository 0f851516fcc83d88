package llm

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// StripReasoning removes <think>...</think> segments from engine output.
// A closing tag with no opener drops everything before it and an opener
// with no closing tag drops everything after it. The result never contains
// either tag, so applying StripReasoning twice equals applying it once.
func StripReasoning(s string) string {
	for {
		open := strings.Index(s, thinkOpen)
		end := strings.Index(s, thinkClose)

		switch {
		case open < 0 && end < 0:
			return strings.TrimSpace(s)
		case end >= 0 && (open < 0 || end < open):
			s = s[end+len(thinkClose):]
		case end < 0:
			s = s[:open]
		default:
			s = s[:open] + s[end+len(thinkClose):]
		}
	}
}

// StripCodeFences drops markdown fence lines such as ```json from s.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "```") {
			continue
		}
		kept = append(kept, l)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

package assistant

import (
	"errors"
	"fmt"
)

var (
	// ErrIntentParse is matched by every *IntentParseError.
	ErrIntentParse = errors.New("intent parse error")

	// ErrSynthesis is returned when the engine failed or produced no answer.
	ErrSynthesis = errors.New("synthesis error")
)

// IntentParseError reports engine output that could not be mapped to an Intent.
// Raw holds the text the engine returned.
type IntentParseError struct {
	Raw    string
	Reason string
	Err    error
}

func (e *IntentParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("intent parse error: %s: %v", e.Reason, e.Err)
	}
	return "intent parse error: " + e.Reason
}

func (e *IntentParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrIntentParse, e.Err}
	}
	return []error{ErrIntentParse}
}

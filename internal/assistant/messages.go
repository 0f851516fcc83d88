package assistant

import (
	"errors"
	"fmt"

	"github.com/i474232898/weather-assistant/internal/common"
	"github.com/i474232898/weather-assistant/internal/weather"
)

const (
	MsgClarify = "I'd be happy to help with weather information! Could you please tell me which city you're interested in?"

	MsgApology = "I'm sorry, I couldn't process that weather question right now. Please try again in a moment."

	MsgTelemetryUnavailable = "The weather service is temporarily unavailable, so I can't get live conditions right now. Please try again shortly."

	MsgTimeout = "Sorry, that took too long to answer. The weather or language service may be slow right now; please try again."

	msgLocationNotFound = "I couldn't find a place called %q. Could you check the spelling or try a nearby city?"
)

// LocationNotFoundMessage is the reply for a place the weather service does not know.
func LocationNotFoundMessage(location string) string {
	return fmt.Sprintf(msgLocationNotFound, location)
}

// Failure categories, also used as metric labels.
const (
	CauseNone                 = ""
	CauseIntentParse          = "intent_parse"
	CauseLocationNotFound     = "location_not_found"
	CauseTelemetryUnavailable = "telemetry_unavailable"
	CauseSynthesis            = "synthesis"
	CauseTimeout              = "timeout"
	CauseUnknown              = "unknown"
)

// classify maps a pipeline error to its category and user-facing text.
// Raw error text is never part of the message.
func classify(err error, location string) (cause, message string) {
	switch {
	case errors.Is(err, weather.ErrLocationNotFound):
		return CauseLocationNotFound, LocationNotFoundMessage(location)
	case errors.Is(err, common.ErrTransportTimeout):
		return CauseTimeout, MsgTimeout
	case errors.Is(err, weather.ErrTelemetryUnavailable):
		return CauseTelemetryUnavailable, MsgTelemetryUnavailable
	case errors.Is(err, ErrIntentParse):
		return CauseIntentParse, MsgApology
	case errors.Is(err, ErrSynthesis):
		return CauseSynthesis, MsgApology
	default:
		return CauseUnknown, MsgApology
	}
}

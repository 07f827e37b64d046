package supervisor

import (
	"errors"

	"github.com/fyrsmithlabs/portfoliod/internal/resolver"
)

// ErrNoDataset is returned by HandleRequest when no table is loaded.
var ErrNoDataset = errors.New("dataset not loaded")

// ErrorType classifies a user-facing error payload.
type ErrorType string

const (
	ErrorUnknownProperty   ErrorType = "unknown_property"
	ErrorAmbiguousProperty ErrorType = "ambiguous_property"
	ErrorMissingProperty   ErrorType = "missing_property"
	ErrorMissingTimeframe  ErrorType = "missing_timeframe"
	ErrorDataUnavailable   ErrorType = "data_unavailable"
	ErrorUnsupported       ErrorType = "unsupported"
)

// ErrorPayload explains why a request could not be answered as asked. It
// is part of a normal response, not a Go error.
type ErrorPayload struct {
	Type    ErrorType      `json:"type"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// unresolvedPayload builds the payload for not-found and ambiguous
// mentions. Not-found wins when both are present.
func unresolvedPayload(res []resolver.Resolution, message string) *ErrorPayload {
	typ := ErrorAmbiguousProperty
	mentions := make([]string, 0, len(res))
	suggestions := make(map[string][]resolver.Suggestion, len(res))
	for _, r := range res {
		if r.Status == resolver.StatusNotFound {
			typ = ErrorUnknownProperty
		}
		mentions = append(mentions, r.Mention)
		suggestions[r.Mention] = r.Suggestions
	}
	return &ErrorPayload{
		Type:    typ,
		Message: message,
		Details: map[string]any{
			"mentions":    mentions,
			"suggestions": suggestions,
		},
	}
}

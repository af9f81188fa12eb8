package queue

import (
	"context"
	"errors"

	"adscribe/internal/services"
)

// ErrorClassifier allows errors to declare their classification. The kind is
// persisted as the error code when the error carries no explicit code.
type ErrorClassifier interface {
	ErrorKind() string
}

// FailureDetails is the error information persisted on a failed job.
type FailureDetails struct {
	Message    string
	Code       string
	Suggestion string
}

// FailureFromError derives the persisted failure details from a stage error.
// Cancellation is reported with the cancelled code regardless of wrapping.
func FailureFromError(err error) FailureDetails {
	if err == nil {
		return FailureDetails{}
	}
	if errors.Is(err, context.Canceled) {
		return FailureDetails{
			Message:    CancelledReason,
			Code:       services.CodeCancelled,
			Suggestion: services.SuggestionFor(services.CodeCancelled),
		}
	}
	code, suggestion := services.Details(err)
	if code == "" {
		var classifier ErrorClassifier
		if errors.As(err, &classifier) {
			code = classifier.ErrorKind()
		}
	}
	return FailureDetails{Message: err.Error(), Code: code, Suggestion: suggestion}
}

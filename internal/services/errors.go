package services

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure for retry and job-status purposes.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindVideoProcessing Kind = "video_processing"
	KindAudioProcessing Kind = "audio_processing"
	KindAIService       Kind = "ai_service"
	KindResource        Kind = "resource"
	KindSystem          Kind = "system"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrVideoProcessing = errors.New("video processing error")
	ErrAudioProcessing = errors.New("audio processing error")
	ErrAIService       = errors.New("ai service error")
	ErrResource        = errors.New("resource error")
	ErrSystem          = errors.New("system error")
)

var kindMarkers = map[Kind]error{
	KindValidation:      ErrValidation,
	KindVideoProcessing: ErrVideoProcessing,
	KindAudioProcessing: ErrAudioProcessing,
	KindAIService:       ErrAIService,
	KindResource:        ErrResource,
	KindSystem:          ErrSystem,
}

// Error is the structured failure carried from a component to the job record.
type Error struct {
	Kind       Kind
	Component  string
	Code       string
	Message    string
	Suggestion string
	Err        error
}

func (e *Error) Error() string {
	detail := buildDetail(e.Component, e.Code, e.Message)
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.marker(), detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.marker(), detail)
}

// Unwrap exposes both the kind marker and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.marker()}
	}
	return []error{e.marker(), e.Err}
}

// ErrorKind implements queue.ErrorClassifier.
func (e *Error) ErrorKind() string {
	return string(e.Kind)
}

func (e *Error) marker() error {
	if marker, ok := kindMarkers[e.Kind]; ok {
		return marker
	}
	return ErrSystem
}

// New builds a classified error without an underlying cause.
func New(kind Kind, component, code, message string) *Error {
	return &Error{Kind: kind, Component: component, Code: code, Message: message}
}

// Wrap builds a classified error around err. The suggestion defaults to the
// well-known hint for the code, if any.
func Wrap(kind Kind, component, code, message string, err error) *Error {
	return &Error{
		Kind:       kind,
		Component:  component,
		Code:       code,
		Message:    message,
		Suggestion: SuggestionFor(code),
		Err:        err,
	}
}

// WithSuggestion returns a copy carrying a user-facing hint.
func (e *Error) WithSuggestion(suggestion string) *Error {
	clone := *e
	clone.Suggestion = strings.TrimSpace(suggestion)
	return &clone
}

// KindOf reports the kind of err, or KindSystem when err is unclassified.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	for kind, marker := range kindMarkers {
		if errors.Is(err, marker) {
			return kind
		}
	}
	return KindSystem
}

// Retryable reports whether err should be retried by the shared policy.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindAIService, KindResource:
		return true
	default:
		return false
	}
}

// Details extracts code and suggestion for persisting on a failed job.
func Details(err error) (code, suggestion string) {
	var classified *Error
	if errors.As(err, &classified) {
		code = classified.Code
		suggestion = classified.Suggestion
		if suggestion == "" {
			suggestion = SuggestionFor(code)
		}
	}
	return code, suggestion
}

// Well-known error codes that carry canned suggestions.
const (
	CodeMissingCredentials = "missing_credentials"
	CodeMissingBinary      = "missing_binary"
	CodeUnsupportedFormat  = "unsupported_format"
	CodeVideoTooLong       = "video_too_long"
	CodeFileNotFound       = "file_not_found"
	CodeCancelled          = "cancelled"
	CodeMemoryPressure     = "memory_pressure"
)

var suggestions = map[string]string{
	CodeMissingCredentials: "set the provider api key in the config file or environment, or switch the provider to stub",
	CodeMissingBinary:      "install ffmpeg/ffprobe and make sure they are on PATH (run 'adscribe deps')",
	CodeUnsupportedFormat:  "convert the video to MP4 (H.264/AAC) and submit it again",
	CodeVideoTooLong:       "split the video into parts shorter than the configured maximum duration",
	CodeFileNotFound:       "check the path; the video must be readable by the worker",
	CodeCancelled:          "resubmit the video or run 'adscribe retry' on the job",
	CodeMemoryPressure:     "lower governor.max_concurrent or raise governor.memory_limit_mb",
}

// SuggestionFor returns the canned suggestion for a well-known code.
func SuggestionFor(code string) string {
	return suggestions[code]
}

func buildDetail(component, code, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if code = strings.TrimSpace(code); code != "" {
		parts = append(parts, code)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

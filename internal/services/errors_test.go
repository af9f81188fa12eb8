package services_test

import (
	"errors"
	"strings"
	"testing"

	"adscribe/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.KindVideoProcessing, "scene", "decode", "frame sampling failed", base)
	if !errors.Is(err, services.ErrVideoProcessing) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"scene", "decode", "frame sampling failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestRetryableKinds(t *testing.T) {
	cases := []struct {
		kind services.Kind
		want bool
	}{
		{services.KindValidation, false},
		{services.KindVideoProcessing, false},
		{services.KindAudioProcessing, false},
		{services.KindAIService, true},
		{services.KindResource, true},
		{services.KindSystem, false},
	}
	for _, tc := range cases {
		err := services.New(tc.kind, "test", "", "failure")
		if got := services.Retryable(err); got != tc.want {
			t.Fatalf("Retryable(%s) = %v, want %v", tc.kind, got, tc.want)
		}
	}
	if services.Retryable(nil) {
		t.Fatal("nil error must not be retryable")
	}
	if services.Retryable(errors.New("plain")) {
		t.Fatal("unclassified error must not be retryable")
	}
}

func TestKindOfSurvivesWrapping(t *testing.T) {
	inner := services.New(services.KindAIService, "llm", "", "http 503")
	outer := errors.Join(errors.New("context"), inner)
	if kind := services.KindOf(outer); kind != services.KindAIService {
		t.Fatalf("expected ai_service, got %s", kind)
	}
}

func TestDetailsUsesCannedSuggestion(t *testing.T) {
	err := services.Wrap(services.KindSystem, "providers", services.CodeMissingCredentials, "openai api key required", nil)
	code, suggestion := services.Details(err)
	if code != services.CodeMissingCredentials {
		t.Fatalf("unexpected code %q", code)
	}
	if !strings.Contains(suggestion, "api key") {
		t.Fatalf("expected credentials suggestion, got %q", suggestion)
	}
	custom := err.WithSuggestion("use the stub provider")
	if _, s := services.Details(custom); s != "use the stub provider" {
		t.Fatalf("expected custom suggestion, got %q", s)
	}
}

func TestErrorKindClassifier(t *testing.T) {
	err := services.New(services.KindValidation, "schedule", "", "bad interval")
	if err.ErrorKind() != "validation" {
		t.Fatalf("unexpected kind %q", err.ErrorKind())
	}
}

package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"adscribe/internal/logging"
	"adscribe/internal/scene"
	"adscribe/internal/schedule"
	"adscribe/internal/services"
	"adscribe/internal/silence"
)

type fakeModel struct {
	parts []genai.Part
	resp  *genai.GenerateContentResponse
	err   error
}

func (f *fakeModel) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.parts = parts
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Text(text)}}}},
	}
}

func sceneContext(keyframe []byte) schedule.SceneContext {
	return schedule.SceneContext{
		Scene:    scene.Interval{Start: 2, End: 6},
		Window:   silence.Interval{Start: 2.5, End: 5.5},
		Keyframe: keyframe,
		Language: "es",
		MaxWords: 9,
	}
}

func TestGenerateSendsImageAndParsesReply(t *testing.T) {
	model := &fakeModel{resp: textResponse(`{"description":"Un perro cruza   la calle."}`)}
	gen := &Generator{model: model, logger: logging.NewNop()}

	text, err := gen.Generate(context.Background(), sceneContext([]byte{0xff, 0xd8}))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "Un perro cruza la calle." {
		t.Fatalf("unexpected text %q", text)
	}
	if len(model.parts) != 2 {
		t.Fatalf("expected prompt and image parts, got %d", len(model.parts))
	}
	blob, ok := model.parts[1].(genai.Blob)
	if !ok || blob.MIMEType != "image/jpeg" {
		t.Fatalf("unexpected image part %#v", model.parts[1])
	}
}

func TestGenerateWithoutKeyframeSendsTextOnly(t *testing.T) {
	model := &fakeModel{resp: textResponse(`{"description":"Nada."}`)}
	gen := &Generator{model: model, logger: logging.NewNop()}
	if _, err := gen.Generate(context.Background(), sceneContext(nil)); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(model.parts) != 1 {
		t.Fatalf("expected text part only, got %d", len(model.parts))
	}
}

func TestGenerateClassifiesErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		resp      *genai.GenerateContentResponse
		retryable bool
	}{
		{"unavailable", status.Error(codes.Unavailable, "busy"), nil, true},
		{"quota", status.Error(codes.ResourceExhausted, "quota"), nil, true},
		{"unauthenticated", status.Error(codes.Unauthenticated, "bad key"), nil, false},
		{"invalid", status.Error(codes.InvalidArgument, "bad image"), nil, false},
		{"blocked", &genai.BlockedError{}, nil, false},
		{"empty", nil, &genai.GenerateContentResponse{}, true},
		{"not json", nil, textResponse("sorry"), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gen := &Generator{model: &fakeModel{resp: tc.resp, err: tc.err}, logger: logging.NewNop()}
			_, err := gen.Generate(context.Background(), sceneContext(nil))
			if err == nil {
				t.Fatal("expected error")
			}
			if services.Retryable(err) != tc.retryable {
				t.Fatalf("retryable=%v want %v: %v", services.Retryable(err), tc.retryable, err)
			}
		})
	}
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

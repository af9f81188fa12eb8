package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"adscribe/internal/scene"
	"adscribe/internal/schedule"
	"adscribe/internal/services"
	"adscribe/internal/silence"
)

func replyWith(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"content": content}},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}
}

func sceneContext() schedule.SceneContext {
	return schedule.SceneContext{
		Index:    0,
		Scene:    scene.Interval{Start: 0, End: 4},
		Window:   silence.Interval{Start: 0.5, End: 3.5},
		Keyframe: []byte{0xff, 0xd8, 0xff},
		Language: "es",
		Style:    schedule.StyleNeutral,
		MaxWords: 9,
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(replyWith(t, "```json\n{\"ok\":true}\n```"))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestGeneratorSendsKeyframeAndParsesDescription(t *testing.T) {
	var captured struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if got := r.Header.Get("X-Title"); got != "adscribe" {
			t.Errorf("unexpected title header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		replyWith(t, `Sure: {"description": "  Una mujer abre   la puerta. "}`)(w, r)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Model: "vision", Title: "adscribe"})
	text, err := NewGenerator(client, nil).Generate(context.Background(), sceneContext())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "Una mujer abre la puerta." {
		t.Fatalf("unexpected text %q", text)
	}
	if captured.Model != "vision" || len(captured.Messages) != 2 {
		t.Fatalf("unexpected request: %+v", captured)
	}
	var parts []contentPart
	if err := json.Unmarshal(captured.Messages[1].Content, &parts); err != nil {
		t.Fatalf("user content should be parts: %v", err)
	}
	if len(parts) != 2 || parts[1].ImageURL == nil || !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/jpeg;base64,") {
		t.Fatalf("keyframe not attached: %+v", parts)
	}
	if !strings.Contains(parts[0].Text, "at most 9 words") || !strings.Contains(parts[0].Text, "español") {
		t.Fatalf("prompt missing budget or language: %q", parts[0].Text)
	}
}

func TestClientClassifiesFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
		code      string
	}{
		{"unauthorized", http.StatusUnauthorized, false, services.CodeMissingCredentials},
		{"bad request", http.StatusBadRequest, false, "request_rejected"},
		{"rate limited", http.StatusTooManyRequests, true, "http_status"},
		{"server error", http.StatusBadGateway, true, "http_status"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "2")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			defer server.Close()

			client := NewClient(Config{APIKey: "key", BaseURL: server.URL})
			_, err := client.CompleteJSON(context.Background(), "sys", "user", nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if services.Retryable(err) != tc.retryable {
				t.Fatalf("retryable=%v want %v (%v)", services.Retryable(err), tc.retryable, err)
			}
			if code, _ := services.Details(err); code != tc.code {
				t.Fatalf("code=%q want %q", code, tc.code)
			}
			if services.RetryAfter(err) != 2*time.Second {
				t.Fatalf("expected Retry-After hint, got %v", services.RetryAfter(err))
			}
		})
	}
}

func TestGeneratorRetriesEmptyContentUnderPolicy(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			replyWith(t, "")(w, r)
			return
		}
		replyWith(t, `{"description":"Un hombre corre."}`)(w, r)
	}))
	defer server.Close()

	gen := NewGenerator(NewClient(Config{APIKey: "key", BaseURL: server.URL}), nil)
	policy := services.RetryPolicy{Attempts: 3, Sleep: func(context.Context, time.Duration) error { return nil }}
	text, err := services.RetryValue(context.Background(), policy, func(ctx context.Context) (string, error) {
		return gen.Generate(ctx, sceneContext())
	})
	if err != nil || text != "Un hombre corre." {
		t.Fatalf("text=%q err=%v", text, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{}).CompleteJSON(context.Background(), "sys", "user", nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if code, _ := services.Details(err); code != services.CodeMissingCredentials {
		t.Fatalf("unexpected code %q", code)
	}
}

func TestDecodeLLMJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{"plain", `{"description":"a"}`, "a", false},
		{"fenced", "```json\n{\"description\":\"b\"}\n```", "b", false},
		{"prose", `Here you go {"description":"c"} done`, "c", false},
		{"empty", "  ", "", true},
		{"garbage", "no json here", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var reply descriptionReply
			err := DecodeLLMJSON(tc.content, &reply)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tc.wantErr)
			}
			if reply.Description != tc.want {
				t.Fatalf("got %q want %q", reply.Description, tc.want)
			}
		})
	}
}

func TestDescriptionPromptsStyle(t *testing.T) {
	sc := sceneContext()
	sc.Style = schedule.StyleDetailed
	system, user := DescriptionPrompts(sc)
	if !strings.Contains(system, `{"description"`) {
		t.Fatalf("system prompt must request JSON: %q", system)
	}
	if !strings.Contains(user, "clothing") {
		t.Fatalf("detailed style not reflected: %q", user)
	}
}

package tts

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"adscribe/internal/compose"
	"adscribe/internal/services"
)

// OpenAIConfig selects the speech endpoint and model.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAI renders speech with the OpenAI audio speech API.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI builds the engine. Retries are left to the caller's policy.
func NewOpenAI(cfg OpenAIConfig, opts ...option.RequestOption) (*OpenAI, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, services.New(services.KindValidation, "tts", services.CodeMissingCredentials, "openai api key not configured")
	}
	clientOpts := []option.RequestOption{option.WithAPIKey(key), option.WithMaxRetries(0)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(base))
	}
	clientOpts = append(clientOpts, opts...)
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = string(openai.SpeechModelTTS1)
	}
	return &OpenAI{client: openai.NewClient(clientOpts...), model: model}, nil
}

// Name implements Engine.
func (o *OpenAI) Name() string { return "openai" }

// Render implements Engine.
func (o *OpenAI) Render(ctx context.Context, text string, voice compose.Voice, dest string) error {
	params := openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(o.model),
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(voice.Name),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatWAV,
	}
	if voice.Speed > 0 {
		params.Speed = openai.Float(voice.Speed)
	}
	resp, err := o.client.Audio.Speech.New(ctx, params)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return classifyOpenAI(err)
	}
	defer resp.Body.Close()

	out, err := os.Create(dest)
	if err != nil {
		return services.Wrap(services.KindSystem, "tts", "", "create clip file", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		return services.Wrap(services.KindAIService, "tts", "transport", "read speech body", err)
	}
	if err := out.Close(); err != nil {
		return services.Wrap(services.KindSystem, "tts", "", "close clip file", err)
	}
	return nil
}

func classifyOpenAI(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized, apiErr.StatusCode == http.StatusForbidden:
			return services.Wrap(services.KindValidation, "tts", services.CodeMissingCredentials, "credentials rejected", err)
		case apiErr.StatusCode == http.StatusTooManyRequests, apiErr.StatusCode >= http.StatusInternalServerError:
			return services.Wrap(services.KindAIService, "tts", "http_status", "transient upstream failure", err)
		default:
			return services.Wrap(services.KindValidation, "tts", "request_rejected", "speech request rejected", err)
		}
	}
	return services.Wrap(services.KindAIService, "tts", "transport", "speech request failed", err)
}

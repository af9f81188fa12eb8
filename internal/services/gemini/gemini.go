package gemini

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"adscribe/internal/logging"
	"adscribe/internal/schedule"
	"adscribe/internal/services"
	"adscribe/internal/services/llm"
)

const (
	component    = "gemini"
	defaultModel = "gemini-1.5-flash"
)

// Config selects the key and model.
type Config struct {
	APIKey string
	Model  string
}

// contentGenerator is the subset of *genai.GenerativeModel used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Generator implements schedule.DescriptionGenerator on Gemini.
type Generator struct {
	client *genai.Client
	model  contentGenerator
	logger *slog.Logger
}

// New dials the Gemini API. Close releases the client.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Generator, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, services.New(services.KindValidation, component, services.CodeMissingCredentials, "gemini api key not configured")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, services.Wrap(services.KindAIService, component, "", "create client", err)
	}
	name := strings.TrimSpace(cfg.Model)
	if name == "" {
		name = defaultModel
	}
	model := client.GenerativeModel(name)
	configureModel(model)
	return &Generator{client: client, model: model, logger: logging.NewComponentLogger(logger, component)}, nil
}

func configureModel(model *genai.GenerativeModel) {
	model.SetTemperature(0.2)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"description": {Type: genai.TypeString},
		},
		Required: []string{"description"},
	}
}

// Close releases the underlying client.
func (g *Generator) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Close()
}

// Generate implements schedule.DescriptionGenerator.
func (g *Generator) Generate(ctx context.Context, sc schedule.SceneContext) (string, error) {
	system, user := llm.DescriptionPrompts(sc)
	parts := []genai.Part{genai.Text(system + "\n\n" + user)}
	if len(sc.Keyframe) > 0 {
		parts = append(parts, genai.ImageData("jpeg", sc.Keyframe))
	}
	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", classify(err)
	}
	content := responseText(resp)
	if content == "" {
		return "", services.New(services.KindAIService, component, "empty_content", "no text in reply")
	}
	var reply struct {
		Description string `json:"description"`
	}
	if err := llm.DecodeLLMJSON(content, &reply); err != nil {
		return "", services.Wrap(services.KindAIService, component, "bad_reply", "parse description", err)
	}
	text := strings.Join(strings.Fields(reply.Description), " ")
	g.logger.DebugContext(ctx, "description generated",
		logging.Int("scene_index", sc.Index),
		logging.Int("words", len(strings.Fields(text))),
	)
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		if b.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

func classify(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return services.Wrap(services.KindValidation, component, "blocked", "prompt or reply blocked by safety filters", err)
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unauthenticated, codes.PermissionDenied:
			return services.Wrap(services.KindValidation, component, services.CodeMissingCredentials, "credentials rejected", err)
		case codes.InvalidArgument, codes.NotFound, codes.FailedPrecondition:
			return services.Wrap(services.KindValidation, component, "request_rejected", "request rejected", err)
		}
	}
	return services.Wrap(services.KindAIService, component, "", "generate content", err)
}

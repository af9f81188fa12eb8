package llm

import (
	"context"
	"log/slog"
	"strings"

	"adscribe/internal/logging"
	"adscribe/internal/schedule"
	"adscribe/internal/services"
)

// Generator produces scene descriptions through a Client.
type Generator struct {
	client *Client
	logger *slog.Logger
}

// NewGenerator wraps client as a schedule.DescriptionGenerator.
func NewGenerator(client *Client, logger *slog.Logger) *Generator {
	return &Generator{client: client, logger: logging.NewComponentLogger(logger, "llm")}
}

type descriptionReply struct {
	Description string `json:"description"`
}

// Generate implements schedule.DescriptionGenerator.
func (g *Generator) Generate(ctx context.Context, sc schedule.SceneContext) (string, error) {
	system, user := DescriptionPrompts(sc)
	content, err := g.client.CompleteJSON(ctx, system, user, sc.Keyframe)
	if err != nil {
		return "", err
	}
	var reply descriptionReply
	if err := DecodeLLMJSON(content, &reply); err != nil {
		return "", services.Wrap(services.KindAIService, component, "bad_reply", "parse description", err)
	}
	text := strings.Join(strings.Fields(reply.Description), " ")
	g.logger.DebugContext(ctx, "description generated",
		logging.Int("scene_index", sc.Index),
		logging.Int("words", len(strings.Fields(text))),
		logging.Int("max_words", sc.MaxWords),
	)
	return text, nil
}

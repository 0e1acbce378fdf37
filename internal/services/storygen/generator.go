// Package storygen turns meeting transcripts into user stories using the
// LLM client. When the model is unreachable or returns garbage the
// generator falls back to a stock story set so the pipeline can still
// produce a project.
package storygen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"loom/internal/logging"
	"loom/internal/services"
	"loom/internal/services/llm"
	"loom/internal/stories"
)

const systemPrompt = `You are a product analyst. Given a meeting transcript, extract user stories describing the application the participants want built.

Respond with JSON only, in the shape:
{"stories": ["As a user, I want to ...", ...]}

Each story must follow the form "As a <actor>, I want <action> so that <benefit>". Extract between 3 and 8 stories. Do not invent features that were not discussed.`

// FallbackStories returns the stock story set used when the model cannot
// produce usable stories.
func FallbackStories() []stories.UserStory {
	return stories.ParseAll([]string{
		"As a user, I want to create new todo tasks so that I can track my work.",
		"As a user, I want to view all my tasks so that I can see what needs to be done.",
		"As a user, I want to mark tasks as complete so that I can track my progress.",
		"As a user, I want to delete tasks so that I can remove items I no longer need.",
	})
}

// Generator produces user stories from transcripts.
type Generator struct {
	client *llm.Client
	logger *slog.Logger
}

// NewGenerator constructs a Generator. The client must be configured
// before Generate is called; the fallback stories cover model failures,
// not a missing client.
func NewGenerator(client *llm.Client, logger *slog.Logger) *Generator {
	return &Generator{
		client: client,
		logger: logging.NewComponentLogger(logger, "storygen"),
	}
}

// Generate extracts user stories from the transcript. An empty transcript
// or an unconfigured client is an error; model failures degrade to the
// fallback story set.
func (g *Generator) Generate(ctx context.Context, transcript string) ([]stories.UserStory, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, services.Wrap(services.ErrEmptyTranscript, "extracting_stories", "generate",
			"transcript is empty", nil)
	}

	if g.client == nil {
		return nil, services.Wrap(services.ErrConfiguration, "extracting_stories", "generate",
			"no model client configured", nil)
	}

	content, err := g.client.CompleteJSON(ctx, systemPrompt, transcript)
	if err != nil {
		if ctx.Err() != nil {
			return nil, services.Wrap(services.ErrTimeout, "extracting_stories", "generate",
				"story generation interrupted", ctx.Err())
		}
		g.logger.Warn("story generation failed, using fallback stories", logging.Error(err))
		return FallbackStories(), nil
	}

	var payload struct {
		Stories []string `json:"stories"`
	}
	if err := llm.DecodeLLMJSON(content, &payload); err != nil {
		g.logger.Warn("story payload unparseable, using fallback stories", logging.Error(err))
		return FallbackStories(), nil
	}

	parsed := stories.ParseAll(payload.Stories)
	wellFormed := parsed[:0]
	for _, story := range parsed {
		if story.WellFormed() {
			wellFormed = append(wellFormed, story)
		} else {
			g.logger.Debug("dropping malformed story", logging.String("text", story.Text))
		}
	}
	if len(wellFormed) == 0 {
		g.logger.Warn("model returned no well-formed stories, using fallback stories",
			logging.Int("raw", len(payload.Stories)))
		return FallbackStories(), nil
	}

	g.logger.Info("stories generated", logging.Int("count", len(wellFormed)))
	return wellFormed, nil
}

// HealthCheck verifies the model endpoint is reachable.
func (g *Generator) HealthCheck(ctx context.Context) error {
	if g.client == nil {
		return fmt.Errorf("storygen: no model configured")
	}
	return g.client.HealthCheck(ctx)
}

package content

import (
	"context"
	"errors"

	"github.com/angelmondragon/puppytalk-backend/internal/notifications"
	"github.com/angelmondragon/puppytalk-backend/pkg/db/models"
	"github.com/angelmondragon/puppytalk-backend/pkg/openai"
)

// GenerationInput is everything a generator may use to write a message.
type GenerationInput struct {
	Candidate notifications.Candidate
	Pet       *models.Pet
	Persona   *models.Persona
	History   []models.ChatMessage
}

// Generator writes the body of an inactivity notification.
type Generator interface {
	Generate(ctx context.Context, input GenerationInput) (string, error)
}

type completer interface {
	Complete(ctx context.Context, req openai.ChatRequest) (string, error)
}

// OpenAIGenerator asks a chat completion model to speak as the pet.
type OpenAIGenerator struct {
	client      completer
	model       string
	maxTokens   int
	temperature float64
}

// NewOpenAIGenerator builds a generator over the chat completions client.
func NewOpenAIGenerator(client completer, model string, maxTokens int, temperature float64) (*OpenAIGenerator, error) {
	if client == nil {
		return nil, errors.New("openai client required")
	}
	if model == "" {
		return nil, errors.New("model required")
	}
	return &OpenAIGenerator{
		client:      client,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, input GenerationInput) (string, error) {
	return g.client.Complete(ctx, openai.ChatRequest{
		Model:       g.model,
		Messages:    BuildPrompt(input),
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
}

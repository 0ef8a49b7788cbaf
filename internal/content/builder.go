package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/puppytalk-backend/internal/notifications"
	"github.com/angelmondragon/puppytalk-backend/pkg/logger"
	"github.com/angelmondragon/puppytalk-backend/pkg/metrics"
)

const (
	defaultTitle     = "Your pet misses you! 🐾"
	titleTemplate    = "%s misses you! 🐾"
	defaultMaxLength = 100
)

type contextLoader interface {
	Load(ctx context.Context, userID uuid.UUID, chatRoomID *uuid.UUID) (PetContext, error)
}

// BuilderParams configures a Builder.
type BuilderParams struct {
	Loader    contextLoader
	Generator Generator
	// MaxLength caps title and body in runes.
	MaxLength int
	Timeout   time.Duration
	Metrics   *metrics.PipelineMetrics
	Logger    *logger.Logger
}

// Builder renders the title and body of inactivity notifications.
type Builder struct {
	loader    contextLoader
	generator Generator
	maxLength int
	timeout   time.Duration
	metrics   *metrics.PipelineMetrics
	logg      *logger.Logger
}

// NewBuilder validates params. A nil generator always uses the fallback pool.
func NewBuilder(params BuilderParams) (*Builder, error) {
	if params.Loader == nil {
		return nil, errors.New("content loader required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	maxLength := params.MaxLength
	if maxLength <= 3 {
		maxLength = defaultMaxLength
	}
	return &Builder{
		loader:    params.Loader,
		generator: params.Generator,
		maxLength: maxLength,
		timeout:   params.Timeout,
		metrics:   params.Metrics,
		logg:      params.Logger,
	}, nil
}

// Build never fails. Missing context or a failed generation falls back to a
// pool message.
func (b *Builder) Build(ctx context.Context, candidate notifications.Candidate) notifications.Content {
	logCtx := b.logg.WithUserID(ctx, candidate.UserID.String())

	petCtx, err := b.loader.Load(ctx, candidate.UserID, candidate.ChatRoomID)
	if err != nil {
		b.logg.Warn(b.logg.WithField(logCtx, "error", err.Error()), "content.context_unavailable")
	}

	title := defaultTitle
	if petCtx.Pet != nil && strings.TrimSpace(petCtx.Pet.Name) != "" {
		title = fmt.Sprintf(titleTemplate, strings.TrimSpace(petCtx.Pet.Name))
	}

	body := ""
	if err == nil {
		body = b.generate(ctx, logCtx, GenerationInput{
			Candidate: candidate,
			Pet:       petCtx.Pet,
			Persona:   petCtx.Persona,
			History:   petCtx.History,
		})
	}
	if body == "" {
		body = fallbackMessage(candidate)
		b.metrics.IncContent(metrics.ContentSourceFallback)
	} else {
		b.metrics.IncContent(metrics.ContentSourceAI)
	}

	return notifications.Content{
		Title: truncate(title, b.maxLength),
		Body:  truncate(body, b.maxLength),
	}
}

// generate returns "" on any failure, including a panicking generator, so the
// caller falls back to the pool.
func (b *Builder) generate(ctx context.Context, logCtx context.Context, input GenerationInput) (text string) {
	if b.generator == nil {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			b.logg.Warn(b.logg.WithField(logCtx, "error", fmt.Sprintf("generator panic: %v", r)), "content.generation_failed")
			text = ""
		}
	}()
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	text, err := b.generator.Generate(ctx, input)
	if err != nil {
		b.logg.Warn(b.logg.WithField(logCtx, "error", err.Error()), "content.generation_failed")
		return ""
	}
	text = strings.TrimSpace(text)
	if text == "" {
		b.logg.Warn(logCtx, "content.generation_empty")
	}
	return text
}

package content

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/angelmondragon/puppytalk-backend/internal/notifications"
	"github.com/angelmondragon/puppytalk-backend/pkg/db/models"
	"github.com/angelmondragon/puppytalk-backend/pkg/enums"
	"github.com/angelmondragon/puppytalk-backend/pkg/logger"
)

type stubLoader struct {
	ctx PetContext
	err error
}

func (s stubLoader) Load(context.Context, uuid.UUID, *uuid.UUID) (PetContext, error) {
	return s.ctx, s.err
}

type stubGenerator struct {
	text   string
	err    error
	block  bool
	panics bool
	inputs []GenerationInput
}

func (s *stubGenerator) Generate(ctx context.Context, input GenerationInput) (string, error) {
	s.inputs = append(s.inputs, input)
	if s.panics {
		panic("provider sdk blew up")
	}
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.text, s.err
}

func testCandidate() notifications.Candidate {
	idleSince := time.Date(2026, 2, 27, 12, 0, 0, 0, time.UTC)
	return notifications.Candidate{
		UserID:       uuid.MustParse("6f1c2a1e-9a43-4c1b-9d0c-6b0a4e9f1a01"),
		Reason:       enums.CandidateReasonUserInactive,
		IdleSince:    idleSince,
		IdleDuration: 48 * time.Hour,
	}
}

func newTestBuilder(t *testing.T, loader contextLoader, gen Generator) *Builder {
	t.Helper()
	builder, err := NewBuilder(BuilderParams{
		Loader:    loader,
		Generator: gen,
		MaxLength: 100,
		Timeout:   50 * time.Millisecond,
		Logger:    logger.Nop(),
	})
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	return builder
}

var biscuit = &models.Pet{ID: uuid.New(), Name: "Biscuit", Breed: "Corgi", Age: 3}

func TestBuildUsesGeneratedText(t *testing.T) {
	gen := &stubGenerator{text: "  Woof! I saved you a spot on the couch 🐶  "}
	builder := newTestBuilder(t, stubLoader{ctx: PetContext{Pet: biscuit}}, gen)

	content := builder.Build(context.Background(), testCandidate())
	if content.Title != "Biscuit misses you! 🐾" {
		t.Fatalf("unexpected title %q", content.Title)
	}
	if content.Body != "Woof! I saved you a spot on the couch 🐶" {
		t.Fatalf("unexpected body %q", content.Body)
	}
	if len(gen.inputs) != 1 || gen.inputs[0].Pet != biscuit {
		t.Fatalf("expected generator to receive pet context")
	}
}

func TestBuildFallsBackOnFailure(t *testing.T) {
	cases := map[string]*stubGenerator{
		"error":   {err: errors.New("upstream 500")},
		"empty":   {text: "   "},
		"timeout": {block: true},
		"panic":   {panics: true},
	}
	for name, gen := range cases {
		t.Run(name, func(t *testing.T) {
			builder := newTestBuilder(t, stubLoader{ctx: PetContext{Pet: biscuit}}, gen)
			content := builder.Build(context.Background(), testCandidate())
			if content.IsEmpty() {
				t.Fatalf("expected non-empty content")
			}
			if content.Body != fallbackMessage(testCandidate()) {
				t.Fatalf("expected fallback body, got %q", content.Body)
			}
		})
	}
}

func TestBuildWithoutPetOrGenerator(t *testing.T) {
	builder := newTestBuilder(t, stubLoader{}, nil)
	content := builder.Build(context.Background(), testCandidate())
	if content.Title != defaultTitle {
		t.Fatalf("unexpected title %q", content.Title)
	}
	if content.Body == "" {
		t.Fatalf("expected fallback body")
	}
}

func TestBuildLoaderFailureSkipsGenerator(t *testing.T) {
	gen := &stubGenerator{text: "hello"}
	builder := newTestBuilder(t, stubLoader{err: errors.New("db down")}, gen)
	content := builder.Build(context.Background(), testCandidate())
	if content.IsEmpty() {
		t.Fatalf("expected non-empty content")
	}
	if len(gen.inputs) != 0 {
		t.Fatalf("generator should not run without context")
	}
}

func TestBuildTruncatesLongText(t *testing.T) {
	long := strings.Repeat("멍", 150)
	builder := newTestBuilder(t, stubLoader{ctx: PetContext{Pet: &models.Pet{Name: strings.Repeat("B", 120)}}}, &stubGenerator{text: long})
	content := builder.Build(context.Background(), testCandidate())

	if got := utf8.RuneCountInString(content.Body); got != 100 {
		t.Fatalf("expected 100 runes, got %d", got)
	}
	if !strings.HasSuffix(content.Body, "...") || !strings.HasPrefix(content.Body, strings.Repeat("멍", 97)) {
		t.Fatalf("unexpected truncation %q", content.Body)
	}
	if got := utf8.RuneCountInString(content.Title); got != 100 {
		t.Fatalf("expected truncated title, got %d runes", got)
	}
}

func TestFallbackMessageIsDeterministic(t *testing.T) {
	c := testCandidate()
	first := fallbackMessage(c)
	for i := 0; i < 5; i++ {
		if got := fallbackMessage(c); got != first {
			t.Fatalf("fallback changed between calls: %q vs %q", first, got)
		}
	}

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		c.IdleSince = c.IdleSince.Add(time.Hour)
		seen[fallbackMessage(c)] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected fallback pool to vary across windows")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	if got := truncate("exactly10!", 10); got != "exactly10!" {
		t.Fatalf("unexpected %q", got)
	}
	if got := truncate("this is too long", 10); got != "this is..." {
		t.Fatalf("unexpected %q", got)
	}
}

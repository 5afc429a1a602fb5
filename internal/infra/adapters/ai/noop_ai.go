package ai

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"coldmail-copywriter/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)

var followUpsRequestedRe = regexp.MustCompile(`Follow-ups requested: (\d+)`)

// NoopAIAdapter answers every chat with a canned, well-formed sequence.
// It lets the pipeline run locally without a provider key.
type NoopAIAdapter struct {
	log   zerolog.Logger
	delay time.Duration
}

func NewNoopAIAdapter(logger *zerolog.Logger) *NoopAIAdapter {
	return &NoopAIAdapter{
		log:   logger.With().Str("component", "NoopAI").Logger(),
		delay: 100 * time.Millisecond,
	}
}

func (a *NoopAIAdapter) Name() string { return "noop" }

func (a *NoopAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{"noop-ai-model"}, nil
}

// CountTokens approximates one token per four characters.
func (a *NoopAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	n := 0
	for _, m := range messages {
		n += len(m.Content)/4 + 1
	}
	return n, nil
}

func (a *NoopAIAdapter) ChatWithUsage(ctx context.Context, model, requestID string, messages []adapter.Message) (string, adapter.Usage, error) {
	select {
	case <-time.After(a.delay):
	case <-ctx.Done():
		return "", adapter.Usage{}, ctx.Err()
	}
	prompt := ""
	if len(messages) > 0 {
		prompt = messages[len(messages)-1].Content
	}
	followUps := 0
	if m := followUpsRequestedRe.FindStringSubmatch(prompt); m != nil {
		followUps, _ = strconv.Atoi(m[1])
	}
	a.log.Debug().Str("request_id", requestID).Int("follow_ups", followUps).Msg("noop completion")

	text := cannedSequence(followUps)
	in, _ := a.CountTokens(ctx, model, messages)
	out := len(text)/4 + 1
	return text, adapter.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}, nil
}

func cannedSequence(followUps int) string {
	var b strings.Builder
	b.WriteString("Type: Initial | Subject: A quick idea\n\nHi there,\n")
	b.WriteString("I came across your team while reading about your recent work.\n\n")
	b.WriteString("Teams at your stage often lose hours every week to manual research.\n\n")
	b.WriteString("We help reps start every call with the right context. Open to a short chat?")
	for i := 1; i <= followUps; i++ {
		fmt.Fprintf(&b, "\n\nType: Follow-up %d | Subject: Following up (%d)\n\nHi there,\n", i, i)
		b.WriteString("Just bringing this back to the top of your inbox.\n\nWorth a look?")
	}
	return b.String()
}

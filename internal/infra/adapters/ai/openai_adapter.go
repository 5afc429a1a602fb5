package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkoukk/tiktoken-go"

	"coldmail-copywriter/internal/domain"
	"coldmail-copywriter/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIServiceAdapter = (*OpenAIAdapter)(nil)

const (
	defaultOpenAIModel = "deepseek-chat"
	// tokens added per message by the chat format
	tokensPerMessage = 3
)

// OpenAIAdapter talks to any OpenAI-compatible Chat Completions endpoint
// (DeepSeek by default).
type OpenAIAdapter struct {
	client      openai.Client
	model       string
	temperature float64

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
}

func NewOpenAIAdapter(apiKey, baseURL, model string, temperature float64) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// retries belong to the completion client
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIAdapter{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: temperature,
	}, nil
}

func (o *OpenAIAdapter) Name() string { return "openai" }

func (o *OpenAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	page, err := o.client.Models.List(ctx)
	if err != nil {
		return []string{o.model}, mapOpenAIError(err)
	}
	out := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		out = append(out, m.ID)
	}
	if len(out) == 0 {
		out = append(out, o.model)
	}
	return out, nil
}

// CountTokens uses the cl100k family as an approximation for non-OpenAI models.
func (o *OpenAIAdapter) CountTokens(_ context.Context, model string, messages []adapter.Message) (int, error) {
	enc, err := o.encoding(modelOrDefault(model, o.model))
	if err != nil {
		return 0, err
	}
	n := 3 // reply priming
	for _, m := range messages {
		n += tokensPerMessage
		n += len(enc.Encode(m.Role, nil, nil))
		n += len(enc.Encode(m.Content, nil, nil))
	}
	return n, nil
}

func (o *OpenAIAdapter) encoding(model string) (*tiktoken.Tiktoken, error) {
	o.encOnce.Do(func() {
		o.enc, o.encErr = tiktoken.EncodingForModel(model)
		if o.encErr != nil {
			o.enc, o.encErr = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		}
	})
	return o.enc, o.encErr
}

func (o *OpenAIAdapter) ChatWithUsage(ctx context.Context, model, requestID string, messages []adapter.Message) (string, adapter.Usage, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(modelOrDefault(model, o.model)),
		Messages:    toOpenAIMessages(messages),
		Temperature: openai.Float(o.temperature),
	}
	var reqOpts []option.RequestOption
	if requestID != "" {
		reqOpts = append(reqOpts, option.WithHeader("X-Request-Id", requestID))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params, reqOpts...)
	if err != nil {
		return "", adapter.Usage{}, mapOpenAIError(err)
	}

	u := adapter.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	for _, c := range resp.Choices {
		if strings.TrimSpace(c.Message.Content) != "" {
			return c.Message.Content, u, nil
		}
	}
	return "", u, domain.ErrEmptyCompletion
}

func toOpenAIMessages(msgs []adapter.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// mapOpenAIError keeps the HTTP status so the completion client can classify it.
func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := strings.TrimSpace(apiErr.Message)
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return &domain.ProviderError{Provider: "openai", StatusCode: apiErr.StatusCode, Err: errors.New(msg)}
	}
	return err
}

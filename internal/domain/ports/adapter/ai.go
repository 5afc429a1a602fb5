package adapter

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Usage for a single chat call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// AIServiceAdapter is the port for LLM providers.
type AIServiceAdapter interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	ListModels(ctx context.Context) ([]string, error)

	// CountTokens returns prompt tokens for the provided messages
	// (best-effort when exact counting isn't available).
	CountTokens(ctx context.Context, model string, messages []Message) (int, error)

	// ChatWithUsage returns assistant text + usage as reported by the provider.
	// requestID is forwarded to the provider when it supports correlation headers.
	ChatWithUsage(ctx context.Context, model, requestID string, messages []Message) (string, Usage, error)
}

// CompletionClient turns a prompt into raw model text, retrying transient failures.
type CompletionClient interface {
	Generate(ctx context.Context, prompt, requestID string) (string, error)
}

package llm

import (
	"context"
	"errors"
	"strings"

	"nutrilanka/internal/shared"
)

// ErrRateLimited is returned when the provider rejects a call with 429 or
// RESOURCE_EXHAUSTED. Callers may retry after a backoff.
var ErrRateLimited = errors.New("llm rate limited")

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   shared.TokenUsage
}

// TextGenerator is an interface for generating text from a prompt.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (ContentResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}

// Client is a TextGenerator holding resources that must be released.
type Client interface {
	TextGenerator
	Closer
}

// StripCodeFence removes a surrounding ```json ... ``` (or bare ```) fence
// that models often wrap JSON answers in.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func isRateLimitMessage(msg string) bool {
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

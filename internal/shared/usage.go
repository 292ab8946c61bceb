// Package shared holds the model usage types every model-backed component
// reports.
package shared

import (
	"time"
)

// ContextBloatTokens is the prompt size above which a call is logged as
// bloated.
const ContextBloatTokens = 4000

// TokenUsage tracks the tokens consumed by a request.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// Total returns TotalTokens, or prompt plus completion when the provider
// did not report a total.
func (u TokenUsage) Total() int {
	if u.TotalTokens > 0 {
		return u.TotalTokens
	}
	return u.PromptTokens + u.CompletionTokens
}

// Bloated reports whether the prompt exceeded ContextBloatTokens.
func (u TokenUsage) Bloated() bool {
	return u.PromptTokens > ContextBloatTokens
}

// AgentMeta holds operational metadata for one model call.
type AgentMeta struct {
	AgentName string
	Usage     TokenUsage
	Latency   time.Duration
}

// Sum adds up the usage of several calls, e.g. the retries of one plan.
// Model is taken from the last call that reported one.
func Sum(metas []AgentMeta) TokenUsage {
	var total TokenUsage
	for _, m := range metas {
		total.PromptTokens += m.Usage.PromptTokens
		total.CompletionTokens += m.Usage.CompletionTokens
		total.TotalTokens += m.Usage.Total()
		if m.Usage.Model != "" {
			total.Model = m.Usage.Model
		}
	}
	return total
}

// Package tips generates the five daily health tips shown by the clients.
package tips

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"nutrilanka/internal/llm"
	"nutrilanka/internal/shared"
)

// SystemPrompt instructs the model to answer with a JSON object.
const SystemPrompt = "You are a helpful fitness and health assistant. Generate 5 distinct, concise, and motivating health/fitness tips for today. Focus on nutrition, exercise, sleep, or mindfulness. Return ONLY a JSON object with a 'tips' key containing a list of strings."

const userPrompt = "Give me 5 tips for today."

// Count is the number of tips in a day's set.
const Count = 5

// Fallback is served when the model is unavailable or answers badly.
var Fallback = []string{
	"Hydrate well throughout the day.",
	"Prioritize whole foods over processed snacks.",
	"Move your body for at least 30 minutes today.",
	"Practice mindful breathing to reduce stress.",
	"Limit screen time before bed for better sleep.",
}

// Generator produces tips and caches them for the calendar day.
type Generator struct {
	textGen llm.TextGenerator
	now     func() time.Time

	mu    sync.Mutex
	day   string
	cache []string
}

// NewGenerator creates a new Generator. textGen may be nil, in which case
// only the fallback tips are served.
func NewGenerator(textGen llm.TextGenerator) *Generator {
	return &Generator{textGen: textGen, now: time.Now}
}

// Daily returns today's tips. A model failure is logged and answered with
// the fallback list; the fallback is not cached so a later call retries.
func (g *Generator) Daily(ctx context.Context) ([]string, shared.AgentMeta) {
	meta := shared.AgentMeta{AgentName: "Tips"}
	today := g.now().Format(time.DateOnly)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.day == today && len(g.cache) > 0 {
		return append([]string(nil), g.cache...), meta
	}
	if g.textGen == nil {
		return append([]string(nil), Fallback...), meta
	}

	start := time.Now()
	resp, err := g.textGen.GenerateContent(ctx, userPrompt)
	meta.Usage = resp.Usage
	meta.Latency = time.Since(start)
	if err != nil {
		log.Printf("Error generating tips: %v", err)
		return append([]string(nil), Fallback...), meta
	}

	tips, err := decodeTips(resp.Content)
	if err != nil {
		log.Printf("Error decoding tips: %v", err)
		return append([]string(nil), Fallback...), meta
	}
	g.day, g.cache = today, tips
	return append([]string(nil), tips...), meta
}

// decodeTips accepts {"tips": [...]} or a bare list, optionally fenced.
func decodeTips(content string) ([]string, error) {
	raw := []byte(llm.StripCodeFence(content))

	var wrapped struct {
		Tips []string `json:"tips"`
	}
	var list []string
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Tips) > 0 {
		list = wrapped.Tips
	} else if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tips: %w", err)
	}

	tips := make([]string, 0, len(list))
	for _, t := range list {
		if t = strings.TrimSpace(t); t != "" {
			tips = append(tips, t)
		}
	}
	if len(tips) == 0 {
		return nil, fmt.Errorf("model returned no tips")
	}
	if len(tips) > Count {
		tips = tips[:Count]
	}
	return tips, nil
}

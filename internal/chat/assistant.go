// Package chat answers nutrition questions using the user's measurements,
// active meal plan, recent conversation and the knowledge base.
package chat

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"nutrilanka/internal/body"
	"nutrilanka/internal/knowledge"
	"nutrilanka/internal/llm"
	"nutrilanka/internal/mealplan"
	"nutrilanka/internal/planner"
	"nutrilanka/internal/shared"
)

//go:embed chat_prompt.md
var chatPrompt string

var promptTemplate = template.Must(template.New("Chat").Parse(chatPrompt))

const (
	measurementWindow = 5
	conversationLimit = 10
	contextEntries    = 3
)

// Assistant answers chat queries.
type Assistant struct {
	textGen      llm.TextGenerator
	history      *HistoryRepository
	measurements *body.MeasurementRepository
	plans        *planner.PlanRepository
	kb           *knowledge.Base
	now          func() time.Time
}

// NewAssistant creates a new Assistant.
func NewAssistant(
	textGen llm.TextGenerator,
	history *HistoryRepository,
	measurements *body.MeasurementRepository,
	plans *planner.PlanRepository,
	kb *knowledge.Base,
) *Assistant {
	return &Assistant{
		textGen:      textGen,
		history:      history,
		measurements: measurements,
		plans:        plans,
		kb:           kb,
		now:          time.Now,
	}
}

type promptData struct {
	UserHistory  string
	MealPlan     string
	Conversation string
	Context      string
	Question     string
}

// Reply saves the query, asks the model and saves its answer. The query is
// part of the conversation the model sees.
func (a *Assistant) Reply(ctx context.Context, userID, query string) (string, shared.AgentMeta, error) {
	meta := shared.AgentMeta{AgentName: "Chat"}
	query = strings.TrimSpace(query)
	if query == "" {
		return "", meta, fmt.Errorf("chat query is empty")
	}

	if err := a.history.Save(ctx, userID, Message{Text: query, IsUser: true, Timestamp: a.now()}); err != nil {
		return "", meta, err
	}

	data := promptData{Question: query}
	var err error
	if data.UserHistory, err = a.userHistory(ctx, userID); err != nil {
		return "", meta, err
	}
	if data.MealPlan, err = a.activeMealPlan(ctx, userID); err != nil {
		return "", meta, err
	}
	if data.Conversation, err = a.conversation(ctx, userID); err != nil {
		return "", meta, err
	}
	data.Context = a.retrieve(query)

	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, data); err != nil {
		return "", meta, fmt.Errorf("failed to build chat prompt: %w", err)
	}

	start := time.Now()
	resp, err := a.textGen.GenerateContent(ctx, buf.String())
	meta.Usage = resp.Usage
	meta.Latency = time.Since(start)
	if err != nil {
		return "", meta, fmt.Errorf("failed to generate chat reply: %w", err)
	}

	reply := strings.TrimSpace(resp.Content)
	if err := a.history.Save(ctx, userID, Message{Text: reply, IsUser: false, Timestamp: a.now()}); err != nil {
		return "", meta, err
	}
	return reply, meta, nil
}

// History returns the conversation in chronological order.
func (a *Assistant) History(ctx context.Context, userID string, limit int) ([]Message, error) {
	return a.history.Recent(ctx, userID, limit)
}

func (a *Assistant) userHistory(ctx context.Context, userID string) (string, error) {
	records, err := a.measurements.Recent(ctx, userID, measurementWindow)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "No historical measurement data available for this user.", nil
	}

	var sb strings.Builder
	sb.WriteString("User Measurement History (Most recent first):\n")
	for _, r := range records {
		fmt.Fprintf(&sb, "- Date: %s, Weight: %gkg, Waist: %gcm, BMI: %g\n",
			r.Date.Format(time.DateOnly), r.WeightKg, r.WaistCm, r.BMI)
	}
	return sb.String(), nil
}

func (a *Assistant) activeMealPlan(ctx context.Context, userID string) (string, error) {
	stored, err := a.plans.Active(ctx, userID)
	if err != nil {
		return "", err
	}
	if stored == nil {
		return "No active meal plan found.", nil
	}

	goal := stored.Plan.Goal
	if goal == "" {
		goal = "Unknown Goal"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Active Meal Plan (Goal: %s):\n", goal)

	day, ok := stored.Plan.MealPlan.Day(1)
	if !ok {
		return sb.String(), nil
	}
	fmt.Fprintf(&sb, "Sample Day (%s):\n", mealplan.DayKey(1))
	for _, slot := range mealplan.Slots {
		fmt.Fprintf(&sb, "- %s: %s\n", slotLabel(slot), mainText(day[slot]))
	}
	return sb.String(), nil
}

func (a *Assistant) conversation(ctx context.Context, userID string) (string, error) {
	messages, err := a.history.Recent(ctx, userID, conversationLimit)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role(), m.Text)
	}
	return sb.String(), nil
}

func (a *Assistant) retrieve(query string) string {
	entries := a.kb.Search(query, contextEntries)
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.Describe()
	}
	return strings.Join(lines, "\n\n")
}

// mainText renders the main branch of an entry, or "N/A".
func mainText(entry mealplan.MealEntry) string {
	if entry == nil {
		return "N/A"
	}
	items := mealplan.Parse(entry)
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.Name
	}
	return strings.Join(names, " + ")
}

func slotLabel(s mealplan.Slot) string {
	return s.Label()
}

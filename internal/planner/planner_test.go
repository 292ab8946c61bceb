package planner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"nutrilanka/internal/api"
	"nutrilanka/internal/body"
	"nutrilanka/internal/database"
	"nutrilanka/internal/knowledge"
	"nutrilanka/internal/llm"
	"nutrilanka/internal/mealplan"
	"nutrilanka/internal/shared"
)

const testKB = `
- type: meal_options
  filters: {gender: female, bmi_category: normal, meal_time: breakfast}
  options: ["Kiribath + lunu miris (Approx. Kiribath: ~100g piece)", "Oats + papaya"]
- type: meal_options
  filters: {gender: female, bmi_category: normal, meal_time: lunch}
  options: ["Red rice + fish curry"]
- type: bodytype_guidance
  filters: {somatotype: Ectomorph}
  options: ["Eat every 3 hours"]
- type: snack_options
  filters: {bmi_category: normal}
  options: ["Papaya"]
`

const twoDayPlan = "```json\n" + `{
	"meal_plan": {
		"day_1": {
			"breakfast": {"main": "Kiribath", "alternative": "Oats + papaya"},
			"lunch": {"main": "Red rice + fish curry", "alternative": "Red rice + dhal"},
			"dinner": {"main": "String hoppers", "alternative": "Roti"},
			"snacks": {"main": "Papaya", "alternative": "Yogurt"}
		},
		"day_2": {
			"breakfast": "Hoppers",
			"lunch": "Rice and curry",
			"dinner": "Pittu",
			"snacks": "Fruit"
		}
	},
	"advice": ["Eat every 3 hours"]
}` + "\n```"

// MockTextGenerator replays canned responses in order.
type MockTextGenerator struct {
	responses []mockResponse
	prompts   []string
}

type mockResponse struct {
	content string
	err     error
}

func (m *MockTextGenerator) GenerateContent(ctx context.Context, prompt string) (llm.ContentResponse, error) {
	m.prompts = append(m.prompts, prompt)
	if len(m.responses) == 0 {
		return llm.ContentResponse{}, fmt.Errorf("unexpected call")
	}
	r := m.responses[0]
	m.responses = m.responses[1:]
	if r.err != nil {
		return llm.ContentResponse{}, r.err
	}
	return llm.ContentResponse{
		Content: r.content,
		Usage:   shared.TokenUsage{PromptTokens: 100, CompletionTokens: 40, Model: "mock"},
	}, nil
}

func rateLimited() mockResponse {
	return mockResponse{err: fmt.Errorf("%w: 429 RESOURCE_EXHAUSTED", llm.ErrRateLimited)}
}

func newTestPlanner(t *testing.T, gen llm.TextGenerator) (*Planner, *[]time.Duration) {
	t.Helper()
	kb, err := knowledge.Parse([]byte(testKB))
	if err != nil {
		t.Fatalf("Failed to parse knowledge base: %v", err)
	}
	p := NewPlanner(kb, gen)
	var waits []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	p.now = func() time.Time { return time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC) }
	return p, &waits
}

var testProfile = api.Profile{Gender: "Female", BMICategory: body.Normal, Somatotype: "Ectomorph", Goal: "Weight Loss"}

func TestGeneratePlan(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		gen := &MockTextGenerator{responses: []mockResponse{{content: twoDayPlan}}}
		p, waits := newTestPlanner(t, gen)

		plan, metas, err := p.GeneratePlan(ctx, testProfile, 2)
		if err != nil {
			t.Fatalf("GeneratePlan failed: %v", err)
		}
		if len(metas) != 1 || metas[0].Usage.PromptTokens != 100 {
			t.Errorf("Expected 1 meta entry with usage, got %+v", metas)
		}
		if len(*waits) != 0 {
			t.Errorf("Expected no backoff, got %v", *waits)
		}
		if plan.Source != SourceAI || plan.Goal != "Weight Loss" {
			t.Errorf("Unexpected source/goal: %s/%s", plan.Source, plan.Goal)
		}
		if plan.MealPlan.Days() != 2 {
			t.Errorf("Expected 2 days, got %d", plan.MealPlan.Days())
		}
		if plan.CreatedAt.IsZero() {
			t.Error("Expected created_at to be set")
		}

		prompt := gen.prompts[0]
		for _, want := range []string{"Create a 2-day meal plan", "Gender: female", "Somatotype: Ectomorph", "Red rice + fish curry", "Eat every 3 hours", "Dietary Constraints: none"} {
			if !strings.Contains(prompt, want) {
				t.Errorf("Expected prompt to contain %q", want)
			}
		}
		if strings.Contains(prompt, "&#34;") {
			t.Error("Expected prompt options not to be HTML-escaped")
		}
	})

	t.Run("RetriesRateLimit", func(t *testing.T) {
		gen := &MockTextGenerator{responses: []mockResponse{rateLimited(), rateLimited(), {content: twoDayPlan}}}
		p, waits := newTestPlanner(t, gen)

		plan, metas, err := p.GeneratePlan(ctx, testProfile, 2)
		if err != nil {
			t.Fatalf("GeneratePlan failed: %v", err)
		}
		if plan.Source != SourceAI {
			t.Errorf("Expected AI plan after retries, got %s", plan.Source)
		}
		if len(metas) != 3 {
			t.Errorf("Expected 3 meta entries, got %d", len(metas))
		}
		if !slices.Equal(*waits, []time.Duration{5 * time.Second, 10 * time.Second}) {
			t.Errorf("Unexpected backoff: %v", *waits)
		}
	})

	t.Run("FallbackAfterRetries", func(t *testing.T) {
		gen := &MockTextGenerator{responses: []mockResponse{rateLimited(), rateLimited(), rateLimited()}}
		p, waits := newTestPlanner(t, gen)

		plan, _, err := p.GeneratePlan(ctx, testProfile, 3)
		if err != nil {
			t.Fatalf("GeneratePlan failed: %v", err)
		}
		if plan.Source != SourceFallback {
			t.Errorf("Expected fallback plan, got %s", plan.Source)
		}
		if plan.MealPlan.Days() != 3 {
			t.Errorf("Expected 3 days, got %d", plan.MealPlan.Days())
		}
		if !slices.Equal(*waits, []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}) {
			t.Errorf("Unexpected backoff: %v", *waits)
		}
	})

	t.Run("FallbackOnOtherError", func(t *testing.T) {
		gen := &MockTextGenerator{responses: []mockResponse{{err: errors.New("invalid argument")}}}
		p, waits := newTestPlanner(t, gen)

		plan, metas, err := p.GeneratePlan(ctx, testProfile, 1)
		if err != nil {
			t.Fatalf("GeneratePlan failed: %v", err)
		}
		if plan.Source != SourceFallback || len(metas) != 1 || len(*waits) != 0 {
			t.Errorf("Expected immediate fallback, got source=%s metas=%d waits=%v", plan.Source, len(metas), *waits)
		}
	})

	t.Run("FallbackOnBadJSON", func(t *testing.T) {
		gen := &MockTextGenerator{responses: []mockResponse{{content: "Sorry, I cannot help."}}}
		p, _ := newTestPlanner(t, gen)

		plan, _, err := p.GeneratePlan(ctx, testProfile, 1)
		if err != nil {
			t.Fatalf("GeneratePlan failed: %v", err)
		}
		if plan.Source != SourceFallback {
			t.Errorf("Expected fallback plan, got %s", plan.Source)
		}
	})

	t.Run("Canceled", func(t *testing.T) {
		gen := &MockTextGenerator{responses: []mockResponse{rateLimited()}}
		p, _ := newTestPlanner(t, gen)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, _, err := p.GeneratePlan(cctx, testProfile, 1); !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	})

	t.Run("InvalidDays", func(t *testing.T) {
		p, _ := newTestPlanner(t, &MockTextGenerator{})
		_, _, err := p.GeneratePlan(ctx, testProfile, 0)
		var verr *mealplan.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("Expected ValidationError, got %v", err)
		}
	})
}

func TestFallbackPlan(t *testing.T) {
	p, _ := newTestPlanner(t, nil)

	plan, metas, err := p.GeneratePlan(context.Background(), testProfile, 7)
	if err != nil {
		t.Fatalf("GeneratePlan failed: %v", err)
	}
	if metas != nil {
		t.Errorf("Expected no model calls, got %d", len(metas))
	}
	if err := plan.MealPlan.Validate(); err != nil {
		t.Fatalf("Expected valid plan, got %v", err)
	}
	if plan.MealPlan.Days() != 7 {
		t.Errorf("Expected 7 days, got %d", plan.MealPlan.Days())
	}

	state, _ := mealplan.Initialize(7)
	breakfastOptions := []string{"Kiribath + lunu miris (Approx. Kiribath: ~100g piece)", "Oats + papaya"}
	for day := 1; day <= 7; day++ {
		dayPlan, _ := plan.MealPlan.Day(day)
		for _, slot := range mealplan.Slots {
			if !mealplan.HasAlternative(dayPlan[slot]) {
				t.Errorf("Expected day %d %s to offer an alternative", day, slot)
			}
		}
		dish, err := mealplan.Resolve(plan.MealPlan, state, day, mealplan.Breakfast)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if !slices.Contains(breakfastOptions, string(dish.(mealplan.Text))) {
			t.Errorf("Expected breakfast from the knowledge base, got %v", dish)
		}
		dinner, _ := mealplan.Resolve(plan.MealPlan, mealplan.Toggle(state, day, mealplan.Dinner), day, mealplan.Dinner)
		if dinner != mealplan.Text("String hoppers") {
			t.Errorf("Expected default dinner alternative, got %v", dinner)
		}
	}

	if last := plan.Advice[len(plan.Advice)-1]; last != FallbackNote {
		t.Errorf("Expected fallback note last, got %q", last)
	}
	if plan.Advice[0] != "Eat every 3 hours" {
		t.Errorf("Expected guidance first, got %q", plan.Advice[0])
	}
}

func TestRepositories(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "plans.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	plans := NewPlanRepository(db.SQL)
	selections := NewSelectionRepository(db.SQL)

	active, err := plans.Active(ctx, "u1")
	if err != nil || active != nil {
		t.Fatalf("Expected no active plan, got %v (%v)", active, err)
	}

	p, _ := newTestPlanner(t, nil)
	first, _, _ := p.GeneratePlan(ctx, testProfile, 2)
	second, _, _ := p.GeneratePlan(ctx, testProfile, 3)

	storedFirst, err := plans.Save(ctx, "u1", first)
	if err != nil {
		t.Fatalf("Failed to save plan: %v", err)
	}
	storedSecond, err := plans.Save(ctx, "u1", second)
	if err != nil {
		t.Fatalf("Failed to save plan: %v", err)
	}
	if storedFirst.ID == storedSecond.ID {
		t.Error("Expected distinct plan IDs")
	}

	active, err = plans.Active(ctx, "u1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if active.ID != storedSecond.ID || active.Days() != 3 {
		t.Errorf("Expected latest plan to be active, got %s with %d days", active.ID, active.Days())
	}
	if active.Plan.Source != SourceFallback {
		t.Errorf("Expected stored source to survive, got %s", active.Plan.Source)
	}

	recent, err := plans.ListRecentByUserID(ctx, "u1", 5)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(recent) != 2 || recent[1].Active {
		t.Errorf("Expected 2 plans with only the latest active, got %+v", recent)
	}

	t.Run("InvalidPlan", func(t *testing.T) {
		if _, err := plans.Save(ctx, "u1", &mealplan.Generated{}); err == nil {
			t.Error("Expected an error for an empty plan")
		}
	})

	t.Run("Selections", func(t *testing.T) {
		state, err := selections.Load(ctx, "u1", active)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(state) != 3 || state.Selected(3, mealplan.Snacks) != mealplan.Main {
			t.Errorf("Expected fresh state for 3 days, got %v", state)
		}

		state = mealplan.Toggle(state, 2, mealplan.Lunch)
		if err := selections.Save(ctx, "u1", active.ID, state); err != nil {
			t.Fatalf("Failed to save selections: %v", err)
		}
		state = mealplan.Toggle(state, 2, mealplan.Dinner)
		if err := selections.Save(ctx, "u1", active.ID, state); err != nil {
			t.Fatalf("Failed to update selections: %v", err)
		}

		loaded, err := selections.Load(ctx, "u1", active)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if loaded.Selected(2, mealplan.Lunch) != mealplan.Alternative || loaded.Selected(2, mealplan.Dinner) != mealplan.Alternative {
			t.Errorf("Expected toggles to persist, got %v", loaded)
		}
		if loaded.Selected(1, mealplan.Lunch) != mealplan.Main {
			t.Error("Expected untouched slot to stay main")
		}
	})
}

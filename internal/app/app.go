// Package app wires the planner, repositories, chat assistant and metrics
// into the operations the Telegram bot, the web page and the CLI share.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"nutrilanka/internal/api"
	"nutrilanka/internal/body"
	"nutrilanka/internal/chat"
	"nutrilanka/internal/mealplan"
	"nutrilanka/internal/metrics"
	"nutrilanka/internal/planner"
	"nutrilanka/internal/shared"
	"nutrilanka/internal/shopping"
	"nutrilanka/internal/tips"
)

// ErrNoPlan is returned when the user has not generated a plan yet.
var ErrNoPlan = errors.New("no active meal plan")

// App holds the application's dependencies.
type App struct {
	mealPlanner  *planner.Planner
	plans        *planner.PlanRepository
	selections   *planner.SelectionRepository
	measurements *body.MeasurementRepository
	assistant    *chat.Assistant
	tipsGen      *tips.Generator
	metricsStore *metrics.Store
	planDays     int
	dataPath     string
	now          func() time.Time

	// selectionLocks serializes selection updates per user.
	selectionLocks sync.Map
}

// NewApp creates and initializes a new App instance. assistant may be nil
// when no chat model is configured.
func NewApp(
	mealPlanner *planner.Planner,
	plans *planner.PlanRepository,
	selections *planner.SelectionRepository,
	measurements *body.MeasurementRepository,
	assistant *chat.Assistant,
	tipsGen *tips.Generator,
	metricsStore *metrics.Store,
	planDays int,
	dataPath string,
) *App {
	return &App{
		mealPlanner:  mealPlanner,
		plans:        plans,
		selections:   selections,
		measurements: measurements,
		assistant:    assistant,
		tipsGen:      tipsGen,
		metricsStore: metricsStore,
		planDays:     planDays,
		dataPath:     dataPath,
		now:          time.Now,
	}
}

// PlanDays is the length of generated plans.
func (a *App) PlanDays() int {
	return a.planDays
}

// SaveMeasurement stores a body measurement for the user. Only gender,
// weight and height are required here; the tape measurements feed the
// remote classifier and may be zero.
func (a *App) SaveMeasurement(ctx context.Context, userID string, m body.Measurements, somatotype string) (*body.Record, error) {
	m.Gender = strings.ToLower(strings.TrimSpace(m.Gender))
	if m.Gender != "male" && m.Gender != "female" {
		return nil, fmt.Errorf("gender must be male or female, got %q", m.Gender)
	}
	if !(m.WeightKg > 0) || !(m.HeightCm > 0) {
		return nil, fmt.Errorf("weight and height must be positive, got %v kg and %v cm", m.WeightKg, m.HeightCm)
	}
	if somatotype == "" {
		somatotype = planner.DefaultSomatotype
	}
	return a.measurements.Save(ctx, userID, m, somatotype, a.now())
}

// Profile builds the planning profile from the user's latest measurement.
// Users without measurements get an empty profile, which the planner fills
// with defaults.
func (a *App) Profile(ctx context.Context, userID, goal string) (api.Profile, error) {
	if goal == "" {
		goal = api.DefaultGoal
	}
	records, err := a.measurements.Recent(ctx, userID, 1)
	if err != nil {
		return api.Profile{}, err
	}
	if len(records) == 0 {
		return api.Profile{Goal: goal}, nil
	}
	r := records[0]
	return api.Profile{
		Gender:      r.Gender,
		WeightKg:    r.WeightKg,
		HeightCm:    r.HeightCm,
		BMI:         r.BMI,
		BMICategory: r.BMICategory,
		Somatotype:  r.Somatotype,
		Goal:        goal,
	}, nil
}

// GeneratePlan creates a new plan for the user and makes it the active one.
// The selection state of the new plan starts with every slot on main.
func (a *App) GeneratePlan(ctx context.Context, userID, goal string) (*planner.StoredPlan, error) {
	profile, err := a.Profile(ctx, userID, goal)
	if err != nil {
		return nil, err
	}

	log.Printf("Generating %d-day plan for user %s (goal: %s)", a.planDays, userID, profile.Goal)
	plan, metas, err := a.mealPlanner.GeneratePlan(ctx, profile, a.planDays)
	a.recordMetas(ctx, metas...)
	if err != nil {
		return nil, fmt.Errorf("failed to generate plan: %w", err)
	}

	stored, err := a.plans.Save(ctx, userID, plan)
	if err != nil {
		return nil, err
	}
	log.Printf("Saved plan %s for user %s (source: %s, %d calls, %d tokens)", stored.ID, userID, plan.Source, len(metas), shared.Sum(metas).Total())
	return stored, nil
}

// MealView is one slot of a day as shown to the user.
type MealView struct {
	Slot      mealplan.Slot
	Label     string
	Meal      string
	Note      string
	Items     []mealplan.ParsedItem
	Swappable bool
	Selected  mealplan.Variant
}

// DayView is one day of the active plan with the current selections
// applied.
type DayView struct {
	PlanID string
	Day    int
	Days   int
	Label  string
	// DayLabels holds the chip label of every day, index 0 for day 1.
	DayLabels []string
	Goal      string
	Source    string
	Advice    []string
	Meals     []MealView
}

// ActivePlan returns the user's active plan or ErrNoPlan.
func (a *App) ActivePlan(ctx context.Context, userID string) (*planner.StoredPlan, error) {
	stored, err := a.plans.Active(ctx, userID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, ErrNoPlan
	}
	return stored, nil
}

// DayView renders one day of the user's active plan.
func (a *App) DayView(ctx context.Context, userID string, day int) (*DayView, error) {
	stored, err := a.ActivePlan(ctx, userID)
	if err != nil {
		return nil, err
	}
	state, err := a.selections.Load(ctx, userID, stored)
	if err != nil {
		return nil, err
	}
	return BuildDayView(stored.ID, stored.Plan, state, day, a.now())
}

// Swap flips the variant shown for day/slot and returns the updated day.
// Slots without an alternative are left alone.
func (a *App) Swap(ctx context.Context, userID string, day int, slot mealplan.Slot) (*DayView, error) {
	unlock := a.lockSelections(userID)
	defer unlock()

	stored, err := a.ActivePlan(ctx, userID)
	if err != nil {
		return nil, err
	}
	state, err := a.selections.Load(ctx, userID, stored)
	if err != nil {
		return nil, err
	}
	if _, err := mealplan.Resolve(stored.Plan.MealPlan, state, day, slot); err != nil {
		return nil, err
	}

	dayPlan, _ := stored.Plan.MealPlan.Day(day)
	if swappable(slot, dayPlan[slot]) {
		state = mealplan.Toggle(state, day, slot)
		if err := a.selections.Save(ctx, userID, stored.ID, state); err != nil {
			return nil, err
		}
	}
	return BuildDayView(stored.ID, stored.Plan, state, day, a.now())
}

// lockSelections holds the user's selection lock until the returned func
// is called.
func (a *App) lockSelections(userID string) func() {
	mu, _ := a.selectionLocks.LoadOrStore(userID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// BuildDayView applies state to one day of plan. An absent day is a
// *mealplan.NotFoundError.
func BuildDayView(planID string, plan *mealplan.Generated, state mealplan.SelectionState, day int, now time.Time) (*DayView, error) {
	dayPlan, ok := plan.MealPlan.Day(day)
	if !ok {
		return nil, &mealplan.NotFoundError{Day: day}
	}

	view := &DayView{
		PlanID: planID,
		Day:    day,
		Days:   plan.MealPlan.Days(),
		Label:  plan.DayLabel(day, now),
		Goal:   plan.Goal,
		Source: plan.Source,
		Advice: plan.Advice,
	}
	view.DayLabels = make([]string, view.Days)
	for i := range view.DayLabels {
		view.DayLabels[i] = plan.DayLabel(i+1, now)
	}
	for _, slot := range dayPlan.OrderedSlots() {
		dish, err := mealplan.Resolve(plan.MealPlan, state, day, slot)
		if err != nil {
			continue
		}
		meal, note := dishText(dish)
		view.Meals = append(view.Meals, MealView{
			Slot:      slot,
			Label:     SlotLabel(slot),
			Meal:      meal,
			Note:      note,
			Items:     mealplan.Parse(dish),
			Swappable: swappable(slot, dayPlan[slot]),
			Selected:  state.Selected(day, slot),
		})
	}
	return view, nil
}

// swappable reports whether slot can be toggled from the bot and the page.
// Only the canonical slots round-trip through ParseSlot.
func swappable(slot mealplan.Slot, entry mealplan.MealEntry) bool {
	if _, ok := mealplan.ParseSlot(string(slot)); !ok {
		return false
	}
	return mealplan.HasAlternative(entry)
}

// ShoppingList lists the dishes currently selected in the active plan.
func (a *App) ShoppingList(ctx context.Context, userID string) ([]shopping.Item, error) {
	stored, err := a.ActivePlan(ctx, userID)
	if err != nil {
		return nil, err
	}
	state, err := a.selections.Load(ctx, userID, stored)
	if err != nil {
		return nil, err
	}
	return shopping.Build(stored.Plan.MealPlan, state), nil
}

// dishText splits a dish into the meal line and its portion note.
func dishText(d mealplan.Dish) (meal, note string) {
	switch v := d.(type) {
	case mealplan.Text:
		return mealplan.SplitPortionNote(string(v))
	case mealplan.Structured:
		meal = v.Item
		if v.Side != "" {
			meal += " with " + v.Side
		}
		if v.Portion != "" {
			note = "(Approx. " + v.Portion + ")"
		}
		return meal, note
	case mealplan.Raw:
		return v.String(), ""
	}
	return fmt.Sprint(d), ""
}

// SlotLabel capitalizes a slot name for display.
func SlotLabel(s mealplan.Slot) string {
	return s.Label()
}

// Chat answers a question with the assistant and records its usage.
func (a *App) Chat(ctx context.Context, userID, query string) (string, error) {
	if a.assistant == nil {
		return "", fmt.Errorf("chat assistant is not configured")
	}
	reply, meta, err := a.assistant.Reply(ctx, userID, query)
	meta.AgentName = metrics.AgentChat
	a.recordMetas(ctx, meta)
	if err != nil {
		return "", err
	}
	return reply, nil
}

// ChatHistory returns the user's last limit messages in order.
func (a *App) ChatHistory(ctx context.Context, userID string, limit int) ([]chat.Message, error) {
	if a.assistant == nil {
		return nil, fmt.Errorf("chat assistant is not configured")
	}
	return a.assistant.History(ctx, userID, limit)
}

// Tips returns today's tips.
func (a *App) Tips(ctx context.Context) []string {
	list, meta := a.tipsGen.Daily(ctx)
	meta.AgentName = metrics.AgentTips
	a.recordMetas(ctx, meta)
	return list
}

// MetricsReport renders the last days of token usage and process health.
func (a *App) MetricsReport(ctx context.Context, days int) (string, error) {
	usage, err := a.metricsStore.GetDailyUsage(ctx, days)
	if err != nil {
		return "", err
	}
	return metrics.FormatReport(usage, metrics.GetSysHealth(a.dataPath)), nil
}

// CleanupMetrics deletes usage records older than days.
func (a *App) CleanupMetrics(ctx context.Context, days int) (int64, error) {
	return a.metricsStore.Cleanup(ctx, days)
}

func (a *App) recordMetas(ctx context.Context, metas ...shared.AgentMeta) {
	for _, meta := range metas {
		if meta.Usage.Bloated() {
			log.Printf("Warning: context bloat in %s (%s): %d prompt tokens", meta.AgentName, meta.Usage.Model, meta.Usage.PromptTokens)
		}
		if err := a.metricsStore.RecordMeta(ctx, meta); err != nil {
			log.Printf("Warning: failed to record metrics for %s: %v", meta.AgentName, err)
		}
	}
}

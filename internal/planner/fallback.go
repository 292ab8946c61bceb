package planner

import (
	"time"

	"nutrilanka/internal/knowledge"
	"nutrilanka/internal/mealplan"
)

// FallbackNote is appended to the advice of generated-offline plans.
const FallbackNote = "(Note: This plan was generated automatically due to high server load.)"

// fallbackDefaults are used when the knowledge base has no options for a slot.
var fallbackDefaults = map[mealplan.Slot][2]string{
	mealplan.Breakfast: {"Rice and curry", "Bread and curry"},
	mealplan.Lunch:     {"Rice and curry", "Fried Rice"},
	mealplan.Dinner:    {"Light meal", "String hoppers"},
	mealplan.Snacks:    {"Fruit", "Yogurt"},
}

// fallbackPlan picks main and alternative at random from the knowledge base
// options of each slot. Main and alternative may coincide.
func (p *Planner) fallbackPlan(kbCtx knowledge.Context, days int, goal string) *mealplan.Generated {
	plan := make(mealplan.MealPlan, days)
	for day := 1; day <= days; day++ {
		dayPlan := make(mealplan.DayPlan, len(mealplan.Slots))
		for _, slot := range mealplan.Slots {
			options := kbCtx.Options(slot)
			defaults := fallbackDefaults[slot]
			dayPlan[slot] = mealplan.Options{
				Main:        mealplan.Text(p.pick(options, defaults[0])),
				Alternative: mealplan.Text(p.pick(options, defaults[1])),
			}
		}
		plan[mealplan.DayKey(day)] = dayPlan
	}

	advice := make([]string, 0, len(kbCtx.Guidance)+1)
	advice = append(advice, kbCtx.Guidance...)
	advice = append(advice, FallbackNote)

	return &mealplan.Generated{
		MealPlan:  plan,
		Advice:    advice,
		Source:    SourceFallback,
		Goal:      goal,
		CreatedAt: mealplan.Timestamp{Time: p.now().UTC().Truncate(time.Microsecond)},
	}
}

func (p *Planner) pick(options []string, fallback string) string {
	if len(options) == 0 {
		return fallback
	}
	return options[p.rng.IntN(len(options))]
}

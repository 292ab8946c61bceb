// Package shopping turns the dishes currently selected in a plan into a
// shopping list.
package shopping

import (
	"sort"
	"strings"

	"nutrilanka/internal/mealplan"
)

// Item is one dish with the days it is eaten on.
type Item struct {
	Name     string
	Portions []string
	Days     []int
}

// Count is the number of meals the item appears in.
func (i Item) Count() int {
	return len(i.Days)
}

// Build lists every dish of the selected variants, most frequent first.
// Names are matched case-insensitively; the first spelling is kept.
func Build(plan mealplan.MealPlan, state mealplan.SelectionState) []Item {
	index := map[string]int{}
	var items []Item

	for day := 1; day <= plan.Days(); day++ {
		dayPlan, ok := plan.Day(day)
		if !ok {
			continue
		}
		for _, slot := range dayPlan.OrderedSlots() {
			dish, err := mealplan.Resolve(plan, state, day, slot)
			if err != nil {
				continue
			}
			for _, parsed := range mealplan.Parse(dish) {
				key := strings.ToLower(parsed.Name)
				if key == "" {
					continue
				}
				i, seen := index[key]
				if !seen {
					i = len(items)
					index[key] = i
					items = append(items, Item{Name: parsed.Name})
				}
				items[i].Days = append(items[i].Days, day)
				if parsed.HasPortion() && !contains(items[i].Portions, parsed.Portion) {
					items[i].Portions = append(items[i].Portions, parsed.Portion)
				}
			}
		}
	}

	sort.SliceStable(items, func(a, b int) bool { return items[a].Count() > items[b].Count() })
	return items
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

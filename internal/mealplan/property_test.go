package mealplan

import (
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: text without an approx group parses to one portionless item
// per "+" segment, in order.
func TestParseWithoutApproxProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("one item per segment", prop.ForAll(
		func(dishes []string) bool {
			if len(dishes) == 0 {
				return true
			}
			text := strings.Join(dishes, " + ")
			items := Parse(Text(text))
			if len(items) != len(dishes) {
				return false
			}
			for i, item := range items {
				if item.Name != dishes[i] || item.HasPortion() {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// Property: Parse(x) == Parse(x) for any entry.
func TestParseDeterministicProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("parse is deterministic", prop.ForAll(
		func(item, portion string) bool {
			text := Text(item + " (Approx. " + portion + ")")
			structured := Structured{Item: item, Portion: portion}
			return reflect.DeepEqual(Parse(text), Parse(text)) &&
				reflect.DeepEqual(Parse(structured), Parse(structured))
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

// Property: a toggle changes exactly one entry and a second toggle undoes it.
func TestToggleIndependenceProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("toggle flips one entry and is self-inverse", prop.ForAll(
		func(planDays, day, slotIdx int) bool {
			if day > planDays {
				day = planDays
			}
			slot := Slots[slotIdx]
			state, err := Initialize(planDays)
			if err != nil {
				return false
			}
			once := Toggle(state, day, slot)
			changed := 0
			for d := 1; d <= planDays; d++ {
				for _, s := range Slots {
					if once.Selected(d, s) != state.Selected(d, s) {
						changed++
					}
				}
			}
			twice := Toggle(once, day, slot)
			return changed == 1 && reflect.DeepEqual(twice, state)
		},
		gen.IntRange(1, 14),
		gen.IntRange(1, 14),
		gen.IntRange(0, len(Slots)-1),
	))

	properties.TestingRun(t)
}

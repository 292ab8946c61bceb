package telegram

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"nutrilanka/internal/app"
	"nutrilanka/internal/mealplan"
	"nutrilanka/internal/shopping"
)

func testView() *app.DayView {
	return &app.DayView{
		PlanID:    "p1",
		Day:       2,
		Days:      7,
		Label:     "Tue",
		DayLabels: []string{"Today", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"},
		Goal:      "Weight Loss",
		Advice:    []string{"Drink water"},
		Meals: []app.MealView{
			{
				Slot:      mealplan.Breakfast,
				Label:     "Breakfast",
				Items:     []mealplan.ParsedItem{{Name: "Kiribath", Portion: "2 pieces"}, {Name: "lunu_miris"}},
				Swappable: true,
				Selected:  mealplan.Main,
			},
			{
				Slot:     mealplan.Lunch,
				Label:    "Lunch",
				Items:    []mealplan.ParsedItem{{Name: "Red rice"}},
				Selected: mealplan.Main,
			},
			{
				Slot:      mealplan.Dinner,
				Label:     "Dinner",
				Items:     []mealplan.ParsedItem{{Name: "Roti"}},
				Swappable: true,
				Selected:  mealplan.Alternative,
			},
		},
	}
}

func TestFormatDayMarkdown(t *testing.T) {
	out := formatDayMarkdown(testView())

	for _, want := range []string{
		"📅 *Day 2 of 7 · Tue*",
		"🎯 Weight Loss",
		"*Breakfast*\n• Kiribath - 2 pieces\n• lunu\\_miris",
		"*Lunch*\n• Red rice",
		"*Dinner* _(alternative)_",
		"💡 *Advice*\n• Drink water",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "*Breakfast* _(alternative)_") {
		t.Error("Expected breakfast to show the main variant")
	}
}

func TestDayKeyboard(t *testing.T) {
	kb := dayKeyboard(testView())

	// 7 chips in rows of 4, then a swap row for breakfast and dinner.
	if len(kb.InlineKeyboard) != 4 {
		t.Fatalf("Expected 4 rows, got %d", len(kb.InlineKeyboard))
	}
	if len(kb.InlineKeyboard[0]) != 4 || len(kb.InlineKeyboard[1]) != 3 {
		t.Errorf("Unexpected chip rows: %d + %d", len(kb.InlineKeyboard[0]), len(kb.InlineKeyboard[1]))
	}

	selected := kb.InlineKeyboard[0][1]
	if selected.Text != "• Tue •" || *selected.CallbackData != "day|2" {
		t.Errorf("Unexpected selected chip: %s / %s", selected.Text, *selected.CallbackData)
	}

	swap := kb.InlineKeyboard[2][0]
	if swap.Text != "🔄 Swap Breakfast" || *swap.CallbackData != "swap|2|breakfast" {
		t.Errorf("Unexpected swap button: %s / %s", swap.Text, *swap.CallbackData)
	}
	back := kb.InlineKeyboard[3][0]
	if back.Text != "↩️ Back to main dinner" || *back.CallbackData != "swap|2|dinner" {
		t.Errorf("Unexpected swap-back button: %s / %s", back.Text, *back.CallbackData)
	}

	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			if len(*b.CallbackData) > 64 {
				t.Errorf("Callback data too long: %s", *b.CallbackData)
			}
		}
	}
}

func TestParseCallback(t *testing.T) {
	tests := []struct {
		data    string
		want    callback
		wantErr bool
	}{
		{data: "day|3", want: callback{Action: actionDay, Day: 3}},
		{data: "swap|7|snacks", want: callback{Action: actionSwap, Day: 7, Slot: mealplan.Snacks}},
		{data: "swap|1|snack", want: callback{Action: actionSwap, Day: 1, Slot: mealplan.Snacks}},
		{data: "swap|1|brunch", wantErr: true},
		{data: "swap|1", wantErr: true},
		{data: "day|0", wantErr: true},
		{data: "day|x", wantErr: true},
		{data: "redo|1", wantErr: true},
		{data: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			got, err := parseCallback(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseCallback(%q) error = %v, wantErr %v", tt.data, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseCallback(%q) = %+v, want %+v", tt.data, got, tt.want)
			}
		})
	}

	if got, _ := parseCallback(swapCallback(4, mealplan.Lunch)); got.Slot != mealplan.Lunch || got.Day != 4 {
		t.Errorf("Expected swap callback to round trip, got %+v", got)
	}
}

func TestParseProfileArgs(t *testing.T) {
	m, somatotype, err := parseProfileArgs("Female 54.5 160 ectomorph")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if m.Gender != "female" || m.WeightKg != 54.5 || m.HeightCm != 160 || somatotype != "Ectomorph" {
		t.Errorf("Unexpected result: %+v %s", m, somatotype)
	}

	if _, somatotype, _ := parseProfileArgs("male 70 175"); somatotype != "" {
		t.Errorf("Expected no somatotype, got %s", somatotype)
	}

	for _, args := range []string{"", "male 70", "male x 175", "male 70 y", "male 70 175 a b"} {
		if _, _, err := parseProfileArgs(args); err == nil {
			t.Errorf("Expected an error for %q", args)
		}
	}
}

func TestErrorText(t *testing.T) {
	if got := errorText(fmt.Errorf("wrapped: %w", app.ErrNoPlan)); !strings.Contains(got, "/generate") {
		t.Errorf("Expected a hint to generate, got %s", got)
	}
	if got := errorText(&mealplan.NotFoundError{Day: 9}); !strings.Contains(got, "day\\_9") {
		t.Errorf("Expected escaped not-found message, got %s", got)
	}
	if got := errorText(errors.New("boom `x`")); !strings.Contains(got, "boom 'x'") {
		t.Errorf("Expected backticks to be replaced, got %s", got)
	}
}

func TestFormatTipsMarkdown(t *testing.T) {
	out := formatTipsMarkdown([]string{"Walk", "Sleep"})
	if !strings.Contains(out, "1. Walk\n2. Sleep") {
		t.Errorf("Unexpected tips output: %s", out)
	}
}

func TestFormatShoppingMarkdown(t *testing.T) {
	out := formatShoppingMarkdown([]shopping.Item{
		{Name: "Red rice", Portions: []string{"1 cup"}, Days: []int{1, 2}},
		{Name: "Pol_sambol", Days: []int{3}},
	})
	if !strings.Contains(out, "• Red rice ×2 _(1 cup)_\n") {
		t.Errorf("Missing red rice line: %s", out)
	}
	if !strings.Contains(out, "• Pol\\_sambol\n") {
		t.Errorf("Missing escaped single item: %s", out)
	}
	if !strings.Contains(formatShoppingMarkdown(nil), "Nothing to buy") {
		t.Error("Expected empty state")
	}
}

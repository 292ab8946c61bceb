package telegram

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"nutrilanka/internal/app"
	"nutrilanka/internal/mealplan"
	"nutrilanka/internal/shopping"
)

// Callback actions. Data is "day|<N>" or "swap|<N>|<slot>".
const (
	actionDay  = "day"
	actionSwap = "swap"
)

type callback struct {
	Action string
	Day    int
	Slot   mealplan.Slot
}

func dayCallback(day int) string {
	return fmt.Sprintf("%s|%d", actionDay, day)
}

func swapCallback(day int, slot mealplan.Slot) string {
	return fmt.Sprintf("%s|%d|%s", actionSwap, day, slot)
}

func parseCallback(data string) (callback, error) {
	parts := strings.Split(data, "|")
	if len(parts) < 2 {
		return callback{}, fmt.Errorf("malformed callback data")
	}
	day, err := strconv.Atoi(parts[1])
	if err != nil || day < 1 {
		return callback{}, fmt.Errorf("invalid day %q", parts[1])
	}

	switch parts[0] {
	case actionDay:
		if len(parts) != 2 {
			return callback{}, fmt.Errorf("malformed day callback")
		}
		return callback{Action: actionDay, Day: day}, nil
	case actionSwap:
		if len(parts) != 3 {
			return callback{}, fmt.Errorf("malformed swap callback")
		}
		slot, ok := mealplan.ParseSlot(parts[2])
		if !ok {
			return callback{}, fmt.Errorf("unknown slot %q", parts[2])
		}
		return callback{Action: actionSwap, Day: day, Slot: slot}, nil
	}
	return callback{}, fmt.Errorf("unknown action %q", parts[0])
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

// formatDayMarkdown renders one day of the plan, one block per slot.
func formatDayMarkdown(view *app.DayView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 *Day %d of %d · %s*\n", view.Day, view.Days, escape(view.Label))
	if view.Goal != "" {
		fmt.Fprintf(&sb, "🎯 %s\n", escape(view.Goal))
	}
	sb.WriteString("\n")

	for _, meal := range view.Meals {
		fmt.Fprintf(&sb, "*%s*", escape(meal.Label))
		if meal.Swappable && meal.Selected == mealplan.Alternative {
			sb.WriteString(" _(alternative)_")
		}
		sb.WriteString("\n")
		for _, item := range meal.Items {
			fmt.Fprintf(&sb, "• %s", escape(item.Name))
			if item.HasPortion() {
				fmt.Fprintf(&sb, " - %s", escape(item.Portion))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if len(view.Advice) > 0 {
		sb.WriteString("💡 *Advice*\n")
		for _, a := range view.Advice {
			fmt.Fprintf(&sb, "• %s\n", escape(a))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// dayKeyboard builds the day chips and one swap button per slot that has
// an alternative.
func dayKeyboard(view *app.DayView) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	var chips []tgbotapi.InlineKeyboardButton
	for i, label := range view.DayLabels {
		day := i + 1
		if day == view.Day {
			label = "• " + label + " •"
		}
		chips = append(chips, tgbotapi.NewInlineKeyboardButtonData(label, dayCallback(day)))
		if len(chips) == 4 {
			rows = append(rows, chips)
			chips = nil
		}
	}
	if len(chips) > 0 {
		rows = append(rows, chips)
	}

	for _, meal := range view.Meals {
		if !meal.Swappable {
			continue
		}
		text := "🔄 Swap " + meal.Label
		if meal.Selected == mealplan.Alternative {
			text = "↩️ Back to main " + strings.ToLower(meal.Label)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(text, swapCallback(view.Day, meal.Slot)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func formatTipsMarkdown(tips []string) string {
	var sb strings.Builder
	sb.WriteString("💡 *Today's Tips*\n\n")
	for i, t := range tips {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, escape(t))
	}
	return sb.String()
}

func formatShoppingMarkdown(items []shopping.Item) string {
	var sb strings.Builder
	sb.WriteString("🛒 *Shopping List*\n\n")
	if len(items) == 0 {
		sb.WriteString("_Nothing to buy_\n")
	}
	for _, it := range items {
		fmt.Fprintf(&sb, "• %s", escape(it.Name))
		if n := it.Count(); n > 1 {
			fmt.Fprintf(&sb, " ×%d", n)
		}
		if len(it.Portions) > 0 {
			fmt.Fprintf(&sb, " _(%s)_", escape(strings.Join(it.Portions, ", ")))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

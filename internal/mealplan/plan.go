package mealplan

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Slot names a meal category within a day.
type Slot string

const (
	Breakfast Slot = "breakfast"
	Lunch     Slot = "lunch"
	Dinner    Slot = "dinner"
	Snacks    Slot = "snacks"
)

// Slots lists the canonical slots in display order.
var Slots = []Slot{Breakfast, Lunch, Dinner, Snacks}

// ParseSlot normalizes a slot name. "snack" is accepted for snacks.
func ParseSlot(s string) (Slot, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "breakfast":
		return Breakfast, true
	case "lunch":
		return Lunch, true
	case "dinner":
		return Dinner, true
	case "snacks", "snack":
		return Snacks, true
	}
	return "", false
}

// Label capitalizes the first letter of the slot name for display.
func (s Slot) Label() string {
	r, size := utf8.DecodeRuneInString(string(s))
	if r == utf8.RuneError {
		return string(s)
	}
	return string(unicode.ToUpper(r)) + string(s)[size:]
}

// DayPlan maps slot names to meal entries.
type DayPlan map[Slot]MealEntry

// UnmarshalJSON decodes every slot through DecodeEntry.
func (d *DayPlan) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode day plan: %w", err)
	}
	out := make(DayPlan, len(raw))
	for name, value := range raw {
		entry, err := DecodeEntry(value)
		if err != nil {
			return fmt.Errorf("slot %s: %w", name, err)
		}
		out[Slot(name)] = entry
	}
	*d = out
	return nil
}

// OrderedSlots returns the slots present in d, canonical ones first.
func (d DayPlan) OrderedSlots() []Slot {
	var out []Slot
	seen := make(map[Slot]bool, len(d))
	for _, s := range Slots {
		if _, ok := d[s]; ok {
			out = append(out, s)
			seen[s] = true
		}
	}
	var extra []Slot
	for s := range d {
		if !seen[s] {
			extra = append(extra, s)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

// MealPlan maps day keys ("day_1" .. "day_N") to day plans.
type MealPlan map[string]DayPlan

// DayKey returns the plan key for a 1-based day number.
func DayKey(day int) string {
	return "day_" + strconv.Itoa(day)
}

// ParseDayKey extracts the day number from a "day_<N>" key.
func ParseDayKey(key string) (int, bool) {
	rest, ok := strings.CutPrefix(key, "day_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Days returns the number of days in the plan.
func (p MealPlan) Days() int {
	return len(p)
}

// Day returns the plan for a 1-based day number.
func (p MealPlan) Day(day int) (DayPlan, bool) {
	d, ok := p[DayKey(day)]
	return d, ok
}

// Validate checks that the plan's keys are exactly day_1 .. day_<N>.
func (p MealPlan) Validate() error {
	if len(p) == 0 {
		return &ValidationError{Field: "meal_plan", Reason: "plan has no days"}
	}
	for key := range p {
		n, ok := ParseDayKey(key)
		if !ok || DayKey(n) != key {
			return &ValidationError{Field: "meal_plan", Reason: fmt.Sprintf("unexpected key %q", key)}
		}
		if n > len(p) {
			return &ValidationError{Field: "meal_plan", Reason: fmt.Sprintf("day keys are not contiguous: %q in a %d-day plan", key, len(p))}
		}
	}
	return nil
}

// Generated is the payload returned by the meal-planning service.
type Generated struct {
	MealPlan  MealPlan  `json:"meal_plan"`
	Advice    []string  `json:"advice,omitempty"`
	Source    string    `json:"source,omitempty"`
	Goal      string    `json:"goal,omitempty"`
	CreatedAt Timestamp `json:"created_at,omitempty"`
}

// Timestamp accepts RFC 3339 as well as the zone-less ISO layouts the
// service emits.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalJSON parses any of the accepted layouts; null leaves the zero time.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to decode timestamp: %w", err)
	}
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

// MarshalJSON writes RFC 3339, or null for the zero time.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// DayDate returns the calendar date of a 1-based day, counted from CreatedAt.
func (g *Generated) DayDate(day int) (time.Time, bool) {
	if g.CreatedAt.IsZero() {
		return time.Time{}, false
	}
	return g.CreatedAt.AddDate(0, 0, day-1), true
}

// DayLabel returns a short label for day chips: "Today", a weekday
// abbreviation, or "Day N" when the plan has no creation date.
func (g *Generated) DayLabel(day int, now time.Time) string {
	date, ok := g.DayDate(day)
	if !ok {
		return fmt.Sprintf("Day %d", day)
	}
	y1, m1, d1 := date.Date()
	y2, m2, d2 := now.In(date.Location()).Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return "Today"
	}
	return date.Format("Mon")
}

// Package knowledge loads the meal knowledge base and selects the options
// that fit a user's profile.
package knowledge

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"nutrilanka/internal/body"
	"nutrilanka/internal/mealplan"
)

// Entry types found in the knowledge base.
const (
	TypeMealOptions      = "meal_options"
	TypeBodyTypeGuidance = "bodytype_guidance"
	TypeSnackOptions     = "snack_options"
)

// Filters narrow an entry to a profile.
type Filters struct {
	Gender      string        `yaml:"gender,omitempty" json:"gender,omitempty"`
	BMICategory body.Category `yaml:"bmi_category,omitempty" json:"bmi_category,omitempty"`
	MealTime    string        `yaml:"meal_time,omitempty" json:"meal_time,omitempty"`
	Somatotype  string        `yaml:"somatotype,omitempty" json:"somatotype,omitempty"`
}

// Entry is one knowledge base record.
type Entry struct {
	ID      string   `yaml:"id,omitempty" json:"id,omitempty"`
	Type    string   `yaml:"type" json:"type"`
	Text    string   `yaml:"text,omitempty" json:"text,omitempty"`
	Filters Filters  `yaml:"filters" json:"filters"`
	Options []string `yaml:"options" json:"options"`
}

// Base is the loaded knowledge base.
type Base struct {
	Entries []Entry
}

// Context is the slice of the knowledge base relevant to one profile.
type Context struct {
	MealOptions map[mealplan.Slot][]string
	Guidance    []string
	Snacks      []string
}

// Options returns the candidates for slot. Snacks come from the snack list.
func (c Context) Options(slot mealplan.Slot) []string {
	if slot == mealplan.Snacks {
		return c.Snacks
	}
	return c.MealOptions[slot]
}

// Load reads a knowledge base file. Both YAML and JSON files are accepted.
func Load(path string) (*Base, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge base %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a knowledge base document: a list of entries.
func Parse(data []byte) (*Base, error) {
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge base: %w", err)
	}
	return &Base{Entries: entries}, nil
}

// Retrieve collects meal options for gender and BMI category, guidance for
// the somatotype and snacks for the BMI category. Matching is case-insensitive.
func (b *Base) Retrieve(gender string, category body.Category, somatotype string) Context {
	ctx := Context{MealOptions: map[mealplan.Slot][]string{}}
	if b == nil {
		return ctx
	}

	for _, e := range b.Entries {
		f := e.Filters
		switch e.Type {
		case TypeMealOptions:
			if !strings.EqualFold(f.Gender, gender) || !strings.EqualFold(string(f.BMICategory), string(category)) {
				continue
			}
			slot, ok := mealplan.ParseSlot(f.MealTime)
			if !ok {
				continue
			}
			ctx.MealOptions[slot] = e.Options
		case TypeBodyTypeGuidance:
			if strings.EqualFold(f.Somatotype, somatotype) {
				ctx.Guidance = append(ctx.Guidance, e.Options...)
			}
		case TypeSnackOptions:
			if strings.EqualFold(string(f.BMICategory), string(category)) {
				ctx.Snacks = append(ctx.Snacks, e.Options...)
			}
		}
	}
	return ctx
}

// Save writes the knowledge base back as YAML.
func (b *Base) Save(path string) error {
	data, err := yaml.Marshal(b.Entries)
	if err != nil {
		return fmt.Errorf("failed to marshal knowledge base: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write knowledge base %s: %w", path, err)
	}
	return nil
}

// Search returns up to k entries sharing the most words (three letters or
// longer) with query, best first. Entries sharing none are left out.
func (b *Base) Search(query string, k int) []Entry {
	if b == nil || k <= 0 {
		return nil
	}
	words := searchWords(query)
	if len(words) == 0 {
		return nil
	}

	type hit struct {
		index int
		score int
	}
	var hits []hit
	for i, e := range b.Entries {
		haystack := strings.ToLower(e.Text + " " + strings.Join(e.Options, " "))
		score := 0
		for _, w := range words {
			if strings.Contains(haystack, w) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, hit{index: i, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]Entry, len(hits))
	for i, h := range hits {
		out[i] = b.Entries[h.index]
	}
	return out
}

// Describe renders an entry as one line of text for prompts.
func (e Entry) Describe() string {
	if e.Text != "" {
		return e.Text
	}
	return strings.ReplaceAll(e.Type, "_", " ") + ": " + strings.Join(e.Options, "; ")
}

func searchWords(query string) []string {
	seen := map[string]bool{}
	var words []string
	for _, w := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(w) < 3 || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	return words
}

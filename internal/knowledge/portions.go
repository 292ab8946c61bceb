package knowledge

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// portionMap holds default portion sizes for common Sri Lankan dishes.
var portionMap = map[string]string{
	"rice":           "200g",
	"dhal":           "100g",
	"fish":           "100g",
	"chicken":        "100g",
	"meat":           "100g",
	"beef":           "100g",
	"pork":           "100g",
	"vegetable":      "100g",
	"veg":            "100g",
	"beans":          "100g",
	"carrot":         "100g",
	"beetroot":       "100g",
	"pumpkin":        "100g",
	"sambol":         "30g",
	"mallung":        "30g",
	"chutney":        "30g",
	"string hoppers": "30g each",
	"string hopper":  "30g each",
	"hoppers":        "50g each",
	"hopper":         "50g each",
	"roti":           "60g each",
	"chapati":        "60g each",
	"thosai":         "80g each",
	"bread":          "30g slice",
	"paan":           "30g slice",
	"egg":            "50g",
	"omelette":       "60g",
	"fruit":          "100g",
	"banana":         "100g",
	"papaya":         "100g",
	"curd":           "150g",
	"yogurt":         "125g",
	"oats":           "50g (dry)",
	"chickpea":       "150g",
	"green gram":     "150g",
	"mung bean":      "150g",
	"cowpea":         "150g",
	"manioc":         "150g",
	"sweet potato":   "150g",
	"kiribath":       "100g piece",
	"pittu":          "100g piece",
	"kola kanda":     "200ml",
	"tea":            "200ml",
	"coffee":         "200ml",
	"milk":           "200ml",
	"nuts":           "30g",
	"peanuts":        "30g",
	"salad":          "100g",
}

// portionKeys is portionMap's keys, longest first so "string hoppers"
// wins over "hoppers".
var portionKeys = func() []string {
	keys := make([]string, 0, len(portionMap))
	for k := range portionMap {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// EstimatePortions returns "Key: ~size" notes for the dish keywords found
// in name. A keyword contained in an already matched longer one is skipped.
func EstimatePortions(name string) []string {
	lower := strings.ToLower(name)
	var found []string
	for _, key := range portionKeys {
		if !strings.Contains(lower, key) {
			continue
		}
		covered := false
		for _, f := range found {
			if strings.Contains(f, key) {
				covered = true
				break
			}
		}
		if !covered {
			found = append(found, key)
		}
	}

	notes := make([]string, 0, len(found))
	for _, key := range found {
		notes = append(notes, fmt.Sprintf("%s: ~%s", capitalize(key), portionMap[key]))
	}
	return notes
}

// AnnotateOption appends an "(Approx. ...)" note built from the option's
// "+"-separated components. Options that already carry a note, or in which
// no keyword is found, are returned unchanged.
func AnnotateOption(option string) string {
	if strings.Contains(option, "(Approx.") {
		return option
	}

	seen := map[string]bool{}
	var notes []string
	for _, component := range strings.Split(option, "+") {
		for _, note := range EstimatePortions(strings.TrimSpace(component)) {
			if !seen[note] {
				seen[note] = true
				notes = append(notes, note)
			}
		}
	}
	if len(notes) == 0 {
		return option
	}
	return fmt.Sprintf("%s (Approx. %s)", option, strings.Join(notes, "; "))
}

// Annotate adds portion notes to every meal option and rebuilds the entry
// text. It returns the number of entries changed.
func (b *Base) Annotate() int {
	updated := 0
	for i := range b.Entries {
		e := &b.Entries[i]
		if e.Type != TypeMealOptions {
			continue
		}
		changed := false
		options := make([]string, len(e.Options))
		for j, opt := range e.Options {
			options[j] = AnnotateOption(opt)
			if options[j] != opt {
				changed = true
			}
		}
		if !changed {
			continue
		}
		e.Options = options
		preamble, _, _ := strings.Cut(e.Text, ":")
		numbered := make([]string, len(options))
		for j, opt := range options {
			numbered[j] = fmt.Sprintf("%d) %s", j+1, opt)
		}
		e.Text = fmt.Sprintf("%s: %s", preamble, strings.Join(numbered, " "))
		updated++
	}
	return updated
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

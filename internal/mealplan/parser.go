package mealplan

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ParsedItem is one dish of a meal entry with its serving size, if known.
type ParsedItem struct {
	Name    string `json:"name"`
	Portion string `json:"portion,omitempty"`
}

// HasPortion reports whether a serving size was matched.
func (p ParsedItem) HasPortion() bool {
	return p.Portion != ""
}

var approxPattern = regexp.MustCompile(`(?i)\(Approx[.:]?\s*(.*?)\)`)

// Parse splits a meal entry into its dishes. Options must be resolved to a
// branch first; passed directly, the main branch is parsed. Parse never
// fails: text it cannot split comes back as a single unsplit item.
func Parse(entry MealEntry) []ParsedItem {
	switch e := entry.(type) {
	case Text:
		return parseText(string(e))
	case Structured:
		return parseStructured(e)
	case Options:
		return Parse(e.Main)
	case Raw:
		return []ParsedItem{{Name: e.String()}}
	case nil:
		return []ParsedItem{{Name: "null"}}
	}
	return []ParsedItem{{Name: renderUnknown(entry)}}
}

func renderUnknown(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func parseText(s string) []ParsedItem {
	mainText, portionBlock := splitApprox(s)
	portions := parsePortions(portionBlock)

	segments := strings.Split(mainText, "+")
	items := make([]ParsedItem, 0, len(segments))
	for _, seg := range segments {
		name := strings.TrimSpace(seg)
		name = strings.TrimSpace(strings.Trim(name, ",;"))
		items = append(items, ParsedItem{Name: name, Portion: portions.match(name)})
	}
	return items
}

// splitApprox removes the first "(Approx. ...)" group and returns the
// remaining text and the group's contents.
func splitApprox(s string) (mainText, portionBlock string) {
	loc := approxPattern.FindStringSubmatchIndex(s)
	if loc == nil {
		return s, ""
	}
	portionBlock = s[loc[2]:loc[3]]
	mainText = strings.TrimSpace(s[:loc[0]] + s[loc[1]:])
	return mainText, portionBlock
}

// portionMap keeps keys in first-insertion order; a repeated key replaces
// the value but keeps its position.
type portionMap struct {
	keys   []string
	values map[string]string
}

func parsePortions(block string) portionMap {
	pm := portionMap{values: make(map[string]string)}
	if block == "" {
		return pm
	}
	clauses := strings.FieldsFunc(block, func(r rune) bool { return r == ';' || r == ',' })
	for _, clause := range clauses {
		key, value, ok := strings.Cut(clause, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		if _, exists := pm.values[key]; !exists {
			pm.keys = append(pm.keys, key)
		}
		pm.values[key] = value
	}
	return pm
}

// match returns the value of the first key that contains name or is
// contained in it, case-insensitively. Two dishes sharing a substring
// (e.g. "rice" in "fried rice") can pick up the same portion.
func (pm portionMap) match(name string) string {
	lower := strings.ToLower(name)
	for _, key := range pm.keys {
		if strings.Contains(lower, key) || strings.Contains(key, lower) {
			return pm.values[key]
		}
	}
	return ""
}

func parseStructured(s Structured) []ParsedItem {
	if !strings.Contains(s.Item, "+") {
		return []ParsedItem{{Name: strings.TrimSpace(s.Item), Portion: s.Portion}}
	}

	synthetic := s.Item
	if s.Portion != "" {
		synthetic += " (Approx. " + s.Portion + ")"
	}
	if items := parseText(synthetic); len(items) > 1 {
		return items
	}

	parts := strings.Split(s.Item, "+")
	items := make([]ParsedItem, 0, len(parts))
	for _, part := range parts {
		items = append(items, ParsedItem{Name: strings.TrimSpace(part), Portion: s.Portion})
	}
	return items
}

// SplitPortionNote separates a legacy meal string at " (Approx." so the
// portion note can be shown on its own line. note is empty when absent.
func SplitPortionNote(text string) (meal, note string) {
	meal, rest, found := strings.Cut(text, " (Approx.")
	if !found {
		return text, ""
	}
	return meal, "(Approx." + rest
}

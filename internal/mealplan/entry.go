// Package mealplan models generated meal plans: the meal entry variants,
// the text parser that splits entries into dishes, and the per-slot
// main/alternative selection state.
package mealplan

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MealEntry is one meal slot as produced by the meal-planning service.
// The concrete type is one of Text, Structured, Options or Raw.
type MealEntry interface {
	isMealEntry()
}

// Dish is a single-variant MealEntry: Text, Structured or Raw.
// Options branches are always Dishes.
type Dish interface {
	MealEntry
	isDish()
}

// Text is the legacy string format, e.g. "Rice + Curry (Approx. Rice: 200g; Curry: 150g)".
type Text string

// Structured is the {item, portion} format.
type Structured struct {
	Item    string `json:"item"`
	Portion string `json:"portion,omitempty"`
	Side    string `json:"side,omitempty"`
}

// Options is a swappable slot with a main and an alternative suggestion.
type Options struct {
	Main        Dish `json:"main"`
	Alternative Dish `json:"alternative"`
}

// Raw holds any JSON value that matches none of the known shapes.
type Raw json.RawMessage

func (Text) isMealEntry()       {}
func (Structured) isMealEntry() {}
func (Options) isMealEntry()    {}
func (Raw) isMealEntry()        {}

func (Text) isDish()       {}
func (Structured) isDish() {}
func (Raw) isDish()        {}

// MarshalJSON writes the raw value back unchanged.
func (r Raw) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return []byte(r), nil
}

// String renders the raw JSON value.
func (r Raw) String() string {
	if len(r) == 0 {
		return "null"
	}
	return string(r)
}

// HasAlternative reports whether entry offers a swappable alternative.
func HasAlternative(entry MealEntry) bool {
	_, ok := entry.(Options)
	return ok
}

// DecodeEntry decodes one meal slot value. It never fails on an unexpected
// shape; such values come back as Raw.
func DecodeEntry(data []byte) (MealEntry, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty meal entry")
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("invalid meal entry JSON: %s", data)
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to decode meal text: %w", err)
		}
		return Text(s), nil
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("failed to decode meal object: %w", err)
		}
		return decodeObject(data, fields)
	}
	return Raw(append([]byte(nil), data...)), nil
}

func decodeObject(data []byte, fields map[string]json.RawMessage) (MealEntry, error) {
	mainRaw, hasMain := fields["main"]
	altRaw, hasAlt := fields["alternative"]

	switch {
	case hasMain && hasAlt:
		main, err := decodeDish(mainRaw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode main option: %w", err)
		}
		alt, err := decodeDish(altRaw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode alternative option: %w", err)
		}
		return Options{Main: main, Alternative: alt}, nil
	case hasMain:
		// A lone main is a single-variant meal.
		return decodeDish(mainRaw)
	}

	var s Structured
	if err := json.Unmarshal(data, &s); err == nil && s.Item != "" {
		return s, nil
	}
	return Raw(append([]byte(nil), data...)), nil
}

func decodeDish(data []byte) (Dish, error) {
	entry, err := DecodeEntry(data)
	if err != nil {
		return nil, err
	}
	switch e := entry.(type) {
	case Options:
		// Nested options are flattened to their main branch.
		return e.Main, nil
	case Dish:
		return e, nil
	}
	return Raw(append([]byte(nil), data...)), nil
}

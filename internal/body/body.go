// Package body computes the BMI and body-ratio features the body-type
// classifier expects. Classification itself happens on the remote service.
package body

import (
	"fmt"
	"math"
	"strings"
)

// Measurements are the tape-measure inputs collected from the user.
type Measurements struct {
	Gender          string  `json:"gender"`
	WeightKg        float64 `json:"weight_kg"`
	HeightCm        float64 `json:"height_cm"`
	WaistCm         float64 `json:"waist_cm"`
	HipCm           float64 `json:"hip_cm"`
	ChestCm         float64 `json:"chest_cm"`
	ShoulderBreadth float64 `json:"shoulder_breadth_cm"`
	WristCm         float64 `json:"wrist_cm"`
}

// Category is a BMI band.
type Category string

const (
	Underweight Category = "underweight"
	Normal      Category = "normal"
	Overweight  Category = "overweight"
)

// Features are the engineered ratios fed to the classifier.
type Features struct {
	BMI                float64 `json:"BMI"`
	WaistHipRatio      float64 `json:"WaistHipRatio"`
	ShoulderWaistRatio float64 `json:"ShoulderWaistRatio"`
	ChestWaistRatio    float64 `json:"ChestWaistRatio"`
	HeightWaistRatio   float64 `json:"HeightWaistRatio"`
	FrameIndex         float64 `json:"FrameIndex"`
}

// Validate checks gender and that every measurement is positive.
func (m Measurements) Validate() error {
	switch strings.ToLower(m.Gender) {
	case "male", "female":
	default:
		return fmt.Errorf("gender must be male or female, got %q", m.Gender)
	}
	fields := []struct {
		name  string
		value float64
	}{
		{"weight_kg", m.WeightKg},
		{"height_cm", m.HeightCm},
		{"waist_cm", m.WaistCm},
		{"hip_cm", m.HipCm},
		{"chest_cm", m.ChestCm},
		{"shoulder_breadth_cm", m.ShoulderBreadth},
		{"wrist_cm", m.WristCm},
	}
	for _, f := range fields {
		if !(f.value > 0) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%s must be a positive number, got %v", f.name, f.value)
		}
	}
	return nil
}

// BMI returns weight / height(m)^2.
func BMI(weightKg, heightCm float64) float64 {
	h := heightCm / 100
	if h == 0 {
		return 0
	}
	return weightKg / (h * h)
}

// CategoryFor buckets a BMI using the Asian cut-offs the meal knowledge
// base is keyed on.
func CategoryFor(bmi float64) Category {
	switch {
	case bmi < 18.5:
		return Underweight
	case bmi <= 22.9:
		return Normal
	default:
		return Overweight
	}
}

// ComputeFeatures derives the classifier ratios. A zero divisor yields 0.
// BMI is rounded to 2 places and ratios to 4, matching the service output.
func ComputeFeatures(m Measurements) Features {
	return Features{
		BMI:                round(BMI(m.WeightKg, m.HeightCm), 2),
		WaistHipRatio:      round(ratio(m.WaistCm, m.HipCm), 4),
		ShoulderWaistRatio: round(ratio(m.ShoulderBreadth, m.WaistCm), 4),
		ChestWaistRatio:    round(ratio(m.ChestCm, m.WaistCm), 4),
		HeightWaistRatio:   round(ratio(m.HeightCm, m.WaistCm), 4),
		FrameIndex:         round(ratio(m.HeightCm, m.WristCm), 4),
	}
}

// GenderCode is the numeric encoding the classifier was trained on.
func GenderCode(gender string) int {
	if strings.EqualFold(gender, "male") {
		return 1
	}
	return 0
}

func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

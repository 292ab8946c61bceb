package api

import (
	"nutrilanka/internal/body"
	"nutrilanka/internal/mealplan"
)

// Token is the response of the login endpoint.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	FullName     string `json:"full_name,omitempty"`
	Age          int    `json:"age,omitempty"`
	Gender       string `json:"gender,omitempty"`
	Lifestyle    string `json:"lifestyle,omitempty"`
	FitnessLevel string `json:"fitness_level,omitempty"`
	Goal         string `json:"goal,omitempty"`
}

// User is the account profile returned by /users/me.
type User struct {
	Email        string `json:"email"`
	FullName     string `json:"full_name,omitempty"`
	Age          int    `json:"age,omitempty"`
	Gender       string `json:"gender,omitempty"`
	Lifestyle    string `json:"lifestyle,omitempty"`
	FitnessLevel string `json:"fitness_level,omitempty"`
	Goal         string `json:"goal,omitempty"`
}

// BodyTypeResult is the classifier output.
type BodyTypeResult struct {
	Somatotype   string        `json:"somatotype"`
	BMI          float64       `json:"bmi"`
	BMICategory  body.Category `json:"bmi_category"`
	FeaturesUsed body.Features `json:"features_used"`
}

// Profile is what the meal-plan generator is personalised on.
type Profile struct {
	Gender             string        `json:"gender"`
	WeightKg           float64       `json:"weight_kg,omitempty"`
	HeightCm           float64       `json:"height_cm,omitempty"`
	BMI                float64       `json:"bmi,omitempty"`
	BMICategory        body.Category `json:"bmi_category,omitempty"`
	Somatotype         string        `json:"somatotype,omitempty"`
	Goal               string        `json:"goal,omitempty"`
	DietaryConstraints string        `json:"dietary_constraints,omitempty"`
}

// ProfileFromResult combines the measurements with a classifier result.
func ProfileFromResult(m body.Measurements, r *BodyTypeResult) Profile {
	return Profile{
		Gender:      m.Gender,
		WeightKg:    m.WeightKg,
		HeightCm:    m.HeightCm,
		BMI:         r.BMI,
		BMICategory: r.BMICategory,
		Somatotype:  r.Somatotype,
	}
}

type generateRequest struct {
	Profile  Profile `json:"profile"`
	PlanDays int     `json:"plan_days"`
}

// planResponse covers both a generated plan and the service's error body.
type planResponse struct {
	mealplan.Generated
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// MeasurementRecord is one entry of the measurement history.
type MeasurementRecord struct {
	body.Measurements
	Date        mealplan.Timestamp `json:"date"`
	BMI         float64            `json:"bmi,omitempty"`
	BMICategory body.Category      `json:"bmi_category,omitempty"`
	Somatotype  string             `json:"somatotype,omitempty"`
}

// ChatMessage is one turn of the assistant conversation.
type ChatMessage struct {
	Text      string             `json:"text"`
	IsUser    bool               `json:"is_user"`
	Timestamp mealplan.Timestamp `json:"timestamp"`
}

type chatRequest struct {
	Query string `json:"query"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type tipsResponse struct {
	Tips []string `json:"tips"`
}

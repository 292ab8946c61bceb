package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"nutrilanka/internal/body"
	"nutrilanka/internal/mealplan"
)

type staticToken string

func (s staticToken) AuthToken() (string, error) { return string(s), nil }

const planJSON = `{
	"meal_plan": {
		"day_1": {
			"breakfast": {"main": "Kiribath (Approx. 1 cup)", "alternative": "Oats (Approx. 50g)"},
			"lunch": "Rice and dhal curry",
			"dinner": {"main": "String hoppers (Approx. 10 pieces)", "alternative": "Roti"},
			"snacks": "Fruit"
		},
		"day_2": {
			"breakfast": "Hoppers",
			"lunch": "Rice and fish curry",
			"dinner": "Pittu",
			"snacks": "Yogurt"
		}
	},
	"advice": ["Drink water"],
	"source": "ai_generator",
	"created_at": "2024-03-04T08:30:00.123456"
}`

func TestLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" {
			t.Errorf("Expected path /token, got %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Expected form content type, got %s", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		if r.PostForm.Get("username") != "nimal@example.com" || r.PostForm.Get("password") != "secret" {
			t.Errorf("Unexpected credentials: %v", r.PostForm)
		}
		fmt.Fprint(w, `{"access_token": "abc", "token_type": "bearer"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", nil)
	tok, err := client.Login(context.Background(), "nimal@example.com", "secret")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if tok.AccessToken != "abc" {
		t.Errorf("Expected access token 'abc', got '%s'", tok.AccessToken)
	}
}

func TestGenerateMealPlan(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer tok" {
				t.Errorf("Expected bearer header, got '%s'", got)
			}
			var req generateRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("failed to decode request: %v", err)
			}
			if req.PlanDays != 2 {
				t.Errorf("Expected plan_days 2, got %d", req.PlanDays)
			}
			if req.Profile.Goal != "Weight Loss" {
				t.Errorf("Expected goal 'Weight Loss', got '%s'", req.Profile.Goal)
			}
			fmt.Fprint(w, planJSON)
		}))
		defer server.Close()

		client := NewClient(server.URL, staticToken("tok"))
		plan, err := client.GenerateMealPlan(context.Background(), Profile{Gender: "female"}, 2, "Weight Loss")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if plan.MealPlan.Days() != 2 {
			t.Errorf("Expected 2 days, got %d", plan.MealPlan.Days())
		}
		day, _ := plan.MealPlan.Day(1)
		if !mealplan.HasAlternative(day[mealplan.Breakfast]) {
			t.Error("Expected breakfast on day 1 to have an alternative")
		}
		if mealplan.HasAlternative(day[mealplan.Lunch]) {
			t.Error("Expected lunch on day 1 to have no alternative")
		}
		if plan.CreatedAt.IsZero() {
			t.Error("Expected created_at to be decoded")
		}
	})

	t.Run("DefaultGoal", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req generateRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Profile.Goal != DefaultGoal {
				t.Errorf("Expected default goal, got '%s'", req.Profile.Goal)
			}
			fmt.Fprint(w, planJSON)
		}))
		defer server.Close()

		if _, err := NewClient(server.URL, nil).GenerateMealPlan(context.Background(), Profile{}, 2, ""); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	})

	t.Run("ServiceErrorBody", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"error": "generation failed"}`)
		}))
		defer server.Close()

		_, err := NewClient(server.URL, nil).GenerateMealPlan(context.Background(), Profile{}, 7, "")
		if err == nil {
			t.Fatal("Expected an error for error body, got nil")
		}
	})

	t.Run("InvalidDays", func(t *testing.T) {
		_, err := NewClient("http://unused", nil).GenerateMealPlan(context.Background(), Profile{}, 0, "")
		if err == nil {
			t.Fatal("Expected an error for zero days, got nil")
		}
	})
}

func TestCurrentMealPlan(t *testing.T) {
	t.Run("NotFound", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"detail": "No meal plan found"}`, http.StatusNotFound)
		}))
		defer server.Close()

		plan, err := NewClient(server.URL, nil).CurrentMealPlan(context.Background())
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if plan != nil {
			t.Errorf("Expected nil plan, got %+v", plan)
		}
	})

	t.Run("Unauthorized", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		_, err := NewClient(server.URL, nil).CurrentMealPlan(context.Background())
		if !IsUnauthorized(err) {
			t.Fatalf("Expected unauthorized error, got %v", err)
		}
	})
}

func TestPredictBodyType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m body.Measurements
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if m.ShoulderBreadth != 40 {
			t.Errorf("Expected shoulder breadth 40, got %v", m.ShoulderBreadth)
		}
		fmt.Fprint(w, `{"somatotype": "Mesomorph", "bmi": 24.65, "bmi_category": "overweight", "features_used": {"BMI": 24.65}}`)
	}))
	defer server.Close()

	m := body.Measurements{Gender: "male", WeightKg: 75.5, HeightCm: 175, WaistCm: 85, HipCm: 100, ChestCm: 95, ShoulderBreadth: 40, WristCm: 16}
	res, err := NewClient(server.URL, nil).PredictBodyType(context.Background(), m)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if res.Somatotype != "Mesomorph" || res.BMICategory != body.Overweight {
		t.Errorf("Unexpected result: %+v", res)
	}

	p := ProfileFromResult(m, res)
	if p.Gender != "male" || p.Somatotype != "Mesomorph" || p.BMI != 24.65 {
		t.Errorf("Unexpected profile: %+v", p)
	}

	t.Run("InvalidMeasurements", func(t *testing.T) {
		bad := m
		bad.HeightCm = 0
		if _, err := NewClient(server.URL, nil).PredictBodyType(context.Background(), bad); err == nil {
			t.Fatal("Expected an error for zero height, got nil")
		}
	})
}

func TestChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chat":
			var req chatRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			fmt.Fprintf(w, `{"response": "echo: %s"}`, req.Query)
		case "/chat/history":
			fmt.Fprint(w, `[
				{"text": "hi", "is_user": true, "timestamp": "2024-03-04T08:30:00"},
				{"text": "hello", "is_user": false, "timestamp": "2024-03-04T08:30:01"}
			]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	reply, err := client.SendChat(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if reply != "echo: hi" {
		t.Errorf("Expected 'echo: hi', got '%s'", reply)
	}

	history, err := client.ChatHistory(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(history) != 2 || !history[0].IsUser || history[1].IsUser {
		t.Errorf("Unexpected history: %+v", history)
	}

	if _, err := client.SendChat(context.Background(), "   "); err == nil {
		t.Error("Expected an error for an empty query")
	}
}

func TestDailyTips(t *testing.T) {
	for name, payload := range map[string]string{
		"List":    `["Eat greens", "Walk"]`,
		"Wrapped": `{"tips": ["Eat greens", "Walk"]}`,
	} {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, payload)
			}))
			defer server.Close()

			tips, err := NewClient(server.URL, nil).DailyTips(context.Background())
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if len(tips) != 2 || tips[0] != "Eat greens" {
				t.Errorf("Unexpected tips: %v", tips)
			}
		})
	}
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	mint := func(exp time.Time) string {
		claims := jwt.RegisteredClaims{
			Subject:   "nimal@example.com",
			ExpiresAt: jwt.NewNumericDate(exp),
		}
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}
		return s
	}

	expired, err := TokenExpired(mint(now.Add(-time.Minute)), now)
	if err != nil || !expired {
		t.Errorf("Expected expired token, got expired=%v err=%v", expired, err)
	}

	expired, err = TokenExpired(mint(now.Add(time.Hour)), now)
	if err != nil || expired {
		t.Errorf("Expected valid token, got expired=%v err=%v", expired, err)
	}

	sub, err := TokenSubject(mint(now.Add(time.Hour)))
	if err != nil || sub != "nimal@example.com" {
		t.Errorf("Expected subject 'nimal@example.com', got '%s' (%v)", sub, err)
	}

	if _, err := TokenExpired("not-a-jwt", now); err == nil {
		t.Error("Expected an error for a malformed token")
	}
}

func TestRegister(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/register" {
			t.Errorf("Expected POST /register, got %s %s", r.Method, r.URL.Path)
		}
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Email != "nimal@example.com" || req.Password != "secret" || req.Goal != "Weight Loss" {
			t.Errorf("Unexpected register request: %+v", req)
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"email": "nimal@example.com"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	err := client.Register(context.Background(), RegisterRequest{Email: "nimal@example.com", Password: "secret", Goal: "Weight Loss"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	conflict := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail": "Email already registered"}`, http.StatusBadRequest)
	}))
	defer conflict.Close()

	err = NewClient(conflict.URL, nil).Register(context.Background(), RegisterRequest{Email: "taken@example.com", Password: "x"})
	se, ok := err.(*StatusError)
	if !ok || se.Code != http.StatusBadRequest {
		t.Fatalf("Expected a 400 StatusError, got %v", err)
	}
}

func TestMeasurementHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/measurements/history" {
			t.Errorf("Expected GET /measurements/history, got %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Expected bearer header, got '%s'", got)
		}
		fmt.Fprint(w, `[
			{"gender": "male", "weight_kg": 72, "height_cm": 175, "waist_cm": 84, "date": "2024-03-01T07:00:00", "bmi": 23.51, "bmi_category": "overweight", "somatotype": "Mesomorph"},
			{"gender": "male", "weight_kg": 70, "height_cm": 175, "date": "2024-03-08", "bmi": 22.86, "bmi_category": "normal"}
		]`)
	}))
	defer server.Close()

	records, err := NewClient(server.URL, staticToken("tok")).MeasurementHistory(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	first := records[0]
	if first.WeightKg != 72 || first.WaistCm != 84 || first.BMICategory != body.Overweight || first.Somatotype != "Mesomorph" {
		t.Errorf("Unexpected first record: %+v", first)
	}
	if got := first.Date.Format("2006-01-02 15:04"); got != "2024-03-01 07:00" {
		t.Errorf("Expected zone-less timestamp to parse, got %s", got)
	}
	if records[1].Date.Day() != 8 {
		t.Errorf("Expected date-only timestamp to parse, got %v", records[1].Date)
	}
}

func TestUpdateProfile(t *testing.T) {
	var got User
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/users/profile" {
			t.Errorf("Expected POST /users/profile, got %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		fmt.Fprint(w, `{"message": "Profile updated"}`)
	}))
	defer server.Close()

	err := NewClient(server.URL, staticToken("tok")).UpdateProfile(context.Background(), User{Email: "nimal@example.com", Age: 31, Goal: "Muscle Gain"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got.Age != 31 || got.Goal != "Muscle Gain" || got.Email != "nimal@example.com" {
		t.Errorf("Unexpected profile sent: %+v", got)
	}
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nutrilanka/internal/body"
	"nutrilanka/internal/mealplan"
)

// DefaultGoal is used when a plan is requested without a goal.
const DefaultGoal = "Healthy Living"

// Goals are the goals offered by the clients.
var Goals = []string{"Healthy Living", "Weight Loss", "Muscle Gain", "Weight Gain"}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status=%d body=%s", e.Method, e.Path, e.Code, e.Body)
}

// IsUnauthorized reports whether err is a 401 from the service.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusUnauthorized
}

// TokenSource supplies the bearer token attached to requests. An empty
// token means the request is sent unauthenticated.
type TokenSource interface {
	AuthToken() (string, error)
}

// Client talks to the body-analysis / meal-plan / chat service.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

// NewClient creates a new API client. tokens may be nil.
func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			// Plan generation waits on an LLM with server-side retries.
			Timeout: 90 * time.Second,
		},
	}
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (*Token, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tok Token
	if err := c.do(req, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, r RegisterRequest) error {
	return c.send(ctx, http.MethodPost, "/register", r, nil)
}

// PredictBodyType classifies the given measurements.
func (c *Client) PredictBodyType(ctx context.Context, m body.Measurements) (*BodyTypeResult, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid measurements: %w", err)
	}
	var res BodyTypeResult
	if err := c.send(ctx, http.MethodPost, "/body-type/predict", m, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GenerateMealPlan asks the service for a new plan of the given length.
func (c *Client) GenerateMealPlan(ctx context.Context, profile Profile, days int, goal string) (*mealplan.Generated, error) {
	if days < 1 {
		return nil, &mealplan.ValidationError{Field: "plan_days", Reason: fmt.Sprintf("must be at least 1, got %d", days)}
	}
	if goal == "" {
		goal = DefaultGoal
	}
	profile.Goal = goal

	var res planResponse
	if err := c.send(ctx, http.MethodPost, "/meal-plan/generate", generateRequest{Profile: profile, PlanDays: days}, &res); err != nil {
		return nil, err
	}
	return res.plan()
}

// CurrentMealPlan fetches the user's active plan. It returns nil, nil when
// the user has none.
func (c *Client) CurrentMealPlan(ctx context.Context) (*mealplan.Generated, error) {
	var res planResponse
	if err := c.send(ctx, http.MethodGet, "/meal-plan/current", nil, &res); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	if len(res.MealPlan) == 0 && res.Error == "" {
		return nil, nil
	}
	return res.plan()
}

func (r *planResponse) plan() (*mealplan.Generated, error) {
	if r.Error != "" {
		return nil, fmt.Errorf("meal plan service error: %s", r.Error)
	}
	if len(r.MealPlan) == 0 {
		if r.Message != "" {
			return nil, fmt.Errorf("meal plan service returned no plan: %s", r.Message)
		}
		return nil, fmt.Errorf("meal plan service returned no plan")
	}
	if err := r.MealPlan.Validate(); err != nil {
		return nil, err
	}
	g := r.Generated
	return &g, nil
}

// MeasurementHistory returns the user's past measurements.
func (c *Client) MeasurementHistory(ctx context.Context) ([]MeasurementRecord, error) {
	var res []MeasurementRecord
	if err := c.send(ctx, http.MethodGet, "/measurements/history", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// SendChat asks the assistant a question and returns its answer.
func (c *Client) SendChat(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("chat query is empty")
	}
	var res chatResponse
	if err := c.send(ctx, http.MethodPost, "/chat", chatRequest{Query: query}, &res); err != nil {
		return "", err
	}
	return res.Response, nil
}

// ChatHistory returns the conversation so far.
func (c *Client) ChatHistory(ctx context.Context) ([]ChatMessage, error) {
	var res []ChatMessage
	if err := c.send(ctx, http.MethodGet, "/chat/history", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// CurrentUser returns the signed-in account.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var u User
	if err := c.send(ctx, http.MethodGet, "/users/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateProfile saves profile fields on the account.
func (c *Client) UpdateProfile(ctx context.Context, u User) error {
	return c.send(ctx, http.MethodPost, "/users/profile", u, nil)
}

// DailyTips returns today's tips. The service answers either with a bare
// list or with {"tips": [...]}.
func (c *Client) DailyTips(ctx context.Context) ([]string, error) {
	var raw json.RawMessage
	if err := c.send(ctx, http.MethodGet, "/tips/daily", nil, &raw); err != nil {
		return nil, err
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var wrapped tipsResponse
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode tips: %w", err)
	}
	return wrapped.Tips, nil
}

func (c *Client) send(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		token, err := c.tokens.AuthToken()
		if err != nil {
			return fmt.Errorf("failed to read auth token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{
			Method: req.Method,
			Path:   req.URL.Path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(bodyBytes)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

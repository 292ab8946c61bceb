package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"nutrilanka/internal/mealplan"
)

// Keys of the local store. Each key is one JSON file under the base path.
const (
	KeyAuthToken          = "auth_token"
	KeyUserEmail          = "user_email"
	KeyUserData           = "user_data"
	KeyProfileData        = "profile_data"
	KeyOnboardingComplete = "onboarding_complete"
	KeyDailyTips          = "daily_tips"
	KeyMealPlan           = "meal_plan"
	KeySelections         = "meal_selections"
)

// sessionKeys are removed by Clear.
var sessionKeys = []string{
	KeyAuthToken,
	KeyUserEmail,
	KeyUserData,
	KeyProfileData,
	KeyDailyTips,
	KeyMealPlan,
	KeySelections,
}

// ErrNotFound is returned when a key has never been saved.
var ErrNotFound = errors.New("key not found")

// LocalStore is a file-backed key/value store for the signed-in session.
type LocalStore struct {
	basePath string
	mu       sync.Mutex
	now      func() time.Time
}

// NewLocalStore creates a new LocalStore and ensures the base directory exists.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	return &LocalStore{basePath: basePath, now: time.Now}, nil
}

// sanitizeKey makes the key safe for filenames.
func sanitizeKey(key string) string {
	return strings.NewReplacer("/", "_", "\\", "_", ":", "-", "..", "_").Replace(key)
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.basePath, sanitizeKey(key)+".json")
}

// Save stores v under key.
func (s *LocalStore) Save(key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(key, v)
}

// Load decodes the value stored under key into v.
func (s *LocalStore) Load(key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(key, v)
}

// Exists checks if key has been saved.
func (s *LocalStore) Exists(key string) bool {
	_, err := os.Stat(s.path(key))
	return !os.IsNotExist(err)
}

// Remove deletes key. Removing a missing key is not an error.
func (s *LocalStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

func (s *LocalStore) write(key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *LocalStore) read(key string, v any) error {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

// SaveAuthToken stores the bearer token.
func (s *LocalStore) SaveAuthToken(token string) error {
	return s.Save(KeyAuthToken, token)
}

// AuthToken returns the stored bearer token, or "" when signed out.
func (s *LocalStore) AuthToken() (string, error) {
	var token string
	if err := s.Load(KeyAuthToken, &token); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return token, nil
}

// SaveUserEmail stores the signed-in email.
func (s *LocalStore) SaveUserEmail(email string) error {
	return s.Save(KeyUserEmail, email)
}

// UserEmail returns the signed-in email, or "".
func (s *LocalStore) UserEmail() (string, error) {
	var email string
	if err := s.Load(KeyUserEmail, &email); err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}
	return email, nil
}

// SaveUserData shallow-merges data into the stored user data.
func (s *LocalStore) SaveUserData(data map[string]any) error {
	return s.merge(KeyUserData, data)
}

// UserData returns the stored user data. It is empty when nothing was saved.
func (s *LocalStore) UserData() (map[string]any, error) {
	return s.loadMap(KeyUserData)
}

// SaveProfileData shallow-merges data into the stored profile.
func (s *LocalStore) SaveProfileData(data map[string]any) error {
	return s.merge(KeyProfileData, data)
}

// ProfileData returns the stored profile. It is empty when nothing was saved.
func (s *LocalStore) ProfileData() (map[string]any, error) {
	return s.loadMap(KeyProfileData)
}

func (s *LocalStore) merge(key string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := map[string]any{}
	if err := s.read(key, &current); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	for k, v := range data {
		current[k] = v
	}
	return s.write(key, current)
}

func (s *LocalStore) loadMap(key string) (map[string]any, error) {
	m := map[string]any{}
	if err := s.Load(key, &m); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return m, nil
}

// SetOnboardingComplete records that onboarding finished.
func (s *LocalStore) SetOnboardingComplete(done bool) error {
	return s.Save(KeyOnboardingComplete, done)
}

// OnboardingComplete reports whether onboarding finished.
func (s *LocalStore) OnboardingComplete() (bool, error) {
	var done bool
	if err := s.Load(KeyOnboardingComplete, &done); err != nil && !errors.Is(err, ErrNotFound) {
		return false, err
	}
	return done, nil
}

type dailyTips struct {
	Date string   `json:"date"`
	Tips []string `json:"tips"`
}

// SaveDailyTips stores tips stamped with today's date.
func (s *LocalStore) SaveDailyTips(tips []string) error {
	return s.Save(KeyDailyTips, dailyTips{Date: s.now().Format(time.DateOnly), Tips: tips})
}

// DailyTips returns the tips saved today. Tips from an earlier day are
// treated as absent.
func (s *LocalStore) DailyTips() ([]string, bool, error) {
	var stored dailyTips
	if err := s.Load(KeyDailyTips, &stored); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if stored.Date != s.now().Format(time.DateOnly) {
		return nil, false, nil
	}
	return stored.Tips, true, nil
}

// SaveMealPlan stores the plan and resets the selection to all mains.
// The old selections are removed before the plan is written, so a failed
// save never pairs the new plan with them.
func (s *LocalStore) SaveMealPlan(plan *mealplan.Generated) error {
	state, err := mealplan.Initialize(plan.MealPlan.Days())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(KeySelections)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to reset %s: %w", KeySelections, err)
	}
	if err := s.write(KeyMealPlan, plan); err != nil {
		return err
	}
	return s.write(KeySelections, state)
}

// MealPlan returns the stored plan, or nil when none was saved.
func (s *LocalStore) MealPlan() (*mealplan.Generated, error) {
	var plan mealplan.Generated
	if err := s.Load(KeyMealPlan, &plan); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

// SaveSelections stores the selection state.
func (s *LocalStore) SaveSelections(state mealplan.SelectionState) error {
	return s.Save(KeySelections, state)
}

// Selections returns the stored selection state, or an empty one.
func (s *LocalStore) Selections() (mealplan.SelectionState, error) {
	state := mealplan.SelectionState{}
	if err := s.Load(KeySelections, &state); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return state, nil
}

// Clear removes the session keys. The onboarding flag survives.
func (s *LocalStore) Clear() error {
	for _, key := range sessionKeys {
		if err := s.Remove(key); err != nil {
			return err
		}
	}
	return nil
}

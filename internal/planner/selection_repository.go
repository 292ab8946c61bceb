package planner

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"nutrilanka/internal/database"
	"nutrilanka/internal/mealplan"
)

// SelectionRepository persists the main/alternative choice per plan.
type SelectionRepository struct {
	db *sql.DB
}

// NewSelectionRepository creates a new SelectionRepository.
func NewSelectionRepository(db *sql.DB) *SelectionRepository {
	return &SelectionRepository{db: db}
}

// Load returns the stored state for the plan, or a freshly initialized one
// when the plan has never been toggled.
func (r *SelectionRepository) Load(ctx context.Context, userID string, plan *StoredPlan) (mealplan.SelectionState, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		`SELECT state FROM meal_selections WHERE user_id = ? AND plan_id = ?`,
		userID, plan.ID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return mealplan.Initialize(plan.Days())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load selections for plan %s: %w", plan.ID, err)
	}

	state := mealplan.SelectionState{}
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to decode selections for plan %s: %w", plan.ID, err)
	}
	return state, nil
}

// Save stores the state for the plan, replacing any earlier state.
func (r *SelectionRepository) Save(ctx context.Context, userID, planID string, state mealplan.SelectionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal selections: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO meal_selections (user_id, plan_id, state, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, plan_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		userID, planID, string(data), database.FormatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save selections for plan %s: %w", planID, err)
	}
	return nil
}

package planner

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nutrilanka/internal/database"
	"nutrilanka/internal/mealplan"
)

// StoredPlan is a meal plan persisted for a user.
type StoredPlan struct {
	ID        string
	UserID    string
	Plan      *mealplan.Generated
	Active    bool
	CreatedAt time.Time
}

// Days returns the number of days in the stored plan.
func (s *StoredPlan) Days() int {
	return s.Plan.MealPlan.Days()
}

// PlanRepository is a database-backed repository for meal plans.
type PlanRepository struct {
	db *sql.DB
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(db *sql.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// Save stores plan as the user's active plan. Earlier plans are kept but
// marked inactive.
func (r *PlanRepository) Save(ctx context.Context, userID string, plan *mealplan.Generated) (*StoredPlan, error) {
	if err := plan.MealPlan.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal meal plan: %w", err)
	}

	stored := &StoredPlan{
		ID:        uuid.NewString(),
		UserID:    userID,
		Plan:      plan,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE meal_plans SET active = 0 WHERE user_id = ? AND active = 1`, userID); err != nil {
		return nil, fmt.Errorf("failed to deactivate meal plans for user %s: %w", userID, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO meal_plans (id, user_id, goal, source, plan_days, plan_data, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?)`,
		stored.ID, userID, plan.Goal, plan.Source, plan.MealPlan.Days(), string(data), database.FormatTime(stored.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert meal plan for user %s: %w", userID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit meal plan: %w", err)
	}
	return stored, nil
}

// Active returns the user's active plan, or nil when there is none.
func (r *PlanRepository) Active(ctx context.Context, userID string) (*StoredPlan, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, plan_data, active, created_at FROM meal_plans
		 WHERE user_id = ? AND active = 1
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`, userID)
	plan, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active meal plan for user %s: %w", userID, err)
	}
	return plan, nil
}

// ListRecentByUserID retrieves the N most recent meal plans for a given user.
func (r *PlanRepository) ListRecentByUserID(ctx context.Context, userID string, limit int) ([]StoredPlan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, plan_data, active, created_at FROM meal_plans
		 WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent meal plans for user %s: %w", userID, err)
	}
	defer rows.Close()

	var plans []StoredPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to list recent meal plans for user %s: %w", userID, err)
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(s scanner) (*StoredPlan, error) {
	var (
		p         StoredPlan
		data      string
		createdAt string
	)
	if err := s.Scan(&p.ID, &p.UserID, &data, &p.Active, &createdAt); err != nil {
		return nil, err
	}
	p.Plan = &mealplan.Generated{}
	if err := json.Unmarshal([]byte(data), p.Plan); err != nil {
		return nil, fmt.Errorf("failed to decode stored plan %s: %w", p.ID, err)
	}
	t, err := database.ParseTime(createdAt)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = t
	return &p, nil
}

package body

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"nutrilanka/internal/database"
)

// Record is one stored measurement with its derived values.
type Record struct {
	Measurements
	BMI         float64
	BMICategory Category
	Somatotype  string
	Date        time.Time
}

// MeasurementRepository persists measurement history in SQLite.
type MeasurementRepository struct {
	db *sql.DB
}

// NewMeasurementRepository creates a new MeasurementRepository.
func NewMeasurementRepository(db *sql.DB) *MeasurementRepository {
	return &MeasurementRepository{db: db}
}

// Save stores m for the user. BMI and category are derived from m.
func (r *MeasurementRepository) Save(ctx context.Context, userID string, m Measurements, somatotype string, at time.Time) (*Record, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal measurements: %w", err)
	}
	bmi := round(BMI(m.WeightKg, m.HeightCm), 2)
	rec := &Record{
		Measurements: m,
		BMI:          bmi,
		BMICategory:  CategoryFor(bmi),
		Somatotype:   somatotype,
		Date:         at.UTC(),
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO measurements (user_id, data, bmi, bmi_category, somatotype, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		userID, string(data), rec.BMI, string(rec.BMICategory), somatotype, database.FormatTime(at))
	if err != nil {
		return nil, fmt.Errorf("failed to save measurements for user %s: %w", userID, err)
	}
	return rec, nil
}

// Recent returns the user's latest measurements, newest first.
func (r *MeasurementRepository) Recent(ctx context.Context, userID string, limit int) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT data, bmi, bmi_category, somatotype, created_at FROM measurements
		 WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query measurements for user %s: %w", userID, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec       Record
			data      string
			category  string
			createdAt string
		)
		if err := rows.Scan(&data, &rec.BMI, &category, &rec.Somatotype, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan measurements: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &rec.Measurements); err != nil {
			return nil, fmt.Errorf("failed to decode measurements: %w", err)
		}
		rec.BMICategory = Category(category)
		if rec.Date, err = database.ParseTime(createdAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

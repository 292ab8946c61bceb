package database

import (
	"path/filepath"
	"testing"
	"time"
)

func TestNewDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.db")

	db, err := NewDB(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer db.Close()

	for _, table := range []string{"meal_plans", "meal_selections", "measurements", "chat_history", "execution_metrics"} {
		var name string
		err := db.SQL.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("Expected table %s to exist, got %v", table, err)
		}
	}

	t.Run("Reopen", func(t *testing.T) {
		again, err := NewDB(path)
		if err != nil {
			t.Fatalf("Expected migrations to be idempotent, got %v", err)
		}
		again.Close()
	})
}

func TestTimeRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 4, 8, 30, 0, 123456000, time.FixedZone("IST", 5*3600+1800))
	got, err := ParseTime(FormatTime(now))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !got.Equal(now) {
		t.Errorf("Expected %v, got %v", now, got)
	}
	if FormatTime(now) >= FormatTime(now.Add(time.Second)) {
		t.Error("Expected stored timestamps to sort in time order")
	}
}

package metrics

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"nutrilanka/internal/database"
	"nutrilanka/internal/shared"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "metrics.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db.SQL)
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	now := time.Now().UTC()
	records := []ExecutionMetric{
		{AgentName: AgentPlanner, Model: "gemini", PromptTokens: 100, CompletionTokens: 50, Timestamp: now},
		{AgentName: AgentChat, Model: "gemini", PromptTokens: 10, CompletionTokens: 5, Timestamp: now},
		{AgentName: AgentChat, Model: "gemini", PromptTokens: 1, CompletionTokens: 1, Timestamp: now.AddDate(0, 0, -30)},
	}
	for _, r := range records {
		if err := store.Record(ctx, r); err != nil {
			t.Fatalf("Failed to record metric: %v", err)
		}
	}

	usage, err := store.GetDailyUsage(ctx, 7)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(usage) != 1 {
		t.Fatalf("Expected 1 day of usage, got %d", len(usage))
	}
	if usage[0].TotalPrompt != 110 || usage[0].TotalCompletion != 55 || usage[0].TotalExecution != 2 {
		t.Errorf("Unexpected usage: %+v", usage[0])
	}
	if usage[0].Date != now.Format("2006-01-02") {
		t.Errorf("Expected date %s, got %s", now.Format("2006-01-02"), usage[0].Date)
	}

	deleted, err := store.Cleanup(ctx, 7)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted record, got %d", deleted)
	}
}

func TestRecordMetaSkipsEmptyUsage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.RecordMeta(ctx, shared.AgentMeta{AgentName: AgentPlanner}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := store.RecordMeta(ctx, shared.AgentMeta{
		AgentName: AgentPlanner,
		Usage:     shared.TokenUsage{PromptTokens: 3, Model: "m"},
		Latency:   time.Second,
	}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	usage, _ := store.GetDailyUsage(ctx, 1)
	if len(usage) != 1 || usage[0].TotalExecution != 1 {
		t.Errorf("Expected a single recorded execution, got %+v", usage)
	}
}

func TestGetSysHealth(t *testing.T) {
	h := GetSysHealth(t.TempDir())
	if h.Goroutines < 1 {
		t.Errorf("Expected at least one goroutine, got %d", h.Goroutines)
	}
	if h.DataDiskSize != "0 B" {
		t.Errorf("Expected empty dir to be 0 B, got %s", h.DataDiskSize)
	}
}

func TestFormatReport(t *testing.T) {
	report := FormatReport(
		[]DailyUsage{{Date: "2024-03-04", TotalPrompt: 1200, TotalCompletion: 34, TotalExecution: 3}},
		SysHealth{AllocMB: 4, SysMB: 12, Goroutines: 7, DataDiskSize: "1.0 KiB"},
	)
	for _, want := range []string{"2024-03-04: 1,234 tokens (3 execs)", "Goroutines: 7", "Disk data: 1.0 KiB"} {
		if !strings.Contains(report, want) {
			t.Errorf("Expected report to contain %q, got:\n%s", want, report)
		}
	}
	if !strings.Contains(FormatReport(nil, SysHealth{}), "no data yet") {
		t.Error("Expected empty usage note")
	}
}

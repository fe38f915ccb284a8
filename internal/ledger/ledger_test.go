package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "state", "ledger.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func TestRecordAndListOutcomes(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.RecordOutcome(ctx, Outcome{
		RunID:     "run-1",
		Region:    "Port Ashen",
		Phase:     PhaseText,
		Status:    StatusSucceeded,
		Worker:    1,
		Duration:  1500 * time.Millisecond,
		CreatedAt: now,
	}); err != nil {
		t.Fatalf("record first: %v", err)
	}
	if err := store.RecordOutcome(ctx, Outcome{
		RunID:     "run-1",
		Region:    "Greywood",
		Phase:     PhaseText,
		Status:    StatusFailed,
		Worker:    2,
		Error:     "quest #3 (Greywood): response is not valid JSON",
		CreatedAt: now.Add(time.Second),
	}); err != nil {
		t.Fatalf("record second: %v", err)
	}
	if err := store.RecordOutcome(ctx, Outcome{RunID: "run-2", Region: "Port Ashen", Phase: PhaseText, Status: StatusSucceeded, CreatedAt: now}); err != nil {
		t.Fatalf("record other run: %v", err)
	}

	outcomes, err := store.ListOutcomes(ctx, "run-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(outcomes))
	}
	if outcomes[0].Region != "Port Ashen" || outcomes[0].Duration != 1500*time.Millisecond || !outcomes[0].CreatedAt.Equal(now) {
		t.Fatalf("outcomes[0] = %+v", outcomes[0])
	}
	if outcomes[1].Status != StatusFailed || outcomes[1].Worker != 2 || outcomes[1].Error == "" {
		t.Fatalf("outcomes[1] = %+v", outcomes[1])
	}

	all, err := store.ListOutcomes(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("all outcomes = %d, %v", len(all), err)
	}

	succeeded, failed, err := store.Tally(ctx, "run-1")
	if err != nil || succeeded != 1 || failed != 1 {
		t.Fatalf("tally = %d/%d, %v", succeeded, failed, err)
	}
}

func TestRecordOutcomeValidation(t *testing.T) {
	store := openTempStore(t)
	cases := []Outcome{
		{},
		{RunID: "r", Phase: PhaseText, Status: StatusSucceeded},
		{RunID: "r", Region: "x", Status: StatusSucceeded},
		{RunID: "r", Region: "x", Phase: PhaseText, Status: "maybe"},
	}
	for _, outcome := range cases {
		if err := store.RecordOutcome(context.Background(), outcome); err == nil {
			t.Fatalf("expected validation error for %+v", outcome)
		}
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	for i := 0; i < 2; i++ {
		store, err := Open(context.Background(), path)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		if err := store.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
}

func TestUpSection(t *testing.T) {
	got := upSection("-- +migrate Up\nCREATE TABLE a (x INT);\n-- +migrate Down\nDROP TABLE a;")
	if got != "\nCREATE TABLE a (x INT);\n" {
		t.Fatalf("up = %q", got)
	}
	if upSection("SELECT 1;") != "SELECT 1;" {
		t.Fatalf("content without markers should pass through")
	}
}

func TestNilStore(t *testing.T) {
	var store *Store
	if err := store.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
	if err := store.RecordOutcome(context.Background(), Outcome{}); err == nil {
		t.Fatalf("expected error from nil store")
	}
}

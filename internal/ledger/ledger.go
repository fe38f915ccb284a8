// Package ledger keeps a sqlite record of how every region fared in every run.
// It is an audit trail only; resume decisions are made from the JSON
// snapshots, never from the ledger.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kingrea/worldforge/internal/ledger/migrations"
)

// Phases recorded in the ledger.
const (
	PhaseText       = "text"
	PhaseIllustrate = "illustrate"
)

// Statuses recorded in the ledger.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Outcome is one region's result for one phase of a run.
type Outcome struct {
	ID        int64
	RunID     string
	Region    string
	Phase     string
	Status    string
	Worker    int
	Duration  time.Duration
	Error     string
	CreatedAt time.Time
}

// Store is the sqlite-backed ledger.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the ledger at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("ledger: path is required")
	}
	clean := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(clean), 0o755); err != nil {
		return nil, fmt.Errorf("ledger: ensure dir: %w", err)
	}
	dsn := clean + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: run migrations: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the sqlite connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordOutcome appends one outcome.
func (s *Store) RecordOutcome(ctx context.Context, outcome Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("ledger: store is not configured")
	}
	outcome.RunID = strings.TrimSpace(outcome.RunID)
	outcome.Region = strings.TrimSpace(outcome.Region)
	outcome.Phase = strings.TrimSpace(outcome.Phase)
	outcome.Status = strings.TrimSpace(outcome.Status)
	outcome.Error = strings.TrimSpace(outcome.Error)
	switch {
	case outcome.RunID == "":
		return fmt.Errorf("ledger: run id is required")
	case outcome.Region == "":
		return fmt.Errorf("ledger: region is required")
	case outcome.Phase == "":
		return fmt.Errorf("ledger: phase is required")
	case outcome.Status != StatusSucceeded && outcome.Status != StatusFailed:
		return fmt.Errorf("ledger: unknown status %q", outcome.Status)
	}
	if outcome.CreatedAt.IsZero() {
		outcome.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO region_outcomes (
	run_id,
	region,
	phase,
	status,
	worker,
	duration_ms,
	last_error,
	created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		outcome.RunID,
		outcome.Region,
		outcome.Phase,
		outcome.Status,
		outcome.Worker,
		outcome.Duration.Milliseconds(),
		outcome.Error,
		outcome.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("ledger: record outcome: %w", err)
	}
	return nil
}

// ListOutcomes returns a run's outcomes oldest first. An empty runID lists
// every run.
func (s *Store) ListOutcomes(ctx context.Context, runID string) ([]Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("ledger: store is not configured")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT
	id,
	run_id,
	region,
	phase,
	status,
	worker,
	duration_ms,
	last_error,
	created_at
FROM region_outcomes
WHERE ? = '' OR run_id = ?
ORDER BY created_at ASC, id ASC
`, runID, runID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []Outcome
	for rows.Next() {
		var outcome Outcome
		var durationMS, createdAt int64
		if err := rows.Scan(
			&outcome.ID,
			&outcome.RunID,
			&outcome.Region,
			&outcome.Phase,
			&outcome.Status,
			&outcome.Worker,
			&durationMS,
			&outcome.Error,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("ledger: scan outcome: %w", err)
		}
		outcome.Duration = time.Duration(durationMS) * time.Millisecond
		outcome.CreatedAt = time.UnixMilli(createdAt).UTC()
		outcomes = append(outcomes, outcome)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate outcomes: %w", err)
	}
	return outcomes, nil
}

// Tally counts a run's outcomes by status.
func (s *Store) Tally(ctx context.Context, runID string) (succeeded, failed int, err error) {
	outcomes, err := s.ListOutcomes(ctx, runID)
	if err != nil {
		return 0, 0, err
	}
	for _, outcome := range outcomes {
		if outcome.Status == StatusSucceeded {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed, nil
}

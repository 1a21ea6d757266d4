package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05"

// SyncEvent records the outcome of one resource store operation.
type SyncEvent struct {
	Kind      string
	Operation string
	Outcome   string
	Latency   time.Duration
	Timestamp time.Time
}

// Store handles persistence of metrics to SQLite.
type Store struct {
	db *sql.DB
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record saves an event to the database.
func (s *Store) Record(ctx context.Context, e SyncEvent) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_events (kind, operation, outcome, latency_ms, timestamp) VALUES (?, ?, ?, ?, ?)`,
		e.Kind, e.Operation, e.Outcome, e.Latency.Milliseconds(), ts.UTC().Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("failed to record sync event: %w", err)
	}
	return nil
}

// DailySummary is the count of one outcome on a single day.
type DailySummary struct {
	Date         string
	Outcome      string
	Count        int
	AvgLatencyMS float64
}

// GetDailySummary retrieves per-outcome totals for the last N days, newest
// day first.
func (s *Store) GetDailySummary(ctx context.Context, days int) ([]DailySummary, error) {
	since := time.Now().UTC().AddDate(0, 0, -days).Format(timestampLayout)
	rows, err := s.db.QueryContext(ctx, `
		SELECT substr(timestamp, 1, 10) AS day, outcome, COUNT(*), COALESCE(AVG(latency_ms), 0)
		FROM sync_events
		WHERE timestamp >= ?
		GROUP BY day, outcome
		ORDER BY day DESC, outcome ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily summary: %w", err)
	}
	defer rows.Close()

	var results []DailySummary
	for rows.Next() {
		var d DailySummary
		if err := rows.Scan(&d.Date, &d.Outcome, &d.Count, &d.AvgLatencyMS); err != nil {
			return nil, fmt.Errorf("failed to scan daily summary: %w", err)
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// Cleanup removes records older than the specified number of days.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := time.Now().UTC().AddDate(0, 0, -olderThanDays).Format(timestampLayout)
	res, err := s.db.ExecContext(ctx, `DELETE FROM sync_events WHERE timestamp < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up sync events: %w", err)
	}
	return res.RowsAffected()
}

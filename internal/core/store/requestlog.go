package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coinsync/coinsync/internal/core"
)

// SaveRequestOutcome appends one entry to the request ledger. The ledger is
// append-only; rows accumulate across runs of the same job until cleared.
func (s *Store) SaveRequestOutcome(ctx context.Context, outcome core.RequestOutcome) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	job := strings.TrimSpace(outcome.Job)
	if job == "" {
		return errors.New("job name is required")
	}
	endpoint := strings.TrimSpace(outcome.Endpoint)
	if endpoint == "" {
		return errors.New("endpoint is required")
	}

	ts := outcome.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	success := 0
	if outcome.Success {
		success = 1
	}

	_, err := s.exec(ctx, `
		INSERT INTO request_log (job, endpoint, success, status_code, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		job, endpoint, success, outcome.StatusCode,
		outcome.Latency.Milliseconds(), ts.Unix())
	if err != nil {
		return fmt.Errorf("failed to save request outcome: %w", err)
	}
	return nil
}

// RequestStats aggregates the request ledger for a job, one row per endpoint
// ordered by endpoint name. A job without ledger entries yields an empty
// slice.
func (s *Store) RequestStats(ctx context.Context, job string) ([]core.RequestStats, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	job = strings.TrimSpace(job)
	if job == "" {
		return nil, errors.New("job name is required")
	}

	rows, err := s.query(ctx, `
		SELECT endpoint,
			COUNT(*),
			SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END),
			SUM(CASE WHEN status_code IN (429, 503) THEN 1 ELSE 0 END),
			AVG(latency_ms)
		FROM request_log
		WHERE job = ?
		GROUP BY endpoint
		ORDER BY endpoint`, job)
	if err != nil {
		return nil, fmt.Errorf("failed to read request stats: %w", err)
	}
	defer rows.Close() // nolint:errcheck // read-only cursor

	stats := make([]core.RequestStats, 0)
	for rows.Next() {
		var st core.RequestStats
		var avgLatency float64
		if err := rows.Scan(&st.Endpoint, &st.Requests, &st.Failures, &st.RateLimited, &avgLatency); err != nil {
			return nil, fmt.Errorf("failed to scan request stats: %w", err)
		}
		st.AvgLatencyMS = int64(avgLatency)
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read request stats: %w", err)
	}
	return stats, nil
}

// ClearRequestLog deletes a job's ledger entries. Idempotent.
func (s *Store) ClearRequestLog(ctx context.Context, job string) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	job = strings.TrimSpace(job)
	if job == "" {
		return errors.New("job name is required")
	}

	if _, err := s.exec(ctx, `DELETE FROM request_log WHERE job = ?`, job); err != nil {
		return fmt.Errorf("failed to clear request log: %w", err)
	}
	return nil
}

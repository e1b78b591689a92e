package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coinsync/coinsync/internal/core"
)

// DefaultCheckpointMaxAge bounds how old a checkpoint may be before it is
// treated as absent on load.
const DefaultCheckpointMaxAge = 24 * time.Hour

// SaveCheckpoint persists the progress record for a job, stamping a fresh
// last_checkpoint_at. The upsert runs in one statement, so readers never see
// a half-written record.
func (s *Store) SaveCheckpoint(ctx context.Context, job string, checkpoint *core.Checkpoint) error {
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
	if checkpoint == nil {
		return errors.New("checkpoint is required")
	}

	processedJSON, err := json.Marshal(checkpoint.ProcessedIDs)
	if err != nil {
		return fmt.Errorf("encode processed ids: %w", err)
	}
	failedJSON, err := json.Marshal(checkpoint.FailedIDs)
	if err != nil {
		return fmt.Errorf("encode failed ids: %w", err)
	}

	savedAt := time.Now().UTC()
	if !checkpoint.LastCheckpointAt.IsZero() {
		savedAt = checkpoint.LastCheckpointAt.UTC()
	}

	_, err = s.exec(ctx, `
		INSERT INTO checkpoints (job, status, total_entities, processed_count, last_processed_index,
			processed_ids, failed_ids, started_at, last_checkpoint_at, batch_size, checkpoint_frequency)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job) DO UPDATE SET
			status = excluded.status,
			total_entities = excluded.total_entities,
			processed_count = excluded.processed_count,
			last_processed_index = excluded.last_processed_index,
			processed_ids = excluded.processed_ids,
			failed_ids = excluded.failed_ids,
			started_at = excluded.started_at,
			last_checkpoint_at = excluded.last_checkpoint_at,
			batch_size = excluded.batch_size,
			checkpoint_frequency = excluded.checkpoint_frequency
	`, job, string(checkpoint.Status), checkpoint.TotalEntities, checkpoint.ProcessedCount,
		checkpoint.LastProcessedIndex, string(processedJSON), string(failedJSON),
		checkpoint.StartedAt.UTC().Unix(), savedAt.Unix(),
		checkpoint.BatchSize, checkpoint.CheckpointEvery)
	if err != nil {
		return fmt.Errorf("store checkpoint: %w", err)
	}

	return nil
}

// LoadCheckpoint returns the stored progress record for a job, or nil when it
// is absent, structurally invalid or expired. Stale and invalid rows are
// deleted as a side effect.
func (s *Store) LoadCheckpoint(ctx context.Context, job string) (*core.Checkpoint, error) {
	return s.loadCheckpoint(ctx, job, DefaultCheckpointMaxAge)
}

// LoadCheckpointMaxAge is LoadCheckpoint with an explicit expiry window.
func (s *Store) LoadCheckpointMaxAge(ctx context.Context, job string, maxAge time.Duration) (*core.Checkpoint, error) {
	return s.loadCheckpoint(ctx, job, maxAge)
}

func (s *Store) loadCheckpoint(ctx context.Context, job string, maxAge time.Duration) (*core.Checkpoint, error) {
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
	if maxAge <= 0 {
		maxAge = DefaultCheckpointMaxAge
	}

	var (
		status             string
		totalEntities      int
		processedCount     int
		lastProcessedIndex int
		processedJSON      string
		failedJSON         string
		startedAt          int64
		lastCheckpointAt   int64
		batchSize          int
		checkpointEvery    int
	)

	row := s.queryRow(ctx, `
		SELECT status, total_entities, processed_count, last_processed_index,
			processed_ids, failed_ids, started_at, last_checkpoint_at,
			batch_size, checkpoint_frequency
		FROM checkpoints
		WHERE job = ?
	`, job)

	if err := row.Scan(&status, &totalEntities, &processedCount, &lastProcessedIndex,
		&processedJSON, &failedJSON, &startedAt, &lastCheckpointAt,
		&batchSize, &checkpointEvery); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch checkpoint: %w", err)
	}

	checkpoint := &core.Checkpoint{
		Status:             core.CheckpointStatus(status),
		TotalEntities:      totalEntities,
		ProcessedCount:     processedCount,
		LastProcessedIndex: lastProcessedIndex,
		StartedAt:          time.Unix(startedAt, 0).UTC(),
		LastCheckpointAt:   time.Unix(lastCheckpointAt, 0).UTC(),
		BatchSize:          batchSize,
		CheckpointEvery:    checkpointEvery,
	}

	if err := json.Unmarshal([]byte(processedJSON), &checkpoint.ProcessedIDs); err != nil {
		_ = s.ClearCheckpoint(ctx, job)
		return nil, nil
	}
	if err := json.Unmarshal([]byte(failedJSON), &checkpoint.FailedIDs); err != nil {
		_ = s.ClearCheckpoint(ctx, job)
		return nil, nil
	}

	if time.Since(checkpoint.StartedAt) > maxAge {
		_ = s.ClearCheckpoint(ctx, job)
		return nil, nil
	}

	if !checkpoint.Valid() {
		_ = s.ClearCheckpoint(ctx, job)
		return nil, nil
	}

	return checkpoint, nil
}

// ClearCheckpoint removes the persisted record for a job. Idempotent.
func (s *Store) ClearCheckpoint(ctx context.Context, job string) error {
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

	if _, err := s.exec(ctx, `DELETE FROM checkpoints WHERE job = ?`, job); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

// ListCheckpoints returns the stored checkpoints keyed by job, without
// applying expiry. Used by the admin surface.
func (s *Store) ListCheckpoints(ctx context.Context) (map[string]*core.Checkpoint, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.query(ctx, `
		SELECT job, status, total_entities, processed_count, last_processed_index,
			processed_ids, failed_ids, started_at, last_checkpoint_at,
			batch_size, checkpoint_frequency
		FROM checkpoints
		ORDER BY job
	`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	out := make(map[string]*core.Checkpoint)
	for rows.Next() {
		var (
			job              string
			status           string
			startedAt        int64
			lastCheckpointAt int64
			processedJSON    string
			failedJSON       string
			checkpoint       core.Checkpoint
		)
		if err := rows.Scan(&job, &status, &checkpoint.TotalEntities, &checkpoint.ProcessedCount,
			&checkpoint.LastProcessedIndex, &processedJSON, &failedJSON,
			&startedAt, &lastCheckpointAt, &checkpoint.BatchSize, &checkpoint.CheckpointEvery); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}

		checkpoint.Status = core.CheckpointStatus(status)
		checkpoint.StartedAt = time.Unix(startedAt, 0).UTC()
		checkpoint.LastCheckpointAt = time.Unix(lastCheckpointAt, 0).UTC()
		_ = json.Unmarshal([]byte(processedJSON), &checkpoint.ProcessedIDs)
		_ = json.Unmarshal([]byte(failedJSON), &checkpoint.FailedIDs)

		out[job] = &checkpoint
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	return out, nil
}

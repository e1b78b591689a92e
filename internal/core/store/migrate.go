package store

import (
	"context"
	"errors"
	"fmt"
)

// Schema is shared between the libsql and postgres drivers, so no
// driver-specific column types or autoincrement keys.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS checkpoints (
		job TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		total_entities BIGINT NOT NULL,
		processed_count BIGINT NOT NULL,
		last_processed_index BIGINT NOT NULL,
		processed_ids TEXT NOT NULL,
		failed_ids TEXT NOT NULL,
		started_at BIGINT NOT NULL,
		last_checkpoint_at BIGINT NOT NULL,
		batch_size BIGINT NOT NULL,
		checkpoint_frequency BIGINT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS mapping_cache (
		job TEXT PRIMARY KEY,
		mapping TEXT NOT NULL,
		last_update BIGINT NOT NULL,
		source TEXT NOT NULL,
		partial_update BIGINT NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS request_log (
		job TEXT NOT NULL,
		endpoint TEXT NOT NULL,
		success BIGINT NOT NULL,
		status_code BIGINT NOT NULL,
		latency_ms BIGINT NOT NULL,
		created_at BIGINT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_request_log_job ON request_log (job, endpoint);`,
}

// Migrate ensures the required database tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	return nil
}

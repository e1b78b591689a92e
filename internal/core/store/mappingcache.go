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

// SaveMappingCache stores the incremental mapping record for a job,
// superseding any previous record wholesale.
func (s *Store) SaveMappingCache(ctx context.Context, job string, cache *core.MappingCache) error {
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
	if cache == nil {
		return errors.New("mapping cache is required")
	}

	mappingJSON, err := json.Marshal(cache.Mapping)
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}

	lastUpdate := cache.LastUpdate
	if lastUpdate.IsZero() {
		lastUpdate = time.Now().UTC()
	}

	partial := 0
	if cache.PartialUpdate {
		partial = 1
	}

	_, err = s.exec(ctx, `
		INSERT INTO mapping_cache (job, mapping, last_update, source, partial_update)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(job) DO UPDATE SET
			mapping = excluded.mapping,
			last_update = excluded.last_update,
			source = excluded.source,
			partial_update = excluded.partial_update
	`, job, string(mappingJSON), lastUpdate.UTC().Unix(), cache.Source, partial)
	if err != nil {
		return fmt.Errorf("store mapping cache: %w", err)
	}

	return nil
}

// LoadMappingCache returns the stored mapping record for a job, or nil when
// absent or unreadable.
func (s *Store) LoadMappingCache(ctx context.Context, job string) (*core.MappingCache, error) {
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

	var (
		mappingJSON string
		lastUpdate  int64
		source      string
		partial     int
	)

	row := s.queryRow(ctx, `
		SELECT mapping, last_update, source, partial_update
		FROM mapping_cache
		WHERE job = ?
	`, job)

	if err := row.Scan(&mappingJSON, &lastUpdate, &source, &partial); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch mapping cache: %w", err)
	}

	cache := &core.MappingCache{
		LastUpdate:    time.Unix(lastUpdate, 0).UTC(),
		Source:        source,
		PartialUpdate: partial != 0,
	}
	if err := json.Unmarshal([]byte(mappingJSON), &cache.Mapping); err != nil {
		// Unreadable rows behave like absent ones.
		return nil, nil
	}

	return cache, nil
}

// ClearMappingCache removes the stored mapping record for a job. Idempotent.
func (s *Store) ClearMappingCache(ctx context.Context, job string) error {
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

	if _, err := s.exec(ctx, `DELETE FROM mapping_cache WHERE job = ?`, job); err != nil {
		return fmt.Errorf("clear mapping cache: %w", err)
	}
	return nil
}

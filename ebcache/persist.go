// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

package ebcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/callmiy/ebnis-fe/ebnis"
)

// SchemaVersion is bumped whenever the persisted cache layout changes. A
// snapshot written under a different version is purged on restore instead
// of being migrated.
const SchemaVersion = "1.0"

const schemaVersionKey = "schema_version"

// Persistor snapshots the cache into SQLite so the app restarts with its
// offline data intact.
type Persistor struct {
	db *sql.DB
}

// NewPersistor prepares the snapshot tables on db.
func NewPersistor(db *sql.DB) (*Persistor, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	tables := []string{
		`CREATE TABLE IF NOT EXISTS _cache_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS _cache_records (
			key    TEXT PRIMARY KEY,
			record TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS _cache_unsynced (
			experience_id TEXT PRIMARY KEY,
			entry         TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS _cache_projection (
			experience_id TEXT PRIMARY KEY,
			row_json      TEXT NOT NULL,
			position      INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS _cache_list (
			experience_id TEXT PRIMARY KEY,
			position      INTEGER NOT NULL
		)`,
	}
	for _, ddl := range tables {
		if _, err := db.Exec(ddl); err != nil {
			return nil, fmt.Errorf("failed to create snapshot table: %w", err)
		}
	}
	return &Persistor{db: db}, nil
}

// Persist replaces the stored snapshot with the cache's current contents in
// one transaction.
func (p *Persistor) Persist(ctx context.Context, c *Cache) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"_cache_records", "_cache_unsynced", "_cache_projection", "_cache_list"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for key, raw := range c.Store.snapshot() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO _cache_records (key, record) VALUES (?, ?)`,
			key, string(raw)); err != nil {
			return fmt.Errorf("failed to persist record %s: %w", key, err)
		}
	}

	for id, entry := range c.Unsynced.snapshot() {
		raw, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to encode unsynced entry %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO _cache_unsynced (experience_id, entry) VALUES (?, ?)`,
			id, string(raw)); err != nil {
			return fmt.Errorf("failed to persist unsynced entry %s: %w", id, err)
		}
	}

	for i, row := range c.Projection.Rows() {
		raw, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to encode projection row %s: %w", row.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO _cache_projection (experience_id, row_json, position) VALUES (?, ?, ?)`,
			row.ID, string(raw), i); err != nil {
			return fmt.Errorf("failed to persist projection row %s: %w", row.ID, err)
		}
	}

	for i, exp := range c.Mini.List() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO _cache_list (experience_id, position) VALUES (?, ?)`,
			exp.ID, i); err != nil {
			return fmt.Errorf("failed to persist list position %s: %w", exp.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO _cache_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		schemaVersionKey, SchemaVersion); err != nil {
		return fmt.Errorf("failed to persist schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Restore loads the stored snapshot into c. A snapshot written under a
// different schema version is purged and restore reports restored=false,
// leaving c empty; the caller proceeds with a cold cache.
func (p *Persistor) Restore(ctx context.Context, c *Cache) (restored bool, err error) {
	var version string
	err = p.db.QueryRowContext(ctx,
		`SELECT value FROM _cache_meta WHERE key = ?`, schemaVersionKey).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read snapshot version: %w", err)
	}
	if version != SchemaVersion {
		if err := p.Purge(ctx); err != nil {
			return false, err
		}
		return false, nil
	}

	records := make(map[string]json.RawMessage)
	rows, err := p.db.QueryContext(ctx, `SELECT key, record FROM _cache_records`)
	if err != nil {
		return false, fmt.Errorf("failed to read snapshot records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key, record string
		if err := rows.Scan(&key, &record); err != nil {
			return false, fmt.Errorf("failed to scan snapshot record: %w", err)
		}
		records[key] = json.RawMessage(record)
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("failed to iterate snapshot records: %w", err)
	}

	unsynced := make(map[string]*ebnis.UnsyncedModifiedExperience)
	uRows, err := p.db.QueryContext(ctx, `SELECT experience_id, entry FROM _cache_unsynced`)
	if err != nil {
		return false, fmt.Errorf("failed to read unsynced snapshot: %w", err)
	}
	defer uRows.Close()
	for uRows.Next() {
		var id, raw string
		if err := uRows.Scan(&id, &raw); err != nil {
			return false, fmt.Errorf("failed to scan unsynced snapshot: %w", err)
		}
		entry := &ebnis.UnsyncedModifiedExperience{}
		if err := json.Unmarshal([]byte(raw), entry); err != nil {
			return false, fmt.Errorf("failed to decode unsynced entry %s: %w", id, err)
		}
		unsynced[id] = entry
	}
	if err := uRows.Err(); err != nil {
		return false, fmt.Errorf("failed to iterate unsynced snapshot: %w", err)
	}

	var projection []ebnis.SavedAndUnsavedExperience
	pRows, err := p.db.QueryContext(ctx,
		`SELECT row_json FROM _cache_projection ORDER BY position`)
	if err != nil {
		return false, fmt.Errorf("failed to read projection snapshot: %w", err)
	}
	defer pRows.Close()
	for pRows.Next() {
		var raw string
		if err := pRows.Scan(&raw); err != nil {
			return false, fmt.Errorf("failed to scan projection snapshot: %w", err)
		}
		var row ebnis.SavedAndUnsavedExperience
		if err := json.Unmarshal([]byte(raw), &row); err != nil {
			return false, fmt.Errorf("failed to decode projection row: %w", err)
		}
		projection = append(projection, row)
	}
	if err := pRows.Err(); err != nil {
		return false, fmt.Errorf("failed to iterate projection snapshot: %w", err)
	}

	var listIDs []string
	lRows, err := p.db.QueryContext(ctx,
		`SELECT experience_id FROM _cache_list ORDER BY position`)
	if err != nil {
		return false, fmt.Errorf("failed to read list snapshot: %w", err)
	}
	defer lRows.Close()
	for lRows.Next() {
		var id string
		if err := lRows.Scan(&id); err != nil {
			return false, fmt.Errorf("failed to scan list snapshot: %w", err)
		}
		listIDs = append(listIDs, id)
	}
	if err := lRows.Err(); err != nil {
		return false, fmt.Errorf("failed to iterate list snapshot: %w", err)
	}

	c.Store.restore(records)
	c.Unsynced.restore(unsynced)
	c.Projection.Write(projection)

	// The mini list is rebuilt from the restored records so the sync pass
	// sees every listed experience again, offline-created ones included.
	for _, id := range listIDs {
		exp, err := c.Store.ReadExperienceFragment(id)
		if err != nil {
			return false, fmt.Errorf("failed to rebuild list entry %s: %w", id, err)
		}
		if exp == nil {
			continue
		}
		c.Mini.Insert(exp)
	}
	return true, nil
}

// Purge drops the stored snapshot, including its version marker.
func (p *Persistor) Purge(ctx context.Context) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin purge transaction: %w", err)
	}
	defer tx.Rollback()
	for _, table := range []string{"_cache_records", "_cache_unsynced", "_cache_projection", "_cache_list", "_cache_meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to purge %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit purge: %w", err)
	}
	return nil
}

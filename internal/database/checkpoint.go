package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	keySchemaVersion = "schema_version"
	keyLastCycle     = "poll_last_cycle"
	keyOffset        = "poll_offset"
)

// Checkpoint is the poll loop's position, persisted so a restart resumes
// paging where the previous process stopped.
type Checkpoint struct {
	LastCycle time.Time `json:"lastCycle"`
	Offset    int       `json:"offset"`
}

// LoadCheckpoint returns the stored poll position. A ledger that never saw a
// cycle returns the zero Checkpoint.
func (d *Database) LoadCheckpoint(ctx context.Context) (cp Checkpoint, err error) {
	start := time.Now()
	defer func() { recordQuery("load_checkpoint", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		`SELECT key, value FROM metadata WHERE key IN (?, ?)`, keyLastCycle, keyOffset)
	if err != nil {
		return Checkpoint{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Checkpoint{}, err
		}
		switch key {
		case keyLastCycle:
			if cp.LastCycle, err = time.Parse(time.RFC3339, value); err != nil {
				return Checkpoint{}, fmt.Errorf("corrupt %s %q: %w", key, value, err)
			}
		case keyOffset:
			if cp.Offset, err = strconv.Atoi(value); err != nil || cp.Offset < 0 {
				return Checkpoint{}, fmt.Errorf("corrupt %s %q", key, value)
			}
		}
	}
	return cp, rows.Err()
}

// SaveCheckpoint stores cp, replacing the previous position.
func (d *Database) SaveCheckpoint(ctx context.Context, cp Checkpoint) (err error) {
	start := time.Now()
	defer func() { recordQuery("save_checkpoint", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	values := map[string]string{
		keyLastCycle: cp.LastCycle.UTC().Format(time.RFC3339),
		keyOffset:    strconv.Itoa(cp.Offset),
	}
	for key, value := range values {
		if err := setMeta(ctx, tx, key, value); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SchemaVersion returns the schema version written by the last migration.
func (d *Database) SchemaVersion(ctx context.Context) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var v string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, keySchemaVersion).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func setMeta(ctx context.Context, db execer, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoEntry is returned when the ledger has no row for a key.
var ErrNoEntry = errors.New("ledger entry not found")

// RecordOutcome stores the outcome of processing a candidate. A repeated
// key overwrites the previous outcome and increments the attempt count.
func (d *Database) RecordOutcome(ctx context.Context, e Entry) (err error) {
	start := time.Now()
	defer func() { recordQuery("record_outcome", start, err) }()

	if e.Key == "" {
		e.Key = EntryKey(e.UID, e.Path)
	}
	if e.Key == "path:" {
		return fmt.Errorf("record outcome: entry has neither uid nor path")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
	INSERT INTO entries (key, uid, path, fingerprint, outcome, detail, labels)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		uid = CASE WHEN excluded.uid != '' THEN excluded.uid ELSE entries.uid END,
		path = CASE WHEN excluded.path != '' THEN excluded.path ELSE entries.path END,
		fingerprint = CASE WHEN excluded.fingerprint != '' THEN excluded.fingerprint ELSE entries.fingerprint END,
		outcome = excluded.outcome,
		detail = excluded.detail,
		labels = excluded.labels,
		attempts = entries.attempts + 1,
		updated_at = strftime('%s', 'now')
	`, e.Key, e.UID, e.Path, e.Fingerprint, string(e.Outcome), e.Detail, e.Labels)
	return err
}

const entryColumns = `key, uid, path, fingerprint, outcome, detail, labels, attempts, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		e                  Entry
		outcome            string
		created, updatedAt int64
	)
	if err := row.Scan(&e.Key, &e.UID, &e.Path, &e.Fingerprint, &outcome, &e.Detail,
		&e.Labels, &e.Attempts, &created, &updatedAt); err != nil {
		return Entry{}, err
	}
	e.Outcome = Outcome(outcome)
	e.CreatedAt = time.Unix(created, 0)
	e.UpdatedAt = time.Unix(updatedAt, 0)
	return e, nil
}

// GetEntry returns the ledger row for key, or ErrNoEntry.
func (d *Database) GetEntry(ctx context.Context, key string) (e Entry, err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, ErrNoEntry) {
			recordQuery("get_entry", start, nil)
			return
		}
		recordQuery("get_entry", start, err)
	}()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	e, err = scanEntry(d.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE key = ?`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNoEntry, key)
	}
	return e, err
}

// IsTerminal reports whether uid already reached a terminal outcome.
func (d *Database) IsTerminal(ctx context.Context, uid string) (terminal bool, err error) {
	start := time.Now()
	defer func() { recordQuery("is_terminal", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var outcome string
	err = d.db.QueryRowContext(ctx, `SELECT outcome FROM entries WHERE key = ?`, uid).Scan(&outcome)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return Outcome(outcome).Terminal(), nil
}

// CountOutcomes returns the number of entries per outcome.
func (d *Database) CountOutcomes(ctx context.Context) (counts map[string]int, err error) {
	start := time.Now()
	defer func() { recordQuery("count_outcomes", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM entries GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts = make(map[string]int)
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err = rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[outcome] = n
	}
	err = rows.Err()
	return counts, err
}

// RecentEntries returns up to limit entries, most recently updated first.
func (d *Database) RecentEntries(ctx context.Context, limit int) (entries []Entry, err error) {
	start := time.Now()
	defer func() { recordQuery("recent_entries", start, err) }()

	if limit <= 0 {
		limit = 50
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries ORDER BY updated_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries = make([]Entry, 0, limit)
	for rows.Next() {
		e, scanErr := scanEntry(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		entries = append(entries, e)
	}
	err = rows.Err()
	return entries, err
}

// MarkSeen remembers that path was queued at the given fingerprint.
func (d *Database) MarkSeen(ctx context.Context, path, fingerprint string) (err error) {
	start := time.Now()
	defer func() { recordQuery("mark_seen", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
	INSERT INTO seen (path, fingerprint) VALUES (?, ?)
	ON CONFLICT(path) DO UPDATE SET
		fingerprint = excluded.fingerprint,
		seen_at = strftime('%s', 'now')
	`, path, fingerprint)
	return err
}

// IsSeen reports whether path was already queued at this fingerprint.
func (d *Database) IsSeen(ctx context.Context, path, fingerprint string) (seen bool, err error) {
	start := time.Now()
	defer func() { recordQuery("is_seen", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var stored string
	err = d.db.QueryRowContext(ctx, `SELECT fingerprint FROM seen WHERE path = ?`, path).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored == fingerprint, nil
}

// Prune deletes retryable entries and seen rows last touched before cutoff.
// Terminal entries are kept.
func (d *Database) Prune(ctx context.Context, cutoff time.Time) (removed int64, err error) {
	start := time.Now()
	defer func() { recordQuery("prune", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
	DELETE FROM entries
	WHERE updated_at < ? AND outcome NOT IN (?, ?, ?, ?)
	`, cutoff.Unix(), string(OutcomeLabeled), string(OutcomeAlreadyMarked),
		string(OutcomeNoMetadata), string(OutcomeNoLabels))
	if err != nil {
		return 0, err
	}
	n1, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM seen WHERE seen_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	n2, _ := res.RowsAffected()

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return n1 + n2, nil
}

// Forget deletes the entry for key and any seen row for its path so the
// candidate is processed again. It returns ErrNoEntry when key is unknown.
func (d *Database) Forget(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() { recordQuery("forget", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var path string
	err = d.db.QueryRowContext(ctx, `SELECT path FROM entries WHERE key = ?`, key).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNoEntry, key)
	}
	if err != nil {
		return err
	}

	if _, err = d.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key); err != nil {
		return err
	}
	if path != "" {
		_, err = d.db.ExecContext(ctx, `DELETE FROM seen WHERE path = ?`, path)
	}
	return err
}

// Package journal keeps a local audit trail of every broadcast attempt.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Outcome string

const (
	OutcomeDelivered  Outcome = "delivered"
	OutcomeFallback   Outcome = "fallback"
	OutcomeSuppressed Outcome = "suppressed"
)

type Entry struct {
	NoticeID   int       `json:"noticeId"`
	Kind       string    `json:"kind"`
	Outcome    Outcome   `json:"outcome"`
	Delivered  int       `json:"delivered"`
	Attempted  int       `json:"attempted"`
	RecordedAt time.Time `json:"recordedAt"`
}

// DefaultKeep is how many entries survive pruning.
const DefaultKeep = 5000

type Journal struct {
	db   *sql.DB
	keep int
}

// New returns a Journal over db, which must have the deliveries table.
func New(db *sql.DB, keep int) *Journal {
	if keep <= 0 {
		keep = DefaultKeep
	}
	return &Journal{db: db, keep: keep}
}

// Record appends e and drops entries beyond the newest keep.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO deliveries (notice_id, kind, outcome, delivered, attempted, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.NoticeID, e.Kind, string(e.Outcome), e.Delivered, e.Attempted, e.RecordedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("inserting delivery: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		DELETE FROM deliveries
		WHERE id NOT IN (SELECT id FROM deliveries ORDER BY id DESC LIMIT ?)
	`, j.keep)
	if err != nil {
		return fmt.Errorf("pruning deliveries: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT notice_id, kind, outcome, delivered, attempted, recorded_at
		FROM deliveries
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var outcome, recordedAt string
		if err := rows.Scan(&e.NoticeID, &e.Kind, &outcome, &e.Delivered, &e.Attempted, &recordedAt); err != nil {
			return nil, err
		}
		e.Outcome = Outcome(outcome)
		e.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing recorded_at %q: %w", recordedAt, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Package sqlite provides the SQLite-backed implementation of
// auditlog.Repository, writing to the checkout_logs table created by the
// store package.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rahulrai17/shoply-checkout/internal/checkout/auditlog"
	"github.com/rahulrai17/shoply-checkout/internal/store"
)

type Repository struct {
	db *sql.DB
}

// New wraps the shared store handle. The table is append-only: each row is
// an immutable event in the checkout's lifecycle.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Save inserts a new checkout log entry. It is safe to call concurrently.
func (r *Repository) Save(ctx context.Context, entry *auditlog.Entry) error {
	const q = `
		INSERT INTO checkout_logs
			(checkout_id, status, current_step, detail, trace_id, span_id, updated_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		entry.CheckoutID,
		string(entry.Status),
		entry.CurrentStep,
		entry.Detail,
		entry.TraceID,
		entry.SpanID,
		store.FormatTime(entry.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save checkout log for %q: %w", entry.CheckoutID, err)
	}
	return nil
}

// GetLatest returns the most recent log entry for a given checkout ID.
// Useful for a status endpoint and for tests.
func (r *Repository) GetLatest(ctx context.Context, checkoutID string) (*auditlog.Entry, error) {
	const q = `
		SELECT checkout_id, status, current_step, detail, trace_id, span_id, updated_at
		FROM   checkout_logs
		WHERE  checkout_id = ?
		ORDER  BY updated_at DESC, id DESC
		LIMIT  1`

	row := r.db.QueryRowContext(ctx, q, checkoutID)

	var entry auditlog.Entry
	var status, updatedAt string
	err := row.Scan(
		&entry.CheckoutID,
		&status,
		&entry.CurrentStep,
		&entry.Detail,
		&entry.TraceID,
		&entry.SpanID,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sqlite: checkout %q not found", checkoutID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get latest for %q: %w", checkoutID, err)
	}

	entry.Status = auditlog.Status(status)
	entry.UpdatedAt, err = store.ParseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

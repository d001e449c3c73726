package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rahulrai17/shoply-checkout/internal/store"
)

// Sweeper releases HELD reservations whose deadline has passed. In normal
// operation checkouts commit or release synchronously and the sweeper finds
// nothing; it exists for the crash window between reserve and commit.
type Sweeper struct {
	db       *sql.DB
	ledger   *Ledger
	interval time.Duration
	now      func() time.Time
}

func NewSweeper(db *sql.DB, ledger *Ledger, interval time.Duration) *Sweeper {
	return &Sweeper{db: db, ledger: ledger, interval: interval, now: time.Now}
}

// Run sweeps on every tick until ctx is cancelled. Call it in a goroutine
// from main.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "reservation sweep failed", "error", err)
			} else if n > 0 {
				slog.WarnContext(ctx, "released stranded reservations", "count", n)
			}
		}
	}
}

// SweepOnce releases all currently expired holds and returns how many.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	const query = `SELECT token FROM reservations WHERE state = ? AND expires_at <= ?`

	rows, err := s.db.QueryContext(ctx, query, string(StateHeld), store.FormatTime(s.now()))
	if err != nil {
		return 0, fmt.Errorf("inventory: list expired holds: %w", err)
	}

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			rows.Close()
			return 0, fmt.Errorf("inventory: scan expired hold: %w", err)
		}
		tokens = append(tokens, token)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("inventory: list expired holds: %w", err)
	}

	released := 0
	for _, token := range tokens {
		err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			return s.ledger.Release(ctx, tx, token)
		})
		switch {
		case err == nil:
			released++
		case errors.Is(err, ErrReservationClosed):
			// A racing checkout finished between the scan and the release.
		default:
			return released, err
		}
	}
	return released, nil
}

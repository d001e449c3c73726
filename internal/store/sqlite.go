// Package store owns the SQLite database that backs the checkout engine.
//
// WAL mode is enabled on Open so that readers never block writers and vice
// versa, which matters because the reservation sweeper reads while a checkout
// transaction may be writing.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	// Register the pure-Go SQLite driver.
	// We use modernc.org/sqlite instead of mattn/go-sqlite3 to avoid CGO
	// requirements, making it easier to build and run in Docker (Alpine).
	_ "modernc.org/sqlite"
)

// schema is the DDL executed once on startup.
const schema = `
CREATE TABLE IF NOT EXISTS products (
    -- Catalog identifier, supplied by the catalog collaborator.
    id          TEXT    PRIMARY KEY,

    name        TEXT    NOT NULL,

    -- List price and discount percentage as maintained by the catalog.
    price       REAL    NOT NULL,
    discount    REAL    NOT NULL DEFAULT 0,

    -- Available stock. The CHECK is a backstop: the ledger's guarded
    -- UPDATEs are the real enforcement of quantity >= 0.
    quantity    INTEGER NOT NULL CHECK (quantity >= 0)
);

CREATE TABLE IF NOT EXISTS carts (
    id          TEXT    PRIMARY KEY,

    -- One cart per user.
    user_id     TEXT    NOT NULL UNIQUE,

    -- Cached total, maintained incrementally on every cart mutation.
    total_price REAL    NOT NULL DEFAULT 0,

    created_at  TEXT    NOT NULL,
    updated_at  TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS cart_items (
    cart_id     TEXT    NOT NULL REFERENCES carts(id),
    product_id  TEXT    NOT NULL REFERENCES products(id),

    quantity    INTEGER NOT NULL CHECK (quantity > 0),

    -- Price snapshot taken when the item was added (discount already applied).
    unit_price  REAL    NOT NULL,
    discount    REAL    NOT NULL DEFAULT 0,

    added_at    TEXT    NOT NULL,

    -- At most one line item per product per cart.
    PRIMARY KEY (cart_id, product_id)
);

CREATE TABLE IF NOT EXISTS reservations (
    -- Opaque reservation token handed back by the ledger.
    token       TEXT    PRIMARY KEY,

    product_id  TEXT    NOT NULL REFERENCES products(id),
    quantity    INTEGER NOT NULL,

    -- HELD, COMMITTED or RELEASED. The stock decrement happens when the
    -- row is created; COMMITTED/RELEASED only record the outcome.
    state       TEXT    NOT NULL,

    created_at  TEXT    NOT NULL,

    -- Holds that outlive this deadline are released by the sweeper.
    expires_at  TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reservations_state ON reservations(state, expires_at);

CREATE TABLE IF NOT EXISTS orders (
    id              TEXT    PRIMARY KEY,
    user_id         TEXT    NOT NULL,
    address_id      TEXT    NOT NULL,
    payment_method  TEXT    NOT NULL,
    payment_ref     TEXT    NOT NULL DEFAULT '',
    total_amount    REAL    NOT NULL,
    status          TEXT    NOT NULL,
    created_at      TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id, created_at);

-- Append-only once written: order items are the frozen copy of the cart at
-- the moment the order was placed.
CREATE TABLE IF NOT EXISTS order_items (
    order_id    TEXT    NOT NULL REFERENCES orders(id),
    product_id  TEXT    NOT NULL,
    quantity    INTEGER NOT NULL,
    unit_price  REAL    NOT NULL,
    discount    REAL    NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);

CREATE TABLE IF NOT EXISTS checkout_logs (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,

    -- Business identifier: the checkout/order ID. Not UNIQUE because
    -- multiple rows exist per checkout (one per transition).
    checkout_id   TEXT    NOT NULL,

    status        TEXT    NOT NULL,
    current_step  TEXT    NOT NULL DEFAULT '',
    detail        TEXT    NOT NULL DEFAULT '',

    -- W3C trace/span ids from the active OTel span, for jumping from a log
    -- row directly to the distributed trace.
    trace_id      TEXT    NOT NULL DEFAULT '',
    span_id       TEXT    NOT NULL DEFAULT '',

    updated_at    TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checkout_logs_id ON checkout_logs(checkout_id, updated_at);
`

// Querier is the subset of *sql.DB and *sql.Tx the repositories need.
// Passing it explicitly makes the unit of work visible at every call site:
// operations that must be atomic share one *sql.Tx, everything else gets
// the plain *sql.DB.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ErrBusy marks a transient lock/serialization conflict. Callers may retry;
// the checkout coordinator is the only place that does.
var ErrBusy = errors.New("store: database busy")

// Open opens (or creates) the SQLite database at the given path and applies
// the schema. WAL mode is enabled for better concurrent read/write performance.
//
//	db, err := store.Open("./data/checkout.db")
func Open(path string) (*sql.DB, error) {
	// The pure-Go driver uses _pragma query parameters to configure connection state.
	// WAL enables concurrent readers. foreign_keys=on enforces integrity.
	// busy_timeout waits for locks instead of failing immediately.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	// Use "sqlite", not "sqlite3" for the modernc driver.
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection. Keeping the pool
	// at one connection also serializes checkout transactions, which is the
	// coarse lock the per-product guarded UPDATEs sit under.
	db.SetMaxOpenConns(1)

	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// WithTx runs fn inside a transaction, committing on nil error and rolling
// back otherwise. Rollback errors are swallowed: the driver reports the
// original failure, which is the one the caller cares about.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("store: begin tx: %w", err))
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("store: commit: %w", err))
	}
	return nil
}

// IsBusy reports whether err is (or wraps) a transient conflict.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}

// classify tags driver-level lock conflicts with ErrBusy so callers can
// decide retry-vs-surface without string matching at every call site.
// This is the single place the driver's error text is inspected.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY") {
		return fmt.Errorf("%w: %v", ErrBusy, err)
	}
	return err
}

// applySchema runs the DDL statements once. Idempotent due to IF NOT EXISTS.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("store: apply schema: %w", err)
	}
	return nil
}

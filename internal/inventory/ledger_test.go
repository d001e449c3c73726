package inventory

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahulrai17/shoply-checkout/internal/catalog"
	"github.com/rahulrai17/shoply-checkout/internal/store"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedProduct(t *testing.T, db *sql.DB, id string, quantity int) {
	t.Helper()
	products := catalog.NewRepository()
	err := products.Upsert(context.Background(), db, &catalog.Product{
		ID: id, Name: "test " + id, Price: 10, Quantity: quantity,
	})
	require.NoError(t, err)
}

func stockOf(t *testing.T, db *sql.DB, id string) int {
	t.Helper()
	n, err := NewLedger(0).Available(context.Background(), db, id)
	require.NoError(t, err)
	return n
}

func TestTryReserve_DecrementsStock(t *testing.T) {
	db := openTestDB(t)
	seedProduct(t, db, "prod_1", 5)
	ledger := NewLedger(0)

	r, err := ledger.TryReserve(context.Background(), db, "prod_1", 3)
	require.NoError(t, err)

	assert.NotEmpty(t, r.Token)
	assert.Equal(t, "prod_1", r.ProductID)
	assert.Equal(t, 3, r.Quantity)
	assert.Equal(t, StateHeld, r.State)
	assert.Equal(t, 2, stockOf(t, db, "prod_1"))
}

func TestTryReserve_InsufficientStock(t *testing.T) {
	db := openTestDB(t)
	seedProduct(t, db, "prod_1", 2)
	ledger := NewLedger(0)

	_, err := ledger.TryReserve(context.Background(), db, "prod_1", 3)

	var insufficient InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "prod_1", insufficient.ProductID)
	assert.Equal(t, 3, insufficient.Requested)
	assert.Equal(t, 2, insufficient.Available)

	// Failure must leave stock untouched.
	assert.Equal(t, 2, stockOf(t, db, "prod_1"))
}

func TestTryReserve_UnknownProduct(t *testing.T) {
	db := openTestDB(t)
	ledger := NewLedger(0)

	_, err := ledger.TryReserve(context.Background(), db, "ghost", 1)

	var notFound catalog.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "ghost", notFound.ID)
}

func TestTryReserve_RejectsNonPositiveAmount(t *testing.T) {
	db := openTestDB(t)
	seedProduct(t, db, "prod_1", 5)
	ledger := NewLedger(0)

	_, err := ledger.TryReserve(context.Background(), db, "prod_1", 0)
	assert.Error(t, err)
	_, err = ledger.TryReserve(context.Background(), db, "prod_1", -2)
	assert.Error(t, err)
	assert.Equal(t, 5, stockOf(t, db, "prod_1"))
}

func TestRelease_RestoresStockExactlyOnce(t *testing.T) {
	db := openTestDB(t)
	seedProduct(t, db, "prod_1", 5)
	ledger := NewLedger(0)
	ctx := context.Background()

	r, err := ledger.TryReserve(ctx, db, "prod_1", 4)
	require.NoError(t, err)
	require.Equal(t, 1, stockOf(t, db, "prod_1"))

	require.NoError(t, ledger.Release(ctx, db, r.Token))
	assert.Equal(t, 5, stockOf(t, db, "prod_1"))

	// Releasing the same reservation twice must not restock twice.
	err = ledger.Release(ctx, db, r.Token)
	assert.ErrorIs(t, err, ErrReservationClosed)
	assert.Equal(t, 5, stockOf(t, db, "prod_1"))
}

func TestCommit_MakesReservationFinal(t *testing.T) {
	db := openTestDB(t)
	seedProduct(t, db, "prod_1", 5)
	ledger := NewLedger(0)
	ctx := context.Background()

	r, err := ledger.TryReserve(ctx, db, "prod_1", 2)
	require.NoError(t, err)
	require.NoError(t, ledger.Commit(ctx, db, r.Token))

	got, err := ledger.Get(ctx, db, r.Token)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, got.State)

	// A committed reservation cannot be released and cannot hand stock back.
	err = ledger.Release(ctx, db, r.Token)
	assert.ErrorIs(t, err, ErrReservationClosed)
	assert.Equal(t, 3, stockOf(t, db, "prod_1"))

	// Nor committed twice.
	err = ledger.Commit(ctx, db, r.Token)
	assert.ErrorIs(t, err, ErrReservationClosed)
}

func TestAdjustStock(t *testing.T) {
	db := openTestDB(t)
	seedProduct(t, db, "prod_1", 2)
	ledger := NewLedger(0)
	ctx := context.Background()

	require.NoError(t, ledger.AdjustStock(ctx, db, "prod_1", 8))
	assert.Equal(t, 10, stockOf(t, db, "prod_1"))

	require.NoError(t, ledger.AdjustStock(ctx, db, "prod_1", -10))
	assert.Equal(t, 0, stockOf(t, db, "prod_1"))

	// A correction below zero is refused, quantity unchanged.
	err := ledger.AdjustStock(ctx, db, "prod_1", -1)
	var insufficient InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 0, stockOf(t, db, "prod_1"))
}

func TestConcurrentReserve_LastUnit(t *testing.T) {
	db := openTestDB(t)
	seedProduct(t, db, "prod_1", 1)
	ledger := NewLedger(0)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ledger.TryReserve(context.Background(), db, "prod_1", 1)
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		var insufficient InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
		lost++
	}
	assert.Equal(t, 1, won, "exactly one reservation must win")
	assert.Equal(t, 1, lost, "the loser must get a typed shortfall, not a crash")
	assert.Equal(t, 0, stockOf(t, db, "prod_1"))
}

func TestNoDoubleSpendAccounting(t *testing.T) {
	db := openTestDB(t)
	const initial = 20
	seedProduct(t, db, "prod_1", initial)
	ledger := NewLedger(0)
	ctx := context.Background()

	// A mixed history: some commits, a release, an open hold.
	r1, err := ledger.TryReserve(ctx, db, "prod_1", 5)
	require.NoError(t, err)
	require.NoError(t, ledger.Commit(ctx, db, r1.Token))

	r2, err := ledger.TryReserve(ctx, db, "prod_1", 4)
	require.NoError(t, err)
	require.NoError(t, ledger.Release(ctx, db, r2.Token))

	_, err = ledger.TryReserve(ctx, db, "prod_1", 3)
	require.NoError(t, err)

	var committed, held int
	err = db.QueryRow(`SELECT COALESCE(SUM(quantity), 0) FROM reservations WHERE state = ?`,
		string(StateCommitted)).Scan(&committed)
	require.NoError(t, err)
	err = db.QueryRow(`SELECT COALESCE(SUM(quantity), 0) FROM reservations WHERE state = ?`,
		string(StateHeld)).Scan(&held)
	require.NoError(t, err)

	assert.Equal(t, initial, stockOf(t, db, "prod_1")+committed+held,
		"available + committed + held must equal the original stock")
}

func TestReservationExpiryIsRecorded(t *testing.T) {
	db := openTestDB(t)
	seedProduct(t, db, "prod_1", 5)
	ledger := NewLedger(time.Minute)

	r, err := ledger.TryReserve(context.Background(), db, "prod_1", 1)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), r.ExpiresAt, 5*time.Second)
}

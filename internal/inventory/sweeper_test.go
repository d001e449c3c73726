package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepOnce_ReleasesExpiredHolds(t *testing.T) {
	db := openTestDB(t)
	seedProduct(t, db, "prod_1", 5)
	ledger := NewLedger(time.Millisecond)
	ctx := context.Background()

	_, err := ledger.TryReserve(ctx, db, "prod_1", 3)
	require.NoError(t, err)
	require.Equal(t, 2, stockOf(t, db, "prod_1"))

	time.Sleep(10 * time.Millisecond)

	sweeper := NewSweeper(db, ledger, time.Hour)
	released, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, released)
	assert.Equal(t, 5, stockOf(t, db, "prod_1"), "expired hold returns its quantity")

	// Sweeping again finds nothing: release is idempotent.
	released, err = sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, released)
	assert.Equal(t, 5, stockOf(t, db, "prod_1"))
}

func TestSweepOnce_LeavesLiveAndSettledHoldsAlone(t *testing.T) {
	db := openTestDB(t)
	seedProduct(t, db, "prod_1", 10)
	ctx := context.Background()

	// A hold that is still live.
	live := NewLedger(time.Hour)
	_, err := live.TryReserve(ctx, db, "prod_1", 2)
	require.NoError(t, err)

	// An expired hold that a racing checkout already committed.
	quick := NewLedger(time.Millisecond)
	r, err := quick.TryReserve(ctx, db, "prod_1", 3)
	require.NoError(t, err)
	require.NoError(t, quick.Commit(ctx, db, r.Token))

	time.Sleep(10 * time.Millisecond)

	sweeper := NewSweeper(db, live, time.Hour)
	released, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, released)
	assert.Equal(t, 5, stockOf(t, db, "prod_1"), "neither live nor committed holds are reclaimed")
}

package order

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahulrai17/shoply-checkout/internal/store"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func placedOrder(userID string) *Order {
	return &Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		AddressID:     "addr-1",
		PaymentMethod: "card",
		PaymentRef:    "tok_123",
		TotalAmount:   50,
		Status:        StatusPlaced,
		Items: []Item{
			{ProductID: "prod_a", Quantity: 3, UnitPrice: 10},
			{ProductID: "prod_b", Quantity: 1, UnitPrice: 20},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestCreateAndGet(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	want := placedOrder("alice@example.com")
	require.NoError(t, repo.Create(ctx, db, want))

	got, err := repo.Get(ctx, want.ID)
	require.NoError(t, err)

	assert.Equal(t, want.UserID, got.UserID)
	assert.Equal(t, StatusPlaced, got.Status)
	assert.InDelta(t, 50.0, got.TotalAmount, 1e-9)
	require.Len(t, got.Items, 2)

	var sum float64
	for _, it := range got.Items {
		sum += it.Subtotal()
	}
	assert.InDelta(t, got.TotalAmount, sum, 1e-9, "line items must sum to the order total")
}

func TestGet_NotFound(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)

	_, err := repo.Get(context.Background(), "ghost")
	var notFound NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestListByUser_NewestFirst(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	older := placedOrder("alice@example.com")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := placedOrder("alice@example.com")
	other := placedOrder("bob@example.com")

	for _, o := range []*Order{older, newer, other} {
		require.NoError(t, repo.Create(ctx, db, o))
	}

	list, err := repo.ListByUser(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
}

func TestUpdateStatus_ForwardOnly(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	o := placedOrder("alice@example.com")
	require.NoError(t, repo.Create(ctx, db, o))

	require.NoError(t, repo.UpdateStatus(ctx, o.ID, StatusShipped))
	require.NoError(t, repo.UpdateStatus(ctx, o.ID, StatusDelivered))

	// Moving backwards is refused with the attempted transition spelled out.
	err := repo.UpdateStatus(ctx, o.ID, StatusProcessing)
	var invalid InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, StatusDelivered, invalid.From)
	assert.Equal(t, StatusProcessing, invalid.To)

	// Delivered orders cannot be cancelled.
	err = repo.UpdateStatus(ctx, o.ID, StatusCancelled)
	require.ErrorAs(t, err, &invalid)

	got, err := repo.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, got.Status)
}

func TestUpdateStatus_CancelBeforeDelivery(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	o := placedOrder("alice@example.com")
	require.NoError(t, repo.Create(ctx, db, o))

	require.NoError(t, repo.UpdateStatus(ctx, o.ID, StatusCancelled))

	got, err := repo.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
}

func TestUpdateStatus_UnknownOrder(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)

	err := repo.UpdateStatus(context.Background(), "ghost", StatusShipped)
	var notFound NotFoundError
	require.ErrorAs(t, err, &notFound)
}

package events

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahulrai17/shoply-checkout/internal/cart"
	"github.com/rahulrai17/shoply-checkout/internal/catalog"
	"github.com/rahulrai17/shoply-checkout/internal/inventory"
	"github.com/rahulrai17/shoply-checkout/internal/store"
)

// memCache is an in-process cache.Cache used to observe invalidations.
type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string]string)}
}

func (m *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *memCache) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memCache) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memCache) GenerateKey(operation, key string) string {
	return fmt.Sprintf("test:%s:%s", operation, key)
}

func (m *memCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

type deps struct {
	db        *sql.DB
	products  *catalog.Repository
	ledger    *inventory.Ledger
	carts     *cart.Store
	cache     *memCache
	snapshots *catalog.StockSnapshot
	listener  *Listener
}

func newDeps(t *testing.T) *deps {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	d := &deps{
		db:       db,
		products: catalog.NewRepository(),
		ledger:   inventory.NewLedger(0),
		cache:    newMemCache(),
	}
	d.snapshots = catalog.NewStockSnapshot(d.products, d.cache, time.Minute)
	d.carts = cart.NewStore(db, d.products, nil)
	d.listener = NewListener(db, d.products, d.ledger, d.carts, d.snapshots)
	return d
}

func (d *deps) seed(t *testing.T, p catalog.Product) {
	t.Helper()
	require.NoError(t, d.products.Upsert(context.Background(), d.db, &p))
}

func TestHandleRestock(t *testing.T) {
	d := newDeps(t)
	ctx := context.Background()
	d.seed(t, catalog.Product{ID: "prod_a", Name: "A", Price: 10, Quantity: 5})

	// Warm the advisory cache, then restock.
	n, ok := d.snapshots.Available(ctx, d.db, "prod_a")
	require.True(t, ok)
	require.Equal(t, 5, n)
	key := d.cache.GenerateKey("stock", "prod_a")
	require.True(t, d.cache.has(key))

	require.NoError(t, d.listener.HandleRestock(ctx, "prod_a", 7))

	assert.False(t, d.cache.has(key), "restock must drop the cached figure")
	n, ok = d.snapshots.Available(ctx, d.db, "prod_a")
	require.True(t, ok)
	assert.Equal(t, 12, n)
}

func TestHandleRestock_NegativeCorrection(t *testing.T) {
	d := newDeps(t)
	ctx := context.Background()
	d.seed(t, catalog.Product{ID: "prod_a", Name: "A", Price: 10, Quantity: 5})

	require.NoError(t, d.listener.HandleRestock(ctx, "prod_a", -3))

	n, ok := d.snapshots.Available(ctx, d.db, "prod_a")
	require.True(t, ok)
	assert.Equal(t, 2, n)

	// A correction may not push stock below zero.
	err := d.listener.HandleRestock(ctx, "prod_a", -10)
	var insufficient inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
}

func TestHandlePriceChange_RepricesAffectedCarts(t *testing.T) {
	d := newDeps(t)
	ctx := context.Background()
	d.seed(t, catalog.Product{ID: "prod_a", Name: "A", Price: 10, Quantity: 50})
	d.seed(t, catalog.Product{ID: "prod_b", Name: "B", Price: 30, Quantity: 50})

	// Alice holds the product, Bob does not.
	_, err := d.carts.AddItem(ctx, "alice@example.com", "prod_a", 2)
	require.NoError(t, err)
	_, err = d.carts.AddItem(ctx, "bob@example.com", "prod_b", 1)
	require.NoError(t, err)

	require.NoError(t, d.listener.HandlePriceChange(ctx, "prod_a", 8, 25))

	alice, err := d.carts.GetCart(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.InDelta(t, 6.0, alice.Items[0].UnitPrice, 1e-9) // 8 - 8*25/100
	assert.Equal(t, 25.0, alice.Items[0].Discount)
	assert.InDelta(t, 12.0, alice.TotalPrice, 1e-9)

	bob, err := d.carts.GetCart(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.InDelta(t, 30.0, bob.Items[0].UnitPrice, 1e-9, "unrelated carts keep their snapshot")
}

func TestHandlePriceChange_UnknownProduct(t *testing.T) {
	d := newDeps(t)

	err := d.listener.HandlePriceChange(context.Background(), "ghost", 5, 0)
	var notFound catalog.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestStockSnapshot_ServesCachedFigure(t *testing.T) {
	d := newDeps(t)
	ctx := context.Background()
	d.seed(t, catalog.Product{ID: "prod_a", Name: "A", Price: 10, Quantity: 5})

	n, ok := d.snapshots.Available(ctx, d.db, "prod_a")
	require.True(t, ok)
	require.Equal(t, 5, n)

	// A direct DB change is invisible until invalidation: the advisory read
	// keeps answering from cache.
	require.NoError(t, d.ledger.AdjustStock(ctx, d.db, "prod_a", 10))
	n, ok = d.snapshots.Available(ctx, d.db, "prod_a")
	require.True(t, ok)
	assert.Equal(t, 5, n)

	d.snapshots.Invalidate(ctx, "prod_a")
	n, ok = d.snapshots.Available(ctx, d.db, "prod_a")
	require.True(t, ok)
	assert.Equal(t, 15, n)
}

func TestStockSnapshot_UnknownProduct(t *testing.T) {
	d := newDeps(t)

	_, ok := d.snapshots.Available(context.Background(), d.db, "ghost")
	assert.False(t, ok)
}

package catalog

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/rahulrai17/shoply-checkout/internal/pkg/cache"
	"github.com/rahulrai17/shoply-checkout/internal/store"
)

// DefaultSnapshotTTL bounds how stale an advisory availability figure may be.
const DefaultSnapshotTTL = 30 * time.Second

// StockSnapshot serves best-effort availability figures for the cart's soft
// checks, backed by Redis with a DB fallback. It deliberately does not
// participate in any transaction: a stale answer here is fine, because the
// checkout's reservation is the only authoritative check.
//
// It satisfies the cart package's StockAdvisor interface.
type StockSnapshot struct {
	products *Repository
	cache    cache.Cache
	ttl      time.Duration
}

func NewStockSnapshot(products *Repository, c cache.Cache, ttl time.Duration) *StockSnapshot {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &StockSnapshot{products: products, cache: c, ttl: ttl}
}

// Available returns the advisory available quantity. ok=false means no
// snapshot could be obtained (unknown product, or store unreachable) and the
// caller should skip the soft check.
//
// The DB fallback reads through q, never a handle of its own: with the pool
// capped at one connection, a caller mid-transaction passing its *sql.Tx is
// the only way this read can make progress.
func (s *StockSnapshot) Available(ctx context.Context, q store.Querier, productID string) (int, bool) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, s.cacheKey(productID)); err == nil && raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				return n, true
			}
		}
	}

	p, err := s.products.Get(ctx, q, productID)
	if err != nil {
		return 0, false
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, s.cacheKey(productID), strconv.Itoa(p.Quantity), s.ttl); err != nil {
			// Cache failures degrade to DB reads; nothing to do but note it.
			slog.DebugContext(ctx, "stock snapshot cache write failed",
				"product_id", productID, "error", err)
		}
	}
	return p.Quantity, true
}

// Invalidate drops the cached figure after a restock or price change so the
// next advisory read re-observes the database. Stock consumed by checkouts
// is not invalidated; those figures simply age out within the TTL.
func (s *StockSnapshot) Invalidate(ctx context.Context, productID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.cacheKey(productID)); err != nil {
		slog.DebugContext(ctx, "stock snapshot invalidation failed",
			"product_id", productID, "error", err)
	}
}

func (s *StockSnapshot) cacheKey(productID string) string {
	return s.cache.GenerateKey("stock", productID)
}

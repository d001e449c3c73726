package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/rahulrai17/shoply-checkout/internal/cart"
	"github.com/rahulrai17/shoply-checkout/internal/catalog"
	"github.com/rahulrai17/shoply-checkout/internal/catalog/events"
	"github.com/rahulrai17/shoply-checkout/internal/checkout"
	auditsqlite "github.com/rahulrai17/shoply-checkout/internal/checkout/auditlog/sqlite"
	"github.com/rahulrai17/shoply-checkout/internal/httpx"
	"github.com/rahulrai17/shoply-checkout/internal/inventory"
	"github.com/rahulrai17/shoply-checkout/internal/order"
	"github.com/rahulrai17/shoply-checkout/internal/pkg/cache"
	"github.com/rahulrai17/shoply-checkout/internal/pkg/telemetry"
	"github.com/rahulrai17/shoply-checkout/internal/store"
)

func main() {
	ctx := context.Background()

	telemetry.InitLogger()

	shutdown, err := telemetry.SetupTracer(ctx, "checkout-service")
	if err != nil {
		log.Fatalf("telemetry setup failed: %v", err)
	}
	defer shutdown(context.Background())

	httpAddr := getEnv("HTTP_ADDR", ":8080")
	dbPath := getEnv("SQLITE_PATH", "./data/checkout.db")
	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")

	db, err := store.Open(dbPath)
	if err != nil {
		log.Fatalf("store open failed: %v", err)
	}
	defer db.Close()

	products := catalog.NewRepository()
	snapshots := catalog.NewStockSnapshot(products,
		cache.NewRedisCache(redisAddr, "checkout-service"), catalog.DefaultSnapshotTTL)

	ledger := inventory.NewLedger(inventory.DefaultHoldTTL)
	carts := cart.NewStore(db, products, snapshots)
	orders := order.NewRepository(db)
	audit := auditsqlite.New(db)

	coordinator := checkout.NewCoordinator(db, ledger, carts, orders, audit)
	listener := events.NewListener(db, products, ledger, carts, snapshots)

	if os.Getenv("SEED_DEMO") == "1" {
		seedDemoProducts(ctx, db, products)
	}

	sweeper := inventory.NewSweeper(db, ledger, 30*time.Second)
	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go sweeper.Run(sweepCtx)

	handler := httpx.NewHandler(carts, coordinator, orders, listener)
	router := httpx.NewRouter(handler)

	slog.Info("checkout service running", "addr", httpAddr, "db", dbPath)
	if err := http.ListenAndServe(httpAddr, router); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

// seedDemoProducts loads a small catalog for local development.
func seedDemoProducts(ctx context.Context, db *sql.DB, products *catalog.Repository) {
	demo := []catalog.Product{
		{ID: "prod_1", Name: "Mechanical Keyboard", Price: 120, Discount: 10, Quantity: 15},
		{ID: "prod_2", Name: "Wireless Mouse", Price: 45, Quantity: 10},
		{ID: "prod_3", Name: "4K Monitor", Price: 390, Discount: 5, Quantity: 0},
	}
	for i := range demo {
		if err := products.Upsert(ctx, db, &demo[i]); err != nil {
			slog.Warn("demo seed failed", "product_id", demo[i].ID, "error", err)
		}
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

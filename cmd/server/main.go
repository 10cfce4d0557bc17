/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the distribution ledger server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env / environment), parse flag overrides
  2. Initialize SQLite store
  3. Wire engines: billing first, then orders (billing is the order
     engine's invoice issuer)
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -addr    HTTP listen address (overrides LEDGER_ADDR)
  -db      SQLite database path (overrides LEDGER_DB)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - config/config.go: Environment configuration
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/distribution-ledger/api"
	"github.com/warp/distribution-ledger/billing"
	"github.com/warp/distribution-ledger/clock"
	"github.com/warp/distribution-ledger/config"
	"github.com/warp/distribution-ledger/order"
	"github.com/warp/distribution-ledger/store/sqlite"
	"github.com/warp/distribution-ledger/warehouse"
)

func main() {
	cfg := config.Load()
	addr := flag.String("addr", cfg.Addr, "HTTP listen address")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	log := config.NewLogger(cfg)

	// Store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	// Engines. The billing engine doubles as the order engine's invoice
	// issuer; the wall clock drives every derived status.
	clk := clock.System{}
	billingEngine := billing.NewEngine(store.Billing(), clk)
	orderEngine := order.NewEngine(store.Orders(), billingEngine, clk)
	warehouseEngine := warehouse.NewEngine(store.Warehouse(), clk)
	outstanding := billing.NewOutstandingAggregator(store.Billing(), clk)

	handler := api.NewHandler(orderEngine, billingEngine, outstanding, warehouseEngine, clk, log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", *addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server stopped")
}

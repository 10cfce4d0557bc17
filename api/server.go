/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the back-office frontend

ROUTE GROUPS:
  /api/orders/*      Order lifecycle and read views
  /api/invoices/*    Invoices and payments
  /api/buyers/*      Per-buyer outstanding balance
  /api/warehouse/*   Stock ledger, summaries, batches

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Order lifecycle
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/", h.CreateOrder)
			r.Get("/{id}", h.GetOrder)
			r.Get("/{id}/document", h.GetOrderDocument)
			r.Post("/{id}/advance", h.AdvanceOrder)
			r.Post("/{id}/adjust", h.AdjustOrder)
			r.Post("/{id}/cancel", h.CancelOrder)
		})

		// Invoices and payments
		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.ListInvoices)
			r.Get("/{id}", h.GetInvoice)
			r.Get("/{id}/payments", h.ListPayments)
			r.Post("/{id}/payments", h.ApplyPayment)
		})

		// Buyer rollups
		r.Route("/buyers", func(r chi.Router) {
			r.Get("/{id}/outstanding", h.GetOutstanding)
		})

		// Warehouse ledger
		r.Route("/warehouse", func(r chi.Router) {
			r.Route("/entries", func(r chi.Router) {
				r.Get("/", h.ListEntries)
				r.Post("/", h.RecordEntry)
				r.Post("/{id}/reverse", h.ReverseEntry)
			})
			r.Get("/stock", h.GetStockSummary)
			r.Get("/pending-batches", h.ListPendingBatches)
			r.Post("/batch-id", h.NewBatchID)
		})
	})

	return r
}

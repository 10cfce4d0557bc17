/*
handlers.go - HTTP API handlers for the distribution ledger

PURPOSE:
  Exposes the order, billing and warehouse engines via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Orders:
    POST   /api/orders                       Create order
    GET    /api/orders/{id}                  Get order
    GET    /api/orders/{id}/document         Printable purchase order
    POST   /api/orders/{id}/advance          Advance lifecycle one step
    POST   /api/orders/{id}/adjust           Revise quantities pre-issuance
    POST   /api/orders/{id}/cancel           Cancel order
    GET    /api/orders?buyer_id=|kind=&status=|from=&to=   List views

  Billing:
    GET    /api/invoices                     List (optionally ?status=)
    GET    /api/invoices/{id}                Get invoice
    GET    /api/invoices/{id}/payments       Payment ledger
    POST   /api/invoices/{id}/payments       Apply payment
    GET    /api/buyers/{id}/outstanding      Outstanding balance rollup

  Warehouse:
    POST   /api/warehouse/entries            Record ledger entry
    GET    /api/warehouse/entries?location=  List entries
    POST   /api/warehouse/entries/{id}/reverse  Compensating reversal
    GET    /api/warehouse/stock?location=    Stock summary by product
    GET    /api/warehouse/pending-batches    Unfulfilled packaging batches
    POST   /api/warehouse/batch-id           Allocate a batch id

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, invalid transitions
  - 404: Resource not found
  - 409: Conflict (duplicate invoice, already issued, already reversed)
  - 500: Internal errors

SECURITY NOTE:
  No authentication middleware. The service is deployed behind the
  back-office gateway which terminates auth.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/distribution-ledger/billing"
	"github.com/warp/distribution-ledger/clock"
	"github.com/warp/distribution-ledger/order"
	"github.com/warp/distribution-ledger/warehouse"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Orders      *order.Engine
	Billing     *billing.Engine
	Outstanding *billing.OutstandingAggregator
	Warehouse   *warehouse.Engine
	Clock       clock.Clock
	Log         *logrus.Logger
}

func NewHandler(orders *order.Engine, bill *billing.Engine, outstanding *billing.OutstandingAggregator, wh *warehouse.Engine, clk clock.Clock, log *logrus.Logger) *Handler {
	return &Handler{
		Orders:      orders,
		Billing:     bill,
		Outstanding: outstanding,
		Warehouse:   wh,
		Clock:       clk,
		Log:         log,
	}
}

// =============================================================================
// ORDER HANDLERS
// =============================================================================

// CreateOrder creates a distributor or resale order in its initial state.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	items := make([]order.LineItem, len(req.Items))
	for i, li := range req.Items {
		price, err := decimal.NewFromString(li.UnitPrice)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid unit_price (decimal string expected)", err)
			return
		}
		items[i] = order.LineItem{
			ProductID: li.ProductID,
			Quantity:  li.Quantity,
			UnitPrice: price,
		}
	}

	o, err := h.Orders.Create(r.Context(), order.Kind(req.Kind), req.BuyerID, req.SellerID, items)
	if err != nil {
		h.writeDomainError(w, "Failed to create order", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toOrderDTO(o))
}

// GetOrder returns a single order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := order.OrderID(chi.URLParam(r, "id"))

	o, err := h.Orders.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get order", err)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderDTO(o))
}

// ListOrders serves the read-model queries behind one endpoint. Exactly
// one filter group applies: buyer_id, kind+status, or from+to.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		orders []*order.Order
		err    error
	)

	switch {
	case q.Get("buyer_id") != "":
		orders, err = h.Orders.ByBuyer(r.Context(), q.Get("buyer_id"))
	case q.Get("kind") != "" && q.Get("status") != "":
		orders, err = h.Orders.ByStatus(r.Context(), order.Kind(q.Get("kind")), order.Status(q.Get("status")))
	case q.Get("from") != "" && q.Get("to") != "":
		var from, to time.Time
		if from, err = time.Parse("2006-01-02", q.Get("from")); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
			return
		}
		if to, err = time.Parse("2006-01-02", q.Get("to")); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
			return
		}
		// Inclusive end of day.
		orders, err = h.Orders.InRange(r.Context(), from, to.Add(24*time.Hour-time.Nanosecond))
	default:
		h.writeError(w, http.StatusBadRequest, "Provide buyer_id, kind+status, or from+to", nil)
		return
	}
	if err != nil {
		h.writeDomainError(w, "Failed to list orders", err)
		return
	}

	dtos := make([]OrderDTO, len(orders))
	for i, o := range orders {
		dtos[i] = toOrderDTO(o)
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// GetOrderDocument returns the printable purchase order snapshot.
func (h *Handler) GetOrderDocument(w http.ResponseWriter, r *http.Request) {
	id := order.OrderID(chi.URLParam(r, "id"))

	doc, err := h.Orders.Document(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to build document", err)
		return
	}

	h.writeJSON(w, http.StatusOK, toDocumentDTO(doc))
}

// AdvanceOrder moves an order one step forward in its lifecycle.
// Advancing into the issuance state creates the invoice.
func (h *Handler) AdvanceOrder(w http.ResponseWriter, r *http.Request) {
	id := order.OrderID(chi.URLParam(r, "id"))

	var req AdvanceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	o, err := h.Orders.Advance(r.Context(), id, order.Status(req.Target))
	if err != nil {
		h.writeDomainError(w, "Failed to advance order", err)
		return
	}

	h.Log.WithFields(logrus.Fields{
		"order":  o.Number,
		"status": o.Status,
	}).Info("order advanced")

	h.writeJSON(w, http.StatusOK, toOrderDTO(o))
}

// AdjustOrder applies quantity revisions to an order still in its
// initial state.
func (h *Handler) AdjustOrder(w http.ResponseWriter, r *http.Request) {
	id := order.OrderID(chi.URLParam(r, "id"))

	var req AdjustOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	revisions := make([]order.Revision, len(req.Revisions))
	for i, rev := range req.Revisions {
		revisions[i] = order.Revision{ProductID: rev.ProductID, Quantity: rev.Quantity}
	}

	o, err := h.Orders.Adjust(r.Context(), id, revisions, req.Note)
	if err != nil {
		h.writeDomainError(w, "Failed to adjust order", err)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderDTO(o))
}

// CancelOrder cancels an order still in a cancellable state.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := order.OrderID(chi.URLParam(r, "id"))

	o, err := h.Orders.Cancel(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to cancel order", err)
		return
	}

	h.Log.WithField("order", o.Number).Info("order cancelled")
	h.writeJSON(w, http.StatusOK, toOrderDTO(o))
}

// =============================================================================
// BILLING HANDLERS
// =============================================================================

// ListInvoices returns all invoices, optionally filtered by derived
// status (?status=UNPAID|PAID|OVERDUE).
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	var (
		invoices []*billing.Invoice
		err      error
	)

	if s := r.URL.Query().Get("status"); s != "" {
		invoices, err = h.Billing.InvoicesByStatus(r.Context(), billing.Status(s))
	} else if b := r.URL.Query().Get("buyer_id"); b != "" {
		invoices, err = h.Billing.InvoicesByBuyer(r.Context(), b)
	} else {
		h.writeError(w, http.StatusBadRequest, "Provide status or buyer_id", nil)
		return
	}
	if err != nil {
		h.writeDomainError(w, "Failed to list invoices", err)
		return
	}

	now := h.Clock.Now()
	dtos := make([]InvoiceDTO, len(invoices))
	for i, inv := range invoices {
		dtos[i] = toInvoiceDTO(inv, now)
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// GetInvoice returns a single invoice with derived status and aging.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id := billing.InvoiceID(chi.URLParam(r, "id"))

	inv, err := h.Billing.Invoice(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get invoice", err)
		return
	}

	h.writeJSON(w, http.StatusOK, toInvoiceDTO(inv, h.Clock.Now()))
}

// ListPayments returns an invoice's payment ledger.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id := billing.InvoiceID(chi.URLParam(r, "id"))

	payments, err := h.Billing.Payments(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to list payments", err)
		return
	}

	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// ApplyPayment records a partial or full payment against an invoice.
func (h *Handler) ApplyPayment(w http.ResponseWriter, r *http.Request) {
	id := billing.InvoiceID(chi.URLParam(r, "id"))

	var req ApplyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid amount (decimal string expected)", err)
		return
	}

	date := h.Clock.Now()
	if req.Date != "" {
		if date, err = time.Parse("2006-01-02", req.Date); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
	}

	inv, err := h.Billing.ApplyPayment(r.Context(), id, amount, date, billing.Method(req.Method), req.CreatedBy, req.Notes)
	if err != nil {
		h.writeDomainError(w, "Failed to apply payment", err)
		return
	}

	now := h.Clock.Now()
	h.Log.WithFields(logrus.Fields{
		"invoice": inv.Number,
		"amount":  amount.String(),
		"status":  inv.StatusAt(now),
	}).Info("payment applied")

	h.writeJSON(w, http.StatusCreated, toInvoiceDTO(inv, now))
}

// GetOutstanding returns the buyer's outstanding balance rollup, the
// soft gate consulted before approving a new order.
func (h *Handler) GetOutstanding(w http.ResponseWriter, r *http.Request) {
	buyerID := chi.URLParam(r, "id")

	summary, err := h.Outstanding.OutstandingFor(r.Context(), buyerID)
	if err != nil {
		h.writeDomainError(w, "Failed to compute outstanding balance", err)
		return
	}

	h.writeJSON(w, http.StatusOK, toOutstandingDTO(summary))
}

// =============================================================================
// WAREHOUSE HANDLERS
// =============================================================================

// RecordEntry appends a stock movement to the warehouse ledger.
func (h *Handler) RecordEntry(w http.ResponseWriter, r *http.Request) {
	var req RecordEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry := warehouse.Entry{
		Location:    req.Location,
		Type:        warehouse.EntryType(req.Type),
		Product:     req.Product,
		Category:    req.Category,
		SubType:     req.SubType,
		Unit:        req.Unit,
		HeadCount:   req.HeadCount,
		SupplierRef: req.SupplierRef,
		Destination: req.Destination,
		BatchID:     req.BatchID,
		CreatedBy:   req.CreatedBy,
	}

	var err error
	if req.Quantity != "" {
		if entry.Quantity, err = decimal.NewFromString(req.Quantity); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid quantity (decimal string expected)", err)
			return
		}
	}
	if req.Weight != "" {
		if entry.Weight, err = decimal.NewFromString(req.Weight); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid weight (decimal string expected)", err)
			return
		}
	}
	if req.Date != "" {
		if entry.Date, err = time.Parse("2006-01-02", req.Date); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
	}

	recorded, err := h.Warehouse.Record(r.Context(), entry)
	if err != nil {
		h.writeDomainError(w, "Failed to record entry", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toEntryDTO(recorded))
}

// ListEntries returns the ledger for one location (?location=), or the
// whole ledger when no filter is given.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Warehouse.Entries(r.Context(), r.URL.Query().Get("location"))
	if err != nil {
		h.writeDomainError(w, "Failed to list entries", err)
		return
	}

	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// ReverseEntry appends the compensating entry for a mistaken one.
func (h *Handler) ReverseEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ReverseEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	reversal, err := h.Warehouse.Reverse(r.Context(), id, req.Reason, req.CreatedBy)
	if err != nil {
		h.writeDomainError(w, "Failed to reverse entry", err)
		return
	}

	h.Log.WithFields(logrus.Fields{
		"entry":    id,
		"reversal": reversal.ID,
	}).Info("entry reversed")

	h.writeJSON(w, http.StatusCreated, toEntryDTO(reversal))
}

// GetStockSummary replays one location's ledger into per-product levels.
func (h *Handler) GetStockSummary(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("location")
	if location == "" {
		h.writeError(w, http.StatusBadRequest, "location is required", nil)
		return
	}

	levels, err := h.Warehouse.StockSummary(r.Context(), location)
	if err != nil {
		h.writeDomainError(w, "Failed to compute stock summary", err)
		return
	}

	dtos := make([]StockLevelDTO, len(levels))
	for i, lv := range levels {
		dtos[i] = StockLevelDTO{
			Product:  lv.Product,
			Category: lv.Category,
			SubType:  lv.SubType,
			Unit:     lv.Unit,
			OnHand:   lv.OnHand.String(),
		}
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// ListPendingBatches returns packaging batches drawn against but not
// yet produced.
func (h *Handler) ListPendingBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.Warehouse.PendingBatches(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list pending batches", err)
		return
	}

	dtos := make([]PendingBatchDTO, len(batches))
	for i, b := range batches {
		dtos[i] = PendingBatchDTO{
			BatchID:      b.BatchID,
			Category:     b.Category,
			SubType:      b.SubType,
			EarliestDate: b.EarliestDate.Format(time.RFC3339),
			Lines:        b.Lines,
		}
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// NewBatchID allocates a clock-derived batch id for a packaging run.
func (h *Handler) NewBatchID(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"batch_id": h.Warehouse.GenerateBatchID()})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	h.writeJSON(w, status, resp)
}

// writeDomainError maps domain errors onto HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case order.IsNotFound(err) || billing.IsNotFound(err) || errors.Is(err, warehouse.ErrEntryNotFound):
		status = http.StatusNotFound
	case order.IsConflict(err) || billing.IsConflict(err) || errors.Is(err, warehouse.ErrAlreadyReversed):
		status = http.StatusConflict
	case order.IsClientError(err) || billing.IsClientError(err) ||
		errors.Is(err, warehouse.ErrInvalidEntry) || errors.Is(err, warehouse.ErrBatchNotAllowed):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		h.Log.WithError(err).Error(message)
	}
	h.writeError(w, status, message, err)
}

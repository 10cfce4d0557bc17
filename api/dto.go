/*
dto.go - Request/response data structures for the HTTP API

CONVENTIONS:
  - Monetary values are JSON strings ("1400.00"), never floats. They
    round-trip through decimal.Decimal without precision loss.
  - Timestamps are RFC3339 in UTC; nullable ones are pointers.
  - Invoice status and aging are derived server-side at response time
    and included for display; clients never compute them.
*/
package api

import (
	"time"

	"github.com/warp/distribution-ledger/billing"
	"github.com/warp/distribution-ledger/order"
	"github.com/warp/distribution-ledger/warehouse"
)

// =============================================================================
// ORDER DTOS
// =============================================================================

type CreateOrderRequest struct {
	Kind     string            `json:"kind"`
	BuyerID  string            `json:"buyer_id"`
	SellerID string            `json:"seller_id"`
	Items    []LineItemRequest `json:"items"`
}

type LineItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

type AdvanceOrderRequest struct {
	Target string `json:"target"`
}

type AdjustOrderRequest struct {
	Revisions []RevisionRequest `json:"revisions"`
	Note      string            `json:"note"`
}

type RevisionRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type OrderDTO struct {
	ID       string        `json:"id"`
	Number   string        `json:"number"`
	Kind     string        `json:"kind"`
	BuyerID  string        `json:"buyer_id"`
	SellerID string        `json:"seller_id"`
	Status   string        `json:"status"`
	Items    []LineItemDTO `json:"items"`
	Total    string        `json:"total"`
	Notes    string        `json:"notes,omitempty"`

	CreatedAt  string  `json:"created_at"`
	IssuedAt   *string `json:"issued_at,omitempty"`
	ShippedAt  *string `json:"shipped_at,omitempty"`
	ReceivedAt *string `json:"received_at,omitempty"`
}

type LineItemDTO struct {
	ProductID string `json:"product_id"`
	Ordered   int    `json:"ordered"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

func toOrderDTO(o *order.Order) OrderDTO {
	items := make([]LineItemDTO, len(o.Items))
	for i, li := range o.Items {
		items[i] = LineItemDTO{
			ProductID: li.ProductID,
			Ordered:   li.Ordered,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice.String(),
			Subtotal:  li.Subtotal().String(),
		}
	}
	return OrderDTO{
		ID:         string(o.ID),
		Number:     o.Number,
		Kind:       string(o.Kind),
		BuyerID:    o.BuyerID,
		SellerID:   o.SellerID,
		Status:     string(o.Status),
		Items:      items,
		Total:      o.TotalAmount().String(),
		Notes:      o.Notes,
		CreatedAt:  o.CreatedAt.Format(time.RFC3339),
		IssuedAt:   timeDTO(o.IssuedAt),
		ShippedAt:  timeDTO(o.ShippedAt),
		ReceivedAt: timeDTO(o.ReceivedAt),
	}
}

type DocumentDTO struct {
	Number string            `json:"number"`
	Kind   string            `json:"kind"`
	Status string            `json:"status"`
	From   string            `json:"from"`
	To     string            `json:"to"`
	Lines  []DocumentLineDTO `json:"lines"`
	Total  string            `json:"total"`
	Notes  string            `json:"notes,omitempty"`

	CreatedAt  string  `json:"created_at"`
	IssuedAt   *string `json:"issued_at,omitempty"`
	ShippedAt  *string `json:"shipped_at,omitempty"`
	ReceivedAt *string `json:"received_at,omitempty"`
}

type DocumentLineDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

func toDocumentDTO(d *order.Document) DocumentDTO {
	lines := make([]DocumentLineDTO, len(d.Lines))
	for i, l := range d.Lines {
		lines[i] = DocumentLineDTO{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.String(),
			Subtotal:  l.Subtotal.String(),
		}
	}
	return DocumentDTO{
		Number:     d.Number,
		Kind:       string(d.Kind),
		Status:     string(d.Status),
		From:       d.From,
		To:         d.To,
		Lines:      lines,
		Total:      d.Total.String(),
		Notes:      d.Notes,
		CreatedAt:  d.CreatedAt.Format(time.RFC3339),
		IssuedAt:   timeDTO(d.IssuedAt),
		ShippedAt:  timeDTO(d.ShippedAt),
		ReceivedAt: timeDTO(d.ReceivedAt),
	}
}

// =============================================================================
// BILLING DTOS
// =============================================================================

type ApplyPaymentRequest struct {
	Amount    string `json:"amount"`
	Date      string `json:"date,omitempty"` // YYYY-MM-DD, defaults to today
	Method    string `json:"method"`
	CreatedBy string `json:"created_by,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

type InvoiceDTO struct {
	ID          string `json:"id"`
	Number      string `json:"number"`
	OrderID     string `json:"order_id"`
	BuyerID     string `json:"buyer_id"`
	Amount      string `json:"amount"`
	PaidAmount  string `json:"paid_amount"`
	Outstanding string `json:"outstanding"`
	DueDate     string `json:"due_date"`

	// Derived at response time.
	Status string `json:"status"`
	Aging  string `json:"aging"`

	PaidAt    *string `json:"paid_at,omitempty"`
	CreatedAt string  `json:"created_at"`
}

func toInvoiceDTO(inv *billing.Invoice, now time.Time) InvoiceDTO {
	return InvoiceDTO{
		ID:          string(inv.ID),
		Number:      inv.Number,
		OrderID:     string(inv.OrderID),
		BuyerID:     inv.BuyerID,
		Amount:      inv.Amount.String(),
		PaidAmount:  inv.PaidAmount.String(),
		Outstanding: inv.Outstanding().String(),
		DueDate:     inv.DueDate.Format(time.RFC3339),
		Status:      string(inv.StatusAt(now)),
		Aging:       string(inv.AgingAt(now)),
		PaidAt:      timeDTO(inv.PaidAt),
		CreatedAt:   inv.CreatedAt.Format(time.RFC3339),
	}
}

type PaymentDTO struct {
	ID        string `json:"id"`
	InvoiceID string `json:"invoice_id"`
	Amount    string `json:"amount"`
	Date      string `json:"date"`
	Method    string `json:"method"`
	CreatedBy string `json:"created_by,omitempty"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at"`
}

func toPaymentDTO(p *billing.Payment) PaymentDTO {
	return PaymentDTO{
		ID:        string(p.ID),
		InvoiceID: string(p.InvoiceID),
		Amount:    p.Amount.String(),
		Date:      p.Date.Format(time.RFC3339),
		Method:    string(p.Method),
		CreatedBy: p.CreatedBy,
		Notes:     p.Notes,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

type OutstandingSummaryDTO struct {
	BuyerID string `json:"buyer_id"`
	AsOf    string `json:"as_of"`

	TotalOutstanding string `json:"total_outstanding"`
	HasOutstanding   bool   `json:"has_outstanding"`

	UnpaidCount  int    `json:"unpaid_count"`
	UnpaidAmount string `json:"unpaid_amount"`

	OverdueCount  int    `json:"overdue_count"`
	OverdueAmount string `json:"overdue_amount"`

	Invoices []OutstandingInvoiceDTO `json:"invoices"`
}

type OutstandingInvoiceDTO struct {
	ID          string `json:"id"`
	Number      string `json:"number"`
	Amount      string `json:"amount"`
	Outstanding string `json:"outstanding"`
	DueDate     string `json:"due_date"`
	Status      string `json:"status"`
	Aging       string `json:"aging"`
}

func toOutstandingDTO(s *billing.OutstandingSummary) OutstandingSummaryDTO {
	invoices := make([]OutstandingInvoiceDTO, len(s.Invoices))
	for i, inv := range s.Invoices {
		invoices[i] = OutstandingInvoiceDTO{
			ID:          string(inv.ID),
			Number:      inv.Number,
			Amount:      inv.Amount.String(),
			Outstanding: inv.Outstanding.String(),
			DueDate:     inv.DueDate.Format(time.RFC3339),
			Status:      string(inv.Status),
			Aging:       string(inv.Aging),
		}
	}
	return OutstandingSummaryDTO{
		BuyerID:          s.BuyerID,
		AsOf:             s.AsOf.Format(time.RFC3339),
		TotalOutstanding: s.TotalOutstanding.String(),
		HasOutstanding:   s.HasOutstanding,
		UnpaidCount:      s.UnpaidCount,
		UnpaidAmount:     s.UnpaidAmount.String(),
		OverdueCount:     s.OverdueCount,
		OverdueAmount:    s.OverdueAmount.String(),
		Invoices:         invoices,
	}
}

// =============================================================================
// WAREHOUSE DTOS
// =============================================================================

type RecordEntryRequest struct {
	Location string `json:"location"`
	Type     string `json:"type"`
	Date     string `json:"date,omitempty"` // YYYY-MM-DD, defaults to today

	Product  string `json:"product,omitempty"`
	Category string `json:"category,omitempty"`
	SubType  string `json:"sub_type,omitempty"`
	Quantity string `json:"quantity,omitempty"`
	Unit     string `json:"unit,omitempty"`

	HeadCount int    `json:"head_count,omitempty"`
	Weight    string `json:"weight,omitempty"`

	SupplierRef string `json:"supplier_ref,omitempty"`
	Destination string `json:"destination,omitempty"`
	BatchID     string `json:"batch_id,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
}

type ReverseEntryRequest struct {
	Reason    string `json:"reason"`
	CreatedBy string `json:"created_by,omitempty"`
}

type EntryDTO struct {
	ID       string `json:"id"`
	Location string `json:"location"`
	Type     string `json:"type"`
	Date     string `json:"date"`

	Product  string `json:"product,omitempty"`
	Category string `json:"category,omitempty"`
	SubType  string `json:"sub_type,omitempty"`
	Quantity string `json:"quantity"`
	Unit     string `json:"unit,omitempty"`

	HeadCount int    `json:"head_count,omitempty"`
	Weight    string `json:"weight,omitempty"`

	SupplierRef string `json:"supplier_ref,omitempty"`
	Destination string `json:"destination,omitempty"`
	BatchID     string `json:"batch_id,omitempty"`
	ReversalOf  string `json:"reversal_of,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func toEntryDTO(e *warehouse.Entry) EntryDTO {
	dto := EntryDTO{
		ID:          e.ID,
		Location:    e.Location,
		Type:        string(e.Type),
		Date:        e.Date.Format(time.RFC3339),
		Product:     e.Product,
		Category:    e.Category,
		SubType:     e.SubType,
		Quantity:    e.Quantity.String(),
		Unit:        e.Unit,
		HeadCount:   e.HeadCount,
		SupplierRef: e.SupplierRef,
		Destination: e.Destination,
		BatchID:     e.BatchID,
		ReversalOf:  e.ReversalOf,
		CreatedBy:   e.CreatedBy,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}
	if !e.Weight.IsZero() {
		dto.Weight = e.Weight.String()
	}
	return dto
}

type StockLevelDTO struct {
	Product  string `json:"product"`
	Category string `json:"category,omitempty"`
	SubType  string `json:"sub_type,omitempty"`
	Unit     string `json:"unit,omitempty"`
	OnHand   string `json:"on_hand"`
}

type PendingBatchDTO struct {
	BatchID      string `json:"batch_id"`
	Category     string `json:"category,omitempty"`
	SubType      string `json:"sub_type,omitempty"`
	EarliestDate string `json:"earliest_date"`
	Lines        int    `json:"lines"`
}

// =============================================================================
// COMMON
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func timeDTO(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

/*
document.go - Printable purchase order representation

PURPOSE:
  The document-rendering collaborator (print/export screens) consumes a
  stable, read-only snapshot of an order: the parties, the line items
  with subtotals, the derived total and the lifecycle timestamps.
  Rendering itself is out of scope; this is only the DTO.
*/
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Document is the exportable "purchase order" view of an order.
type Document struct {
	Number string
	Kind   Kind
	Status Status

	// Party snapshot. From is the selling side, To the buying side.
	From string
	To   string

	Lines []DocumentLine
	Total decimal.Decimal

	Notes string

	CreatedAt  time.Time
	IssuedAt   *time.Time
	ShippedAt  *time.Time
	ReceivedAt *time.Time
}

type DocumentLine struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// Document builds the printable representation of an order.
func (e *Engine) Document(ctx context.Context, id OrderID) (*Document, error) {
	o, err := e.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewDocument(o), nil
}

// NewDocument snapshots an order into its printable form.
func NewDocument(o *Order) *Document {
	lines := make([]DocumentLine, len(o.Items))
	for i, li := range o.Items {
		lines[i] = DocumentLine{
			ProductID: li.ProductID,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
			Subtotal:  li.Subtotal(),
		}
	}
	return &Document{
		Number:     o.Number,
		Kind:       o.Kind,
		Status:     o.Status,
		From:       o.SellerID,
		To:         o.BuyerID,
		Lines:      lines,
		Total:      o.TotalAmount(),
		Notes:      o.Notes,
		CreatedAt:  o.CreatedAt,
		IssuedAt:   cloneTime(o.IssuedAt),
		ShippedAt:  cloneTime(o.ShippedAt),
		ReceivedAt: cloneTime(o.ReceivedAt),
	}
}

package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/xenking/order-invoicer/internal/domain/order"
)

// Document is a rendered invoice file covering one or more orders.
type Document struct {
	// ID is assigned by the Archive; empty until saved.
	ID       string
	FileName string
	Data     []byte
	Pages    int
	OrderIDs []int64
	Created  time.Time
}

// Renderer produces a paginated invoice document for a batch of orders.
type Renderer interface {
	Render(ctx context.Context, orders []order.Order) (*Document, error)
}

// Archive persists rendered documents.
type Archive interface {
	// Save stores doc and sets doc.ID.
	Save(ctx context.Context, doc *Document) error
	// Delete removes a saved document. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) error
}

// BatchFileName returns the file name for a multi-order batch rendered at t.
func BatchFileName(t time.Time) string {
	return fmt.Sprintf("Invoices_%s.pdf", t.Format("20060102_150405"))
}

// SingleFileName returns the file name for one order's invoice.
func SingleFileName(orderCode string) string {
	return fmt.Sprintf("Invoice_%s.pdf", orderCode)
}

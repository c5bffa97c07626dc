package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// PaymentMethod identifies how the customer pays for an order.
type PaymentMethod string

const (
	// PaymentCOD is cash on delivery; the courier collects payment.
	PaymentCOD PaymentMethod = "cod"
	// PaymentOnline is a prepaid gateway transaction identified by PaymentID.
	PaymentOnline PaymentMethod = "online"
)

// ParsePaymentMethod maps a stored payment method string to a PaymentMethod.
// Matching is case-insensitive and anything other than "cod" is online.
func ParsePaymentMethod(s string) PaymentMethod {
	if strings.EqualFold(strings.TrimSpace(s), string(PaymentCOD)) {
		return PaymentCOD
	}
	return PaymentOnline
}

// Order is one customer purchase awaiting invoicing.
//
// Products, Quantities and Prices are parallel sequences: index i of each
// describes line item i. Field order of the required fields matches the
// order in which missing fields are reported.
type Order struct {
	ID int64

	OrderCode  string            `validate:"notblank"`
	Name       string            `validate:"notblank"`
	Email      string            `validate:"notblank"`
	Phone      string            `validate:"notblank"`
	Address1   string            `validate:"notblank"`
	City       string            `validate:"notblank"`
	State      string            `validate:"notblank"`
	PostalCode string            `validate:"notblank"`
	Products   []string          `validate:"notblank"`
	Quantities []int             `validate:"notblank"`
	Prices     []decimal.Decimal `validate:"notblank"`
	Total      decimal.NullDecimal

	Address2      string
	Notes         string
	PaymentMethod string
	PaymentStatus string
	PaymentID     string
	Invoiced      bool
	CreatedAt     time.Time
}

// Method returns the parsed payment method of the order.
func (o *Order) Method() PaymentMethod {
	return ParsePaymentMethod(o.PaymentMethod)
}

// LineItem is one (product, quantity, price) triple within an order.
type LineItem struct {
	ProductID string
	Quantity  int
	Price     decimal.Decimal
}

// Amount returns quantity multiplied by unit price.
func (li LineItem) Amount() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// LineItems zips the parallel product, quantity and price sequences. Only
// positions present in all three sequences are returned.
func (o *Order) LineItems() []LineItem {
	n := min(len(o.Products), len(o.Quantities), len(o.Prices))
	items := make([]LineItem, n)
	for i := range n {
		items[i] = LineItem{
			ProductID: o.Products[i],
			Quantity:  o.Quantities[i],
			Price:     o.Prices[i],
		}
	}
	return items
}

// Store provides read access to orders and the single write the pipeline
// performs: flipping the invoiced flag.
type Store interface {
	// FetchUninvoiced returns every order not yet invoiced, newest first.
	FetchUninvoiced(ctx context.Context) ([]Order, error)
	// MarkInvoiced sets the invoiced flag on all orders with the given IDs.
	MarkInvoiced(ctx context.Context, ids []int64) error
	// List returns all orders, newest first.
	List(ctx context.Context) ([]Order, error)
	// GetByCode returns the order with the given human-facing code, or
	// ErrNotFound.
	GetByCode(ctx context.Context, code string) (*Order, error)
}

// Package pdf renders invoice batches as A4 PDF documents.
package pdf

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"github.com/xenking/order-invoicer/internal/domain/invoice"
	"github.com/xenking/order-invoicer/internal/domain/order"
)

// PerPage is the number of invoices laid out on one A4 page.
const PerPage = 2

// Layout in points, origin top left.
const (
	marginX     = 50.0
	marginTop   = 50.0
	infoX       = 400.0
	lineStep    = 15.0
	rowHeight   = 16.0
	separatorIn = 30.0

	// Offsets from an invoice's top baseline.
	billToOffset    = 60.0
	tableOffset     = billToOffset + 5*lineStep
	separatorMargin = 20.0
)

var columns = []struct {
	title string
	width float64
	align string
}{
	{"Product ID", 140, "L"},
	{"Qty", 40, "C"},
	{"Price (INR)", 80, "C"},
	{"Total (INR)", 80, "C"},
}

var _ invoice.Renderer = (*Renderer)(nil)

// Seller is the business printed in each invoice header.
type Seller struct {
	Name    string
	Address string
	Contact string
}

// DefaultSeller is the header used when none is configured.
var DefaultSeller = Seller{
	Name:    "Indalnova",
	Address: "123H PATEL NAGAR RAMADEVI KANPUR UTTARPRADESH, Pin-208007",
	Contact: "Email: teamindalnova@gmail.com | Phone: +91-8840393051",
}

// Renderer lays out orders two per page using fpdf core fonts.
type Renderer struct {
	seller Seller
	now    func() time.Time
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithClock overrides the time source for invoice dates and file names.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

// NewRenderer returns a Renderer printing seller in each header.
func NewRenderer(seller Seller, opts ...Option) *Renderer {
	if seller.Name == "" {
		seller = DefaultSeller
	}
	r := &Renderer{seller: seller, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Render produces one document covering all orders in the given order.
func (r *Renderer) Render(ctx context.Context, orders []order.Order) (*invoice.Document, error) {
	if len(orders) == 0 {
		return nil, errors.New("no orders to render")
	}
	now := r.now()

	doc := fpdf.New("P", "pt", "A4", "")
	doc.SetCreator("order-invoicer", true)
	doc.SetTitle("Invoices "+now.Format("2006-01-02"), true)
	doc.SetCreationDate(now)
	doc.SetAutoPageBreak(false, 0)
	tr := doc.UnicodeTranslatorFromDescriptor("")

	_, pageHeight := doc.GetPageSize()
	block := pageHeight / PerPage

	ids := make([]int64, 0, len(orders))
	for i := range orders {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "render")
		}
		if i%PerPage == 0 {
			doc.AddPage()
		}
		top := marginTop + block*float64(i%PerPage)
		r.drawInvoice(doc, tr, &orders[i], top, block, now)
		ids = append(ids, orders[i].ID)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "write pdf")
	}

	return &invoice.Document{
		FileName: invoice.BatchFileName(now),
		Data:     buf.Bytes(),
		Pages:    doc.PageCount(),
		OrderIDs: ids,
		Created:  now,
	}, nil
}

func (r *Renderer) drawInvoice(doc *fpdf.Fpdf, tr func(string) string, o *order.Order, top, block float64, now time.Time) {
	doc.SetTextColor(0, 0, 0)

	// Seller header.
	doc.SetFont("Helvetica", "B", 16)
	doc.Text(marginX, top, tr(r.seller.Name))
	doc.SetFont("Helvetica", "", 9)
	doc.Text(marginX, top+lineStep, tr(r.seller.Address))
	doc.Text(marginX, top+2*lineStep, tr(r.seller.Contact))

	// Title block.
	doc.SetFont("Helvetica", "B", 14)
	doc.Text(infoX, top, "INVOICE")
	doc.SetFont("Helvetica", "", 9)
	doc.Text(infoX, top+lineStep, "Invoice Date: "+now.Format("02-01-2006"))
	doc.Text(infoX, top+2*lineStep, tr("Order ID: "+o.OrderCode))

	// Bill to.
	y := top + billToOffset
	doc.SetFont("Helvetica", "B", 12)
	doc.Text(marginX, y, "Bill To:")
	doc.SetFont("Helvetica", "", 9)
	doc.Text(marginX, y+lineStep, tr("Name: "+o.Name))
	doc.Text(marginX, y+2*lineStep, tr("Email: "+o.Email))
	doc.Text(marginX, y+3*lineStep, tr("Phone: "+o.Phone))
	doc.Text(marginX, y+4*lineStep, tr("Address: "+billingAddress(o)))

	tableBottom := drawItems(doc, tr, o, top+tableOffset, maxRows(block))

	// Payment.
	doc.SetFont("Helvetica", "", 9)
	doc.SetTextColor(0, 0, 0)
	payY := tableBottom + lineStep
	doc.Text(marginX, payY, tr("Payment Method: "+o.PaymentMethod))
	if o.Method() != order.PaymentCOD {
		doc.Text(marginX+150, payY, tr("Payment ID: "+o.PaymentID))
	}

	pageWidth, _ := doc.GetPageSize()
	sepY := separatorY(top, block)
	doc.SetDrawColor(0, 0, 0)
	doc.SetLineWidth(0.5)
	doc.Line(separatorIn, sepY, pageWidth-separatorIn, sepY)
}

// separatorY is the baseline of the line closing the invoice that starts at
// top.
func separatorY(top, block float64) float64 {
	return top - marginTop + block - separatorMargin
}

// maxRows is how many item rows fit between the table header and the TOTAL
// row while leaving room for the payment line above the separator.
func maxRows(block float64) int {
	room := separatorY(0, block) - tableOffset - 2*rowHeight - 2*lineStep
	return max(int(room/rowHeight), 1)
}

// visibleItems returns the rows to draw for items when at most limit rows
// fit. When items overflow, the last visible row is given up to a summary
// row, so hidden reports how many items it stands for.
func visibleItems(items []order.LineItem, limit int) (shown, hidden []order.LineItem) {
	if len(items) <= limit {
		return items, nil
	}
	return items[:limit-1], items[limit-1:]
}

// drawItems draws the line item table starting at y with at most limit item
// rows and returns its bottom.
func drawItems(doc *fpdf.Fpdf, tr func(string) string, o *order.Order, y float64, limit int) float64 {
	doc.SetDrawColor(0, 0, 0)
	doc.SetLineWidth(0.5)

	doc.SetXY(marginX, y)
	doc.SetFont("Helvetica", "B", 9)
	doc.SetFillColor(128, 128, 128)
	doc.SetTextColor(245, 245, 245)
	for _, c := range columns {
		doc.CellFormat(c.width, rowHeight, c.title, "1", 0, "C", true, 0, "")
	}
	doc.Ln(rowHeight)

	doc.SetFont("Helvetica", "", 9)
	doc.SetFillColor(245, 245, 220)
	doc.SetTextColor(0, 0, 0)
	shown, hidden := visibleItems(o.LineItems(), limit)
	for _, li := range shown {
		doc.SetX(marginX)
		cells := []string{
			tr(li.ProductID),
			strconv.Itoa(li.Quantity),
			li.Price.StringFixed(2),
			li.Amount().StringFixed(2),
		}
		for i, c := range columns {
			doc.CellFormat(c.width, rowHeight, cells[i], "1", 0, c.align, true, 0, "")
		}
		doc.Ln(rowHeight)
	}
	if len(hidden) > 0 {
		rest := decimal.Zero
		for _, li := range hidden {
			rest = rest.Add(li.Amount())
		}
		doc.SetX(marginX)
		doc.SetFont("Helvetica", "I", 9)
		doc.CellFormat(columns[0].width+columns[1].width+columns[2].width, rowHeight,
			"+ "+strconv.Itoa(len(hidden))+" more items", "1", 0, "L", true, 0, "")
		doc.CellFormat(columns[3].width, rowHeight, rest.StringFixed(2), "1", 0, columns[3].align, true, 0, "")
		doc.Ln(rowHeight)
		doc.SetFont("Helvetica", "", 9)
	}

	doc.SetX(marginX)
	doc.CellFormat(columns[0].width, rowHeight, "", "1", 0, "", false, 0, "")
	doc.CellFormat(columns[1].width, rowHeight, "", "1", 0, "", false, 0, "")
	doc.SetFont("Helvetica", "B", 9)
	doc.SetFillColor(211, 211, 211)
	doc.CellFormat(columns[2].width, rowHeight, "TOTAL", "1", 0, "C", true, 0, "")
	doc.CellFormat(columns[3].width, rowHeight, o.Total.Decimal.StringFixed(2), "1", 0, "C", true, 0, "")
	doc.Ln(rowHeight)

	return doc.GetY()
}

func billingAddress(o *order.Order) string {
	street := strings.TrimSpace(o.Address1 + " " + o.Address2)
	return street + ", " + o.City + ", " + o.State + " - " + o.PostalCode
}

package handler

import (
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/order-invoicer/internal/domain/invoicing"
	"github.com/xenking/order-invoicer/internal/domain/order"
)

// ProcessOrders runs one pipeline cycle and reports how many uninvoiced
// orders were examined and how many were invoiced.
func (h *Handler) ProcessOrders(w http.ResponseWriter, r *http.Request) {
	summary, err := h.pipeline.Run(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, publicMessage(err), err)
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("total_orders", func(e *jx.Encoder) { e.Int(summary.Total) })
		e.Field("confirmed_orders", func(e *jx.Encoder) { e.Int(summary.Confirmed) })
	})
	writeJSON(w, http.StatusOK, &e)
}

// ListOrders returns every stored order, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, publicMessage(err), err)
		return
	}

	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for i := range orders {
			encodeOrder(e, &orders[i])
		}
	})
	writeJSON(w, http.StatusOK, &e)
}

// DownloadInvoice renders one order's invoice as a PDF attachment. The
// order's invoiced flag is left unchanged.
func (h *Handler) DownloadInvoice(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("orderId")
	doc, err := h.pipeline.RenderOne(r.Context(), code)
	switch {
	case errors.Is(err, order.ErrNotFound):
		writeError(r.Context(), w, http.StatusNotFound, "Order not found", err)
		return
	case err != nil:
		writeError(r.Context(), w, http.StatusInternalServerError, publicMessage(err), err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": doc.FileName,
	}))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Data)
}

// publicMessage is the body text for a failed request. The underlying error
// is only logged.
func publicMessage(err error) string {
	var renderErr *invoicing.RenderError
	if errors.As(err, &renderErr) {
		return "invoice generation failed"
	}
	return "internal server error"
}

// encodeOrder writes o using the store's column names.
func encodeOrder(e *jx.Encoder, o *order.Order) {
	str := func(name, v string) {
		e.Field(name, func(e *jx.Encoder) { e.Str(v) })
	}
	num := func(d decimal.Decimal) {
		e.Num(jx.Num(d.String()))
	}

	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
		str("order_id", o.OrderCode)
		str("name", o.Name)
		str("email", o.Email)
		str("phone", o.Phone)
		str("address1", o.Address1)
		str("address2", o.Address2)
		str("city", o.City)
		str("state", o.State)
		str("pin", o.PostalCode)
		str("notes", o.Notes)
		e.Field("product_ids", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, p := range o.Products {
					e.Str(p)
				}
			})
		})
		e.Field("quantities", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, q := range o.Quantities {
					e.Int(q)
				}
			})
		})
		e.Field("prices", func(e *jx.Encoder) {
			e.Arr(func(*jx.Encoder) {
				for _, p := range o.Prices {
					num(p)
				}
			})
		})
		e.Field("total_price", func(e *jx.Encoder) {
			if !o.Total.Valid {
				e.Null()
				return
			}
			num(o.Total.Decimal)
		})
		str("payment_method", o.PaymentMethod)
		str("payment_status", o.PaymentStatus)
		str("payment_id", o.PaymentID)
		e.Field("invoice_generated", func(e *jx.Encoder) { e.Bool(o.Invoiced) })
		e.Field("created_at", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format(time.RFC3339)) })
	})
}

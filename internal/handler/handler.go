// Package handler exposes the invoicing pipeline over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/order-invoicer/internal/domain/invoice"
	"github.com/xenking/order-invoicer/internal/domain/invoicing"
	"github.com/xenking/order-invoicer/internal/domain/order"
)

// Pipeline is the subset of invoicing.Service used by the handlers.
type Pipeline interface {
	Run(ctx context.Context) (*invoicing.Summary, error)
	RenderOne(ctx context.Context, code string) (*invoice.Document, error)
}

var _ Pipeline = (*invoicing.Service)(nil)

// OrderLister lists stored orders.
type OrderLister interface {
	List(ctx context.Context) ([]order.Order, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// APIKey, when set, is required on every /api request.
	APIKey string
}

// Handler serves the /api routes.
type Handler struct {
	pipeline Pipeline
	orders   OrderLister
	apiKey   string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg Config, pipeline Pipeline, orders OrderLister) *Handler {
	return &Handler{
		pipeline: pipeline,
		orders:   orders,
		apiKey:   cfg.APIKey,
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/process_orders", RequireAPIKey(h.apiKey, h.ProcessOrders))
	mux.HandleFunc("GET /api/orders", RequireAPIKey(h.apiKey, h.ListOrders))
	mux.HandleFunc("GET /api/download_invoice/{orderId}", RequireAPIKey(h.apiKey, h.DownloadInvoice))
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	if status >= http.StatusInternalServerError {
		zctx.From(ctx).Error("Request failed", zap.Error(err))
	}
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("error", func(e *jx.Encoder) { e.Str(msg) })
	})
	writeJSON(w, status, &e)
}

// Package invoicing runs the order confirmation pipeline: fetch uninvoiced
// orders, validate them, confirm payment, render the confirmed batch and
// mark it invoiced.
//
// Runs are sequential and unguarded. Two overlapping runs against the same
// store can both pick up an order before either marks it invoiced; callers
// that trigger runs concurrently will double-invoice.
package invoicing

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/order-invoicer/internal/domain/invoice"
	"github.com/xenking/order-invoicer/internal/domain/order"
)

// PaymentVerifier reports whether a payment reference has settled. It must
// return false, not an error, when verification cannot be completed.
type PaymentVerifier interface {
	Verify(ctx context.Context, reference string) bool
}

// RenderError means the confirmed batch could not be rendered or archived.
// No order in the batch was marked invoiced.
type RenderError struct {
	Orders int
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render invoice batch of %d orders: %v", e.Orders, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Summary reports the result of one pipeline run.
type Summary struct {
	Total     int
	Confirmed int
	// Rejected counts rejections per reason, for diagnostics only.
	Rejected map[order.Reason]int
	// Document is the rendered batch, nil when nothing was confirmed.
	Document *invoice.Document
}

// Config holds non-dependency settings for the Service.
type Config struct {
	Rules order.Rules
}

// Service orchestrates one confirmation run over the order store.
type Service struct {
	store    order.Store
	verifier PaymentVerifier
	renderer invoice.Renderer
	archive  invoice.Archive
	rules    order.Rules
	lg       *zap.Logger

	tracer    trace.Tracer
	examined  metric.Int64Counter
	confirmed metric.Int64Counter
	rejected  metric.Int64Counter
}

// NewService creates a Service with the required collaborators.
func NewService(
	cfg Config,
	store order.Store,
	verifier PaymentVerifier,
	renderer invoice.Renderer,
	archive invoice.Archive,
	lg *zap.Logger,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Service, error) {
	meter := mp.Meter("invoicing")
	examined, err := meter.Int64Counter("invoicer.orders.examined",
		metric.WithDescription("Orders examined by the confirmation pipeline"))
	if err != nil {
		return nil, errors.Wrap(err, "examined counter")
	}
	confirmed, err := meter.Int64Counter("invoicer.orders.confirmed",
		metric.WithDescription("Orders confirmed and invoiced"))
	if err != nil {
		return nil, errors.Wrap(err, "confirmed counter")
	}
	rejected, err := meter.Int64Counter("invoicer.orders.rejected",
		metric.WithDescription("Orders rejected, by reason"))
	if err != nil {
		return nil, errors.Wrap(err, "rejected counter")
	}

	return &Service{
		store:     store,
		verifier:  verifier,
		renderer:  renderer,
		archive:   archive,
		rules:     cfg.Rules,
		lg:        lg,
		tracer:    tp.Tracer("invoicing"),
		examined:  examined,
		confirmed: confirmed,
		rejected:  rejected,
	}, nil
}

// Run executes one pipeline cycle. Store errors are returned as-is (wrapped);
// render and archive failures are returned as *RenderError.
//
// The document is archived before the orders are marked invoiced. If marking
// fails the archived document is deleted again; should that delete also fail
// the batch row stays behind and is logged with its batch_id.
func (s *Service) Run(ctx context.Context) (_ *Summary, rerr error) {
	ctx, span := s.tracer.Start(ctx, "invoicing.Run")
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	orders, err := s.store.FetchUninvoiced(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch uninvoiced orders")
	}

	summary := &Summary{
		Total:    len(orders),
		Rejected: make(map[order.Reason]int),
	}
	s.examined.Add(ctx, int64(len(orders)))

	var batch []order.Order
	for i := range orders {
		o := &orders[i]
		out := s.Evaluate(ctx, o)
		if !out.Confirmed() {
			summary.Rejected[out.Reason]++
			s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", out.Reason.String())))
			s.lg.Info("Order rejected",
				zap.Int64("id", o.ID),
				zap.String("order_id", o.OrderCode),
				zap.Stringer("reason", out.Reason),
				zap.String("field", out.Field),
			)
			continue
		}
		batch = append(batch, *o)
	}

	span.SetAttributes(
		attribute.Int("orders.total", summary.Total),
		attribute.Int("orders.confirmed", len(batch)),
	)

	if len(batch) == 0 {
		s.lg.Info("No orders confirmed", zap.Int("total", summary.Total))
		return summary, nil
	}

	doc, err := s.renderer.Render(ctx, batch)
	if err != nil {
		return nil, &RenderError{Orders: len(batch), Err: err}
	}
	if err := s.archive.Save(ctx, doc); err != nil {
		return nil, &RenderError{Orders: len(batch), Err: errors.Wrap(err, "archive")}
	}

	ids := make([]int64, len(batch))
	for i := range batch {
		ids[i] = batch[i].ID
	}
	if err := s.store.MarkInvoiced(ctx, ids); err != nil {
		// The batch was never applied; drop its document so the next run
		// does not leave a second copy behind.
		if derr := s.archive.Delete(context.WithoutCancel(ctx), doc.ID); derr != nil {
			s.lg.Error("Failed to remove unapplied invoice batch",
				zap.String("batch_id", doc.ID),
				zap.Error(derr),
			)
		}
		return nil, errors.Wrap(err, "mark orders invoiced")
	}

	summary.Confirmed = len(batch)
	summary.Document = doc
	s.confirmed.Add(ctx, int64(len(batch)))
	s.lg.Info("Invoice batch generated",
		zap.String("batch_id", doc.ID),
		zap.String("file", doc.FileName),
		zap.Int("pages", doc.Pages),
		zap.Int("confirmed", summary.Confirmed),
		zap.Int("total", summary.Total),
	)
	return summary, nil
}

// Evaluate moves one fetched order to its terminal state for this run.
func (s *Service) Evaluate(ctx context.Context, o *order.Order) Outcome {
	if v := s.rules.Validate(o); !v.Valid() {
		return Rejected(v.Reason, v.Field)
	}

	switch o.Method() {
	case order.PaymentCOD:
		return Confirmed()
	case order.PaymentOnline:
		if o.PaymentID == "" {
			return Rejected(order.ReasonNoPaymentReference, "")
		}
		if !s.verifier.Verify(ctx, o.PaymentID) {
			return Rejected(order.ReasonPaymentNotVerified, "")
		}
		return Confirmed()
	default:
		return Rejected(order.ReasonPaymentNotVerified, "")
	}
}

// RenderOne renders the invoice for a single order by its code. It does not
// validate the order or change its invoiced flag.
func (s *Service) RenderOne(ctx context.Context, code string) (*invoice.Document, error) {
	ctx, span := s.tracer.Start(ctx, "invoicing.RenderOne")
	defer span.End()

	o, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", code)
	}

	doc, err := s.renderer.Render(ctx, []order.Order{*o})
	if err != nil {
		return nil, &RenderError{Orders: 1, Err: err}
	}
	doc.FileName = invoice.SingleFileName(o.OrderCode)
	return doc, nil
}

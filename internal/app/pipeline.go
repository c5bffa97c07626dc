package app

import (
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/order-invoicer/internal/domain/invoicing"
	"github.com/xenking/order-invoicer/internal/domain/order"
	"github.com/xenking/order-invoicer/internal/domain/payment"
	"github.com/xenking/order-invoicer/internal/pdf"
	"github.com/xenking/order-invoicer/internal/razorpay"
	"github.com/xenking/order-invoicer/internal/storage/postgres"
)

// NewPipeline wires the invoicing service to postgres, Razorpay and the PDF
// renderer.
func NewPipeline(
	lg *zap.Logger,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	cfg *Config,
	pool *pgxpool.Pool,
) (*invoicing.Service, *postgres.OrderRepository, error) {
	gateway, err := razorpay.New(razorpay.Config{
		BaseURL:   cfg.Razorpay.BaseURL,
		KeyID:     cfg.Razorpay.KeyID,
		KeySecret: cfg.Razorpay.KeySecret,
		Timeout:   cfg.Razorpay.Timeout,
	}, tp)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create razorpay client")
	}

	orders := postgres.NewOrderRepository(pool)
	svc, err := invoicing.NewService(
		invoicing.Config{Rules: order.Rules{
			CountryCode: cfg.Rules.CountryCode,
			MaxQuantity: cfg.Rules.MaxQuantity,
		}},
		orders,
		payment.NewVerifier(gateway, lg.Named("payment")),
		pdf.NewRenderer(pdf.Seller{
			Name:    cfg.Seller.Name,
			Address: cfg.Seller.Address,
			Contact: cfg.Seller.Contact,
		}),
		postgres.NewInvoiceArchive(pool),
		lg.Named("invoicing"),
		tp,
		mp,
	)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create invoicing service")
	}
	return svc, orders, nil
}

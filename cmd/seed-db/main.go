package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/order-invoicer/internal/domain/order"
	"github.com/xenking/order-invoicer/internal/storage/postgres"
)

// orderJSON mirrors a row of the orders table.
type orderJSON struct {
	OrderID          string              `json:"order_id"`
	Name             string              `json:"name"`
	Email            string              `json:"email"`
	Phone            string              `json:"phone"`
	Address1         string              `json:"address1"`
	Address2         string              `json:"address2"`
	City             string              `json:"city"`
	State            string              `json:"state"`
	Pin              string              `json:"pin"`
	Notes            string              `json:"notes"`
	ProductIDs       []string            `json:"product_ids"`
	Quantities       []int               `json:"quantities"`
	Prices           []decimal.Decimal   `json:"prices"`
	TotalPrice       decimal.NullDecimal `json:"total_price"`
	PaymentMethod    string              `json:"payment_method"`
	PaymentStatus    string              `json:"payment_status"`
	PaymentID        string              `json:"payment_id"`
	InvoiceGenerated bool                `json:"invoice_generated"`
	CreatedAt        *time.Time          `json:"created_at"`
}

func (o orderJSON) toDomain() order.Order {
	out := order.Order{
		OrderCode:     o.OrderID,
		Name:          o.Name,
		Email:         o.Email,
		Phone:         o.Phone,
		Address1:      o.Address1,
		Address2:      o.Address2,
		City:          o.City,
		State:         o.State,
		PostalCode:    o.Pin,
		Notes:         o.Notes,
		Products:      o.ProductIDs,
		Quantities:    o.Quantities,
		Prices:        o.Prices,
		Total:         o.TotalPrice,
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: o.PaymentStatus,
		PaymentID:     o.PaymentID,
		Invoiced:      o.InvoiceGenerated,
	}
	if o.CreatedAt != nil {
		out.CreatedAt = *o.CreatedAt
	}
	return out
}

func main() {
	var (
		databaseURL string
		ordersFile  string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&ordersFile, "orders-file", "db/seed/orders.json", "path to orders JSON file (.json or .json.gz)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, ordersFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, ordersFile string) error {
	orders, err := readOrders(ordersFile)
	if err != nil {
		return errors.Wrap(err, "read orders")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("inserting orders", slog.Int("count", len(orders)))

	if err := postgres.NewOrderRepository(pool).Insert(ctx, orders); err != nil {
		return errors.Wrap(err, "insert orders")
	}

	for _, o := range orders {
		slog.Info("inserted order", slog.Int64("id", o.ID), slog.String("order_id", o.OrderCode))
	}
	return nil
}

// readOrders loads a JSON array of orders, transparently decompressing files
// ending in .gz.
func readOrders(path string) ([]order.Order, error) {
	slog.Info("reading orders file", slog.String("path", path))

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open orders file")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip stream")
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	return decodeOrders(r)
}

func decodeOrders(r io.Reader) ([]order.Order, error) {
	var rows []orderJSON
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, errors.Wrap(err, "parse orders JSON")
	}

	orders := make([]order.Order, len(rows))
	for i, row := range rows {
		orders[i] = row.toDomain()
	}
	return orders, nil
}

package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/order-invoicer/internal/domain/order"
)

const orderColumns = `id, order_id, name, email, phone, address1, address2, city, state, pin, notes,
	product_ids, quantities, prices, total_price,
	payment_method, payment_status, payment_id, invoice_generated, created_at`

const (
	fetchUninvoicedSQL = `SELECT ` + orderColumns + ` FROM orders
	WHERE NOT invoice_generated
	ORDER BY created_at DESC, id DESC`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
	ORDER BY created_at DESC, id DESC`

	getOrderByCodeSQL = `SELECT ` + orderColumns + ` FROM orders
	WHERE order_id = $1
	ORDER BY created_at DESC, id DESC
	LIMIT 1`

	markInvoicedSQL = `UPDATE orders SET invoice_generated = TRUE WHERE id = ANY($1)`

	insertOrderSQL = `INSERT INTO orders (order_id, name, email, phone, address1, address2, city, state, pin, notes,
	product_ids, quantities, prices, total_price,
	payment_method, payment_status, payment_id, invoice_generated, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, COALESCE($19, NOW()))
	RETURNING id`
)

var _ order.Store = (*OrderRepository)(nil)

// OrderRepository implements order.Store backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// FetchUninvoiced returns every order whose invoice flag is false, newest
// first.
func (r *OrderRepository) FetchUninvoiced(ctx context.Context) ([]order.Order, error) {
	return r.query(ctx, fetchUninvoicedSQL)
}

// List returns all orders, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	return r.query(ctx, listOrdersSQL)
}

// GetByCode returns the newest order carrying the given order code.
func (r *OrderRepository) GetByCode(ctx context.Context, code string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByCodeSQL, code)
	if err != nil {
		return nil, errors.Wrapf(err, "query order %q", code)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "scan order %q", code)
	}
	return &o, nil
}

// MarkInvoiced flips the invoice flag for all ids in one transaction. If any
// id does not exist nothing is changed.
func (r *OrderRepository) MarkInvoiced(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, markInvoicedSQL, ids)
		if err != nil {
			return errors.Wrap(err, "update orders")
		}
		if n := tag.RowsAffected(); n != int64(len(ids)) {
			return errors.Errorf("marked %d of %d orders", n, len(ids))
		}
		return nil
	})
}

// Insert stores orders and sets their generated IDs. Used for seeding.
func (r *OrderRepository) Insert(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range orders {
		o := &orders[i]
		var createdAt *time.Time
		if !o.CreatedAt.IsZero() {
			createdAt = &o.CreatedAt
		}
		quantities := make([]int32, len(o.Quantities))
		for j, q := range o.Quantities {
			quantities[j] = int32(q)
		}
		batch.Queue(insertOrderSQL,
			nullable(o.OrderCode), nullable(o.Name), nullable(o.Email), nullable(o.Phone),
			nullable(o.Address1), nullable(o.Address2), nullable(o.City), nullable(o.State),
			nullable(o.PostalCode), nullable(o.Notes),
			o.Products, quantities, o.Prices, o.Total,
			nullable(o.PaymentMethod), nullable(o.PaymentStatus), nullable(o.PaymentID),
			o.Invoiced, createdAt,
		).QueryRow(func(row pgx.Row) error {
			return row.Scan(&o.ID)
		})
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrap(err, "insert orders")
		}
		return nil
	})
}

func (r *OrderRepository) query(ctx context.Context, sql string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, errors.Wrap(err, "query orders")
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "scan orders")
	}
	return orders, nil
}

// scanOrder maps one orders row. Nullable text columns become empty strings;
// a NULL total stays invalid so validation reports it missing. NULL array
// elements never fail the scan, so one malformed row cannot hide the rest of
// the result set from the pipeline.
func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o          order.Order
		text       [10]*string
		payment    [3]*string
		products   []*string
		quantities []pgtype.Int4
		prices     []decimal.NullDecimal
	)
	if err := row.Scan(
		&o.ID, &text[0], &text[1], &text[2], &text[3], &text[4], &text[5], &text[6], &text[7], &text[8], &text[9],
		&products, &quantities, &prices, &o.Total,
		&payment[0], &payment[1], &payment[2], &o.Invoiced, &o.CreatedAt,
	); err != nil {
		return order.Order{}, err
	}

	o.OrderCode = deref(text[0])
	o.Name = deref(text[1])
	o.Email = deref(text[2])
	o.Phone = deref(text[3])
	o.Address1 = deref(text[4])
	o.Address2 = deref(text[5])
	o.City = deref(text[6])
	o.State = deref(text[7])
	o.PostalCode = deref(text[8])
	o.Notes = deref(text[9])
	o.PaymentMethod = deref(payment[0])
	o.PaymentStatus = deref(payment[1])
	o.PaymentID = deref(payment[2])

	o.Products = productsFromDB(products)
	o.Quantities = quantitiesFromDB(quantities)
	o.Prices = pricesFromDB(prices)
	return o, nil
}

// productsFromDB drops NULL product IDs. The shortened sequence no longer
// lines up with quantities and prices, which validation rejects.
func productsFromDB(in []*string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, p := range in {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// quantitiesFromDB keeps positions and turns a NULL quantity into 0, which
// validation rejects as an invalid quantity.
func quantitiesFromDB(in []pgtype.Int4) []int {
	if in == nil {
		return nil
	}
	out := make([]int, len(in))
	for i, q := range in {
		if q.Valid {
			out[i] = int(q.Int32)
		}
	}
	return out
}

// pricesFromDB drops NULL prices, leaving a misaligned order.
func pricesFromDB(in []decimal.NullDecimal) []decimal.Decimal {
	if in == nil {
		return nil
	}
	out := make([]decimal.Decimal, 0, len(in))
	for _, p := range in {
		if p.Valid {
			out = append(out, p.Decimal)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

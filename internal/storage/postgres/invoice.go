package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/order-invoicer/internal/domain/invoice"
)

const insertBatchSQL = `INSERT INTO invoice_batches (id, file_name, order_ids, pages, document, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

const deleteBatchSQL = `DELETE FROM invoice_batches WHERE id = $1`

var _ invoice.Archive = (*InvoiceArchive)(nil)

// InvoiceArchive stores rendered invoice batches in the invoice_batches table.
type InvoiceArchive struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewInvoiceArchive returns an InvoiceArchive that uses the given pool.
func NewInvoiceArchive(pool *pgxpool.Pool) *InvoiceArchive {
	return &InvoiceArchive{pool: pool, now: time.Now}
}

// Save inserts doc under a fresh batch ID and records the ID on doc.
func (a *InvoiceArchive) Save(ctx context.Context, doc *invoice.Document) error {
	id := uuid.New()
	created := doc.Created
	if created.IsZero() {
		created = a.now()
	}
	if _, err := a.pool.Exec(ctx, insertBatchSQL,
		id, doc.FileName, doc.OrderIDs, doc.Pages, doc.Data, created,
	); err != nil {
		return errors.Wrapf(err, "archive %s", doc.FileName)
	}
	doc.ID = id.String()
	return nil
}

// Delete removes the batch with the given ID.
func (a *InvoiceArchive) Delete(ctx context.Context, id string) error {
	batchID, err := uuid.Parse(id)
	if err != nil {
		return errors.Wrapf(err, "parse batch id %q", id)
	}
	if _, err := a.pool.Exec(ctx, deleteBatchSQL, batchID); err != nil {
		return errors.Wrapf(err, "delete batch %s", id)
	}
	return nil
}

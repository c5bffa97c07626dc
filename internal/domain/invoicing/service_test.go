package invoicing

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/order-invoicer/internal/domain/invoice"
	"github.com/xenking/order-invoicer/internal/domain/order"
)

// --- Mock implementations ---

type memStore struct {
	orders   []order.Order
	fetchErr error
	markErr  error
	marked   [][]int64
}

func (m *memStore) FetchUninvoiced(_ context.Context) ([]order.Order, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	var out []order.Order
	for _, o := range m.orders {
		if !o.Invoiced {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memStore) MarkInvoiced(_ context.Context, ids []int64) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.marked = append(m.marked, ids)
	for i := range m.orders {
		if slices.Contains(ids, m.orders[i].ID) {
			m.orders[i].Invoiced = true
		}
	}
	return nil
}

func (m *memStore) List(_ context.Context) ([]order.Order, error) {
	return m.orders, nil
}

func (m *memStore) GetByCode(_ context.Context, code string) (*order.Order, error) {
	for i := range m.orders {
		if m.orders[i].OrderCode == code {
			o := m.orders[i]
			return &o, nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *memStore) invoiced(id int64) bool {
	for _, o := range m.orders {
		if o.ID == id {
			return o.Invoiced
		}
	}
	return false
}

type stubVerifier struct {
	settled map[string]bool
	calls   []string
}

func (v *stubVerifier) Verify(_ context.Context, reference string) bool {
	v.calls = append(v.calls, reference)
	return v.settled[reference]
}

type stubRenderer struct {
	err     error
	batches [][]order.Order
}

func (r *stubRenderer) Render(_ context.Context, orders []order.Order) (*invoice.Document, error) {
	r.batches = append(r.batches, orders)
	if r.err != nil {
		return nil, r.err
	}
	ids := make([]int64, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	return &invoice.Document{
		FileName: invoice.BatchFileName(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)),
		Data:     []byte("%PDF-1.3"),
		Pages:    (len(orders) + 1) / 2,
		OrderIDs: ids,
	}, nil
}

type stubArchive struct {
	err       error
	deleteErr error
	saved     []*invoice.Document
	deleted   []string
}

func (a *stubArchive) Save(_ context.Context, doc *invoice.Document) error {
	if a.err != nil {
		return a.err
	}
	doc.ID = fmt.Sprintf("batch-%d", len(a.saved)+1)
	a.saved = append(a.saved, doc)
	return nil
}

func (a *stubArchive) Delete(_ context.Context, id string) error {
	if a.deleteErr != nil {
		return a.deleteErr
	}
	a.deleted = append(a.deleted, id)
	return nil
}

// --- Helpers ---

func newOrder(id int64, code string) order.Order {
	return order.Order{
		ID:            id,
		OrderCode:     code,
		Name:          "Aarav Sharma",
		Email:         "aarav@example.com",
		Phone:         "+918840393051",
		Address1:      "12 MG Road",
		City:          "Kanpur",
		State:         "Uttar Pradesh",
		PostalCode:    "208007",
		Products:      []string{"SKU-TEA-250"},
		Quantities:    []int{2},
		Prices:        []decimal.Decimal{decimal.RequireFromString("249.00")},
		Total:         decimal.NewNullDecimal(decimal.RequireFromString("498.00")),
		PaymentMethod: "COD",
	}
}

func onlineOrder(id int64, code, paymentID string) order.Order {
	o := newOrder(id, code)
	o.PaymentMethod = "online"
	o.PaymentID = paymentID
	return o
}

type fixture struct {
	store    *memStore
	verifier *stubVerifier
	renderer *stubRenderer
	archive  *stubArchive
	svc      *Service
}

func newFixture(t *testing.T, orders ...order.Order) *fixture {
	t.Helper()

	f := &fixture{
		store:    &memStore{orders: orders},
		verifier: &stubVerifier{settled: map[string]bool{}},
		renderer: &stubRenderer{},
		archive:  &stubArchive{},
	}
	svc, err := NewService(
		Config{Rules: order.DefaultRules},
		f.store, f.verifier, f.renderer, f.archive,
		zaptest.NewLogger(t),
		tracenoop.NewTracerProvider(),
		metricnoop.NewMeterProvider(),
	)
	require.NoError(t, err)
	f.svc = svc
	return f
}

// --- Tests ---

func TestRun_NoOrders(t *testing.T) {
	f := newFixture(t)

	s, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, s.Total)
	assert.Equal(t, 0, s.Confirmed)
	assert.Nil(t, s.Document)
	assert.Empty(t, f.renderer.batches)
	assert.Empty(t, f.archive.saved)
	assert.Empty(t, f.store.marked)
}

func TestRun_AllRejectedSkipsRendering(t *testing.T) {
	bad := newOrder(1, "IND-1")
	bad.Phone = "123"
	f := newFixture(t, bad)

	s, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Total)
	assert.Equal(t, 0, s.Confirmed)
	assert.Equal(t, 1, s.Rejected[order.ReasonInvalidPhone])
	assert.Empty(t, f.renderer.batches)
	assert.Empty(t, f.store.marked)
	assert.False(t, f.store.invoiced(1))
}

func TestRun_CODConfirmedRegardlessOfReference(t *testing.T) {
	withRef := newOrder(1, "IND-1")
	withRef.PaymentID = "pay_unverified"
	withoutRef := newOrder(2, "IND-2")
	f := newFixture(t, withRef, withoutRef)

	s, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, s.Confirmed)
	assert.Empty(t, f.verifier.calls)
	assert.True(t, f.store.invoiced(1))
	assert.True(t, f.store.invoiced(2))
}

func TestRun_OnlineVerified(t *testing.T) {
	f := newFixture(t, onlineOrder(1, "IND-1", "pay_ok"))
	f.verifier.settled["pay_ok"] = true

	s, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Confirmed)
	assert.Equal(t, []string{"pay_ok"}, f.verifier.calls)
	assert.True(t, f.store.invoiced(1))
}

func TestRun_OnlineNotVerifiedIsNeverConfirmed(t *testing.T) {
	f := newFixture(t, onlineOrder(1, "IND-1", "pay_pending"))

	s, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, s.Confirmed)
	assert.Equal(t, 1, s.Rejected[order.ReasonPaymentNotVerified])
	assert.False(t, f.store.invoiced(1))
}

func TestRun_OnlineWithoutReference(t *testing.T) {
	f := newFixture(t, onlineOrder(1, "IND-1", ""))

	s, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Rejected[order.ReasonNoPaymentReference])
	assert.Empty(t, f.verifier.calls)
}

func TestRun_InvalidOrderNotVerified(t *testing.T) {
	o := onlineOrder(1, "IND-1", "pay_ok")
	o.Quantities = []int{9}
	f := newFixture(t, o)
	f.verifier.settled["pay_ok"] = true

	s, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Rejected[order.ReasonSuspiciousQuantity])
	assert.Empty(t, f.verifier.calls)
}

func TestRun_MixedBatchOnlyConfirmedMarked(t *testing.T) {
	suspicious := newOrder(2, "IND-2")
	suspicious.Quantities = []int{6}
	suspicious.Total = decimal.NewNullDecimal(decimal.RequireFromString("1494.00"))

	mismatch := newOrder(3, "IND-3")
	mismatch.Total = decimal.NewNullDecimal(decimal.RequireFromString("1.00"))

	f := newFixture(t,
		newOrder(1, "IND-1"),
		suspicious,
		mismatch,
		onlineOrder(4, "IND-4", "pay_ok"),
		onlineOrder(5, "IND-5", "pay_failed"),
	)
	f.verifier.settled["pay_ok"] = true

	s, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 2, s.Confirmed)
	assert.Equal(t, 1, s.Rejected[order.ReasonSuspiciousQuantity])
	assert.Equal(t, 1, s.Rejected[order.ReasonTotalMismatch])
	assert.Equal(t, 1, s.Rejected[order.ReasonPaymentNotVerified])

	require.Len(t, f.renderer.batches, 1)
	require.Len(t, f.renderer.batches[0], 2)
	assert.Equal(t, int64(1), f.renderer.batches[0][0].ID)
	assert.Equal(t, int64(4), f.renderer.batches[0][1].ID)

	require.Len(t, f.archive.saved, 1)
	assert.Equal(t, [][]int64{{1, 4}}, f.store.marked)

	assert.True(t, f.store.invoiced(1))
	assert.False(t, f.store.invoiced(2))
	assert.False(t, f.store.invoiced(3))
	assert.True(t, f.store.invoiced(4))
	assert.False(t, f.store.invoiced(5))
	assert.NotNil(t, s.Document)
}

func TestRun_RenderFailureMarksNothing(t *testing.T) {
	f := newFixture(t, newOrder(1, "IND-1"), newOrder(2, "IND-2"))
	f.renderer.err = errors.New("font not found")

	_, err := f.svc.Run(context.Background())
	require.Error(t, err)

	var rerr *RenderError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 2, rerr.Orders)
	assert.Contains(t, err.Error(), "font not found")

	assert.Empty(t, f.archive.saved)
	assert.Empty(t, f.store.marked)
	assert.False(t, f.store.invoiced(1))
	assert.False(t, f.store.invoiced(2))
}

func TestRun_ArchiveFailureMarksNothing(t *testing.T) {
	f := newFixture(t, newOrder(1, "IND-1"))
	f.archive.err = errors.New("disk full")

	_, err := f.svc.Run(context.Background())

	var rerr *RenderError
	require.ErrorAs(t, err, &rerr)
	assert.Empty(t, f.store.marked)
	assert.False(t, f.store.invoiced(1))
}

func TestRun_FetchErrorPropagates(t *testing.T) {
	storeErr := errors.New("connection reset")
	f := newFixture(t)
	f.store.fetchErr = storeErr

	_, err := f.svc.Run(context.Background())
	require.ErrorIs(t, err, storeErr)
	assert.Empty(t, f.renderer.batches)
}

func TestRun_MarkErrorPropagates(t *testing.T) {
	markErr := errors.New("update failed")
	f := newFixture(t, newOrder(1, "IND-1"))
	f.store.markErr = markErr

	_, err := f.svc.Run(context.Background())
	require.ErrorIs(t, err, markErr)

	var rerr *RenderError
	assert.False(t, errors.As(err, &rerr))
	assert.False(t, f.store.invoiced(1))

	require.Len(t, f.archive.saved, 1)
	assert.Equal(t, []string{"batch-1"}, f.archive.deleted)
}

func TestRun_MarkErrorWithFailedCleanupStillReportsMarkError(t *testing.T) {
	markErr := errors.New("update failed")
	f := newFixture(t, newOrder(1, "IND-1"))
	f.store.markErr = markErr
	f.archive.deleteErr = errors.New("delete failed")

	_, err := f.svc.Run(context.Background())
	require.ErrorIs(t, err, markErr)
	assert.Empty(t, f.archive.deleted)
}

func TestRun_SuccessKeepsArchivedBatch(t *testing.T) {
	f := newFixture(t, newOrder(1, "IND-1"))

	summary, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "batch-1", summary.Document.ID)
	assert.Empty(t, f.archive.deleted)
}

func TestRun_SecondRunFindsNothingToConfirm(t *testing.T) {
	f := newFixture(t,
		newOrder(1, "IND-1"),
		onlineOrder(2, "IND-2", "pay_ok"),
	)
	f.verifier.settled["pay_ok"] = true

	first, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Confirmed)

	second, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Total)
	assert.Equal(t, 0, second.Confirmed)
	assert.Len(t, f.renderer.batches, 1)
}

func TestRun_RejectedOrderReconsideredNextRun(t *testing.T) {
	f := newFixture(t, onlineOrder(1, "IND-1", "pay_late"))

	first, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, first.Confirmed)

	f.verifier.settled["pay_late"] = true

	second, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.Total)
	assert.Equal(t, 1, second.Confirmed)
}

func TestEvaluate(t *testing.T) {
	f := newFixture(t)
	f.verifier.settled["pay_ok"] = true

	o := newOrder(1, "IND-1")
	assert.True(t, f.svc.Evaluate(context.Background(), &o).Confirmed())

	bad := newOrder(2, "IND-2")
	bad.Name = ""
	out := f.svc.Evaluate(context.Background(), &bad)
	assert.False(t, out.Confirmed())
	assert.Equal(t, order.ReasonMissingField, out.Reason)
	assert.Equal(t, "Name", out.Field)
	assert.Equal(t, "rejected(missing_field)", out.String())
}

func TestOutcome_ZeroValueIsNotConfirmed(t *testing.T) {
	var out Outcome
	assert.False(t, out.Confirmed())
	assert.Equal(t, "unset", out.String())
}

func TestRenderOne(t *testing.T) {
	f := newFixture(t, newOrder(1, "IND-1"))

	doc, err := f.svc.RenderOne(context.Background(), "IND-1")
	require.NoError(t, err)
	assert.Equal(t, "Invoice_IND-1.pdf", doc.FileName)
	assert.Empty(t, f.store.marked)
	assert.Empty(t, f.archive.saved)
}

func TestRenderOne_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RenderOne(context.Background(), "missing")
	require.ErrorIs(t, err, order.ErrNotFound)
}

// Package payment decides whether an online order's payment has settled.
package payment

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// ErrNotFound is returned by a Gateway when the payment reference is unknown.
var ErrNotFound = errors.New("payment not found")

// Status is the gateway-reported state of a payment.
type Status string

// StatusCaptured is the only status that counts as settled.
const StatusCaptured Status = "captured"

// Payment is the subset of gateway payment data the verifier needs.
type Payment struct {
	ID       string
	Status   Status
	Amount   int64 // smallest currency unit
	Currency string
	Method   string
}

// Gateway fetches payment state from a payment provider.
type Gateway interface {
	FetchPayment(ctx context.Context, id string) (*Payment, error)
}

// Verifier answers whether a payment reference is fully captured.
//
// Verification fails closed: a transport error, an unknown reference or any
// status other than captured yields false. Errors are logged and never
// returned, so an ambiguous payment can never lead to an invoice.
type Verifier struct {
	gateway Gateway
	lg      *zap.Logger
}

// NewVerifier creates a Verifier backed by the given Gateway.
func NewVerifier(gateway Gateway, lg *zap.Logger) *Verifier {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Verifier{gateway: gateway, lg: lg}
}

// Verify reports whether the payment identified by reference was captured.
func (v *Verifier) Verify(ctx context.Context, reference string) bool {
	p, err := v.gateway.FetchPayment(ctx, reference)
	switch {
	case errors.Is(err, ErrNotFound):
		v.lg.Info("Payment not found", zap.String("payment_id", reference))
		return false
	case err != nil:
		v.lg.Warn("Payment lookup failed, treating as unverified",
			zap.String("payment_id", reference),
			zap.Error(err),
		)
		return false
	case p == nil:
		return false
	}

	if p.Status != StatusCaptured {
		v.lg.Info("Payment not captured",
			zap.String("payment_id", reference),
			zap.String("status", string(p.Status)),
		)
		return false
	}
	return true
}

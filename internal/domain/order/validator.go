package order

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/shopspring/decimal"
)

// Reason enumerates why an order was rejected.
type Reason int

const (
	// ReasonNone means the order was not rejected.
	ReasonNone Reason = iota
	// ReasonMissingField means a required field is empty or absent.
	ReasonMissingField
	// ReasonMisalignedItems means the product, quantity and price sequences
	// have different lengths.
	ReasonMisalignedItems
	// ReasonInvalidPhone means the normalized phone is not 10 digits.
	ReasonInvalidPhone
	// ReasonInvalidQuantity means a quantity is not a positive integer.
	ReasonInvalidQuantity
	// ReasonSuspiciousQuantity means a quantity exceeds the allowed maximum.
	ReasonSuspiciousQuantity
	// ReasonTotalMismatch means the stated total differs from the line items.
	ReasonTotalMismatch
	// ReasonMissingAddress means address line 1 or postal code is empty.
	ReasonMissingAddress
	// ReasonNoPaymentReference means an online order has no payment ID.
	ReasonNoPaymentReference
	// ReasonPaymentNotVerified means the gateway did not confirm capture.
	ReasonPaymentNotVerified
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonMissingField:
		return "missing_field"
	case ReasonMisalignedItems:
		return "misaligned_items"
	case ReasonInvalidPhone:
		return "invalid_phone"
	case ReasonInvalidQuantity:
		return "invalid_quantity"
	case ReasonSuspiciousQuantity:
		return "suspicious_quantity"
	case ReasonTotalMismatch:
		return "total_mismatch"
	case ReasonMissingAddress:
		return "missing_address"
	case ReasonNoPaymentReference:
		return "no_payment_reference"
	case ReasonPaymentNotVerified:
		return "payment_not_verified"
	default:
		return "unknown"
	}
}

// Verdict is the result of validating one order.
type Verdict struct {
	Reason Reason
	// Field names the offending field for ReasonMissingField.
	Field string
}

// Valid reports whether the order passed every check.
func (v Verdict) Valid() bool {
	return v.Reason == ReasonNone
}

// Rules holds the tunable parameters of order validation.
type Rules struct {
	// CountryCode is stripped from the front of phone numbers.
	CountryCode string
	// MaxQuantity is the largest per-line quantity that is not suspicious.
	MaxQuantity int
}

// DefaultRules are the rules used by Validate.
var DefaultRules = Rules{
	CountryCode: "+91",
	MaxQuantity: 5,
}

const phoneDigits = 10

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// Validate checks o against DefaultRules.
func Validate(o *Order) Verdict {
	return DefaultRules.Validate(o)
}

// Validate runs the structural and business checks on o in a fixed order and
// returns the first failure. It has no side effects.
func (r Rules) Validate(o *Order) Verdict {
	if field, ok := missingField(o); !ok {
		return Verdict{Reason: ReasonMissingField, Field: field}
	}
	if len(o.Products) != len(o.Quantities) || len(o.Quantities) != len(o.Prices) {
		return Verdict{Reason: ReasonMisalignedItems}
	}
	if _, ok := r.NormalizePhone(o.Phone); !ok {
		return Verdict{Reason: ReasonInvalidPhone}
	}
	for _, q := range o.Quantities {
		if q < 1 {
			return Verdict{Reason: ReasonInvalidQuantity}
		}
	}
	for _, q := range o.Quantities {
		if q > r.MaxQuantity {
			return Verdict{Reason: ReasonSuspiciousQuantity}
		}
	}
	if !LineTotal(o).Equal(o.Total.Decimal) {
		return Verdict{Reason: ReasonTotalMismatch}
	}
	if strings.TrimSpace(o.Address1) == "" || strings.TrimSpace(o.PostalCode) == "" {
		return Verdict{Reason: ReasonMissingAddress}
	}
	return Verdict{}
}

// missingField returns the first required field that is blank.
func missingField(o *Order) (string, bool) {
	if err := structValidator.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return verrs[0].Field(), false
		}
		return "", false
	}
	if !o.Total.Valid {
		return "Total", false
	}
	return "", true
}

// NormalizePhone strips the country code and leading zeros from phone and
// reports whether the remainder is exactly ten digits.
func (r Rules) NormalizePhone(phone string) (string, bool) {
	p := strings.TrimSpace(phone)
	if r.CountryCode != "" {
		p = strings.TrimPrefix(p, r.CountryCode)
	}
	p = strings.TrimLeft(p, "0")
	if len(p) != phoneDigits {
		return p, false
	}
	for i := range len(p) {
		if p[i] < '0' || p[i] > '9' {
			return p, false
		}
	}
	return p, true
}

// LineTotal sums quantity times price over the order's line items.
func LineTotal(o *Order) decimal.Decimal {
	total := decimal.Zero
	for _, li := range o.LineItems() {
		total = total.Add(li.Amount())
	}
	return total
}

package invoicing

import "github.com/xenking/order-invoicer/internal/domain/order"

// Outcome is the terminal state of one order within a run: either confirmed
// or rejected with a reason. The zero value is not a valid outcome.
type Outcome struct {
	state  state
	Reason order.Reason
	Field  string
}

type state uint8

const (
	stateUnset state = iota
	stateConfirmed
	stateRejected
)

// Confirmed returns the outcome of an order that passed validation and
// payment checks.
func Confirmed() Outcome {
	return Outcome{state: stateConfirmed}
}

// Rejected returns the outcome of an order that failed with reason.
func Rejected(reason order.Reason, field string) Outcome {
	return Outcome{state: stateRejected, Reason: reason, Field: field}
}

// Confirmed reports whether the order belongs in this run's invoice batch.
func (o Outcome) Confirmed() bool {
	return o.state == stateConfirmed
}

func (o Outcome) String() string {
	switch o.state {
	case stateConfirmed:
		return "confirmed"
	case stateRejected:
		return "rejected(" + o.Reason.String() + ")"
	default:
		return "unset"
	}
}

package enums

import "fmt"

// PaymentStatus tracks the lifecycle of a payment ledger entry.
type PaymentStatus string

const (
	PaymentStatusPending          PaymentStatus = "pending"
	PaymentStatusAwaitingApproval PaymentStatus = "awaiting_approval"
	PaymentStatusSuccess          PaymentStatus = "success"
	PaymentStatusFailed           PaymentStatus = "failed"
	PaymentStatusRefunded         PaymentStatus = "refunded"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusAwaitingApproval,
	PaymentStatusSuccess,
	PaymentStatusFailed,
	PaymentStatusRefunded,
}

// Transitions are forward-only. A payment never leaves a terminal state
// except success -> refunded.
var allowedPaymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:          {PaymentStatusSuccess, PaymentStatusFailed},
	PaymentStatusAwaitingApproval: {PaymentStatusSuccess, PaymentStatusFailed},
	PaymentStatusSuccess:          {PaymentStatusRefunded},
	PaymentStatusFailed:           {},
	PaymentStatusRefunded:         {},
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition except refund bookkeeping
// is expected.
func (p PaymentStatus) IsTerminal() bool {
	return p == PaymentStatusSuccess || p == PaymentStatusFailed || p == PaymentStatusRefunded
}

// CanTransitionTo validates a status change against the allowed transition set.
func (p PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, candidate := range allowedPaymentTransitions[p] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}

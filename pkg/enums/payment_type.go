package enums

import "fmt"

// PaymentType classifies what a payment pays for.
type PaymentType string

const (
	PaymentTypeInitial    PaymentType = "initial"
	PaymentTypeExtraPages PaymentType = "extra_pages"
	PaymentTypeReprint    PaymentType = "reprint"
)

var validPaymentTypes = []PaymentType{
	PaymentTypeInitial,
	PaymentTypeExtraPages,
	PaymentTypeReprint,
}

// String implements fmt.Stringer.
func (p PaymentType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentType.
func (p PaymentType) IsValid() bool {
	for _, candidate := range validPaymentTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// RequiresExistingOrder reports whether the payment must reference an order
// when it is initialized.
func (p PaymentType) RequiresExistingOrder() bool {
	return p == PaymentTypeExtraPages || p == PaymentTypeReprint
}

// ParsePaymentType converts raw input into a PaymentType.
func ParsePaymentType(value string) (PaymentType, error) {
	for _, candidate := range validPaymentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment type %q", value)
}

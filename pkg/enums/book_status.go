package enums

import "fmt"

// BookStatus tracks production progress after payment.
type BookStatus string

const (
	BookStatusPaymentReceived BookStatus = "payment_received"
	BookStatusWriting         BookStatus = "writing"
	BookStatusDesign          BookStatus = "design"
	BookStatusPrinting        BookStatus = "printing"
	BookStatusShipped         BookStatus = "shipped"
	BookStatusDelivered       BookStatus = "delivered"
)

var validBookStatuses = []BookStatus{
	BookStatusPaymentReceived,
	BookStatusWriting,
	BookStatusDesign,
	BookStatusPrinting,
	BookStatusShipped,
	BookStatusDelivered,
}

// String implements fmt.Stringer.
func (b BookStatus) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BookStatus.
func (b BookStatus) IsValid() bool {
	for _, candidate := range validBookStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBookStatus converts raw input into a BookStatus.
func ParseBookStatus(value string) (BookStatus, error) {
	for _, candidate := range validBookStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid book status %q", value)
}

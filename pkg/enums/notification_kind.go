package enums

import "fmt"

// NotificationKind classifies in-app notification rows.
type NotificationKind string

const (
	NotificationKindBankTransferSubmitted NotificationKind = "bank_transfer_submitted"
	NotificationKindBankTransferApproved  NotificationKind = "bank_transfer_approved"
	NotificationKindBankTransferRejected  NotificationKind = "bank_transfer_rejected"
	NotificationKindPaymentReceived       NotificationKind = "payment_received"
)

var validNotificationKinds = []NotificationKind{
	NotificationKindBankTransferSubmitted,
	NotificationKindBankTransferApproved,
	NotificationKindBankTransferRejected,
	NotificationKindPaymentReceived,
}

// String implements fmt.Stringer.
func (n NotificationKind) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationKind.
func (n NotificationKind) IsValid() bool {
	for _, candidate := range validNotificationKinds {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationKind converts raw input into a NotificationKind.
func ParseNotificationKind(value string) (NotificationKind, error) {
	for _, candidate := range validNotificationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification kind %q", value)
}

package enums

import "fmt"

// PaymentProvider identifies one payment gateway integration.
type PaymentProvider string

const (
	PaymentProviderPaystack     PaymentProvider = "paystack"
	PaymentProviderFlutterwave  PaymentProvider = "flutterwave"
	PaymentProviderOPay         PaymentProvider = "opay"
	PaymentProviderBankTransfer PaymentProvider = "bank_transfer"
)

var validPaymentProviders = []PaymentProvider{
	PaymentProviderPaystack,
	PaymentProviderFlutterwave,
	PaymentProviderOPay,
	PaymentProviderBankTransfer,
}

// OnlinePaymentProviders lists providers reachable through an online adapter,
// in the fixed order verify fallback tries them.
func OnlinePaymentProviders() []PaymentProvider {
	return []PaymentProvider{
		PaymentProviderPaystack,
		PaymentProviderFlutterwave,
		PaymentProviderOPay,
	}
}

// String implements fmt.Stringer.
func (p PaymentProvider) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentProvider.
func (p PaymentProvider) IsValid() bool {
	for _, candidate := range validPaymentProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsOnline reports whether the provider is reached through an online adapter.
func (p PaymentProvider) IsOnline() bool {
	return p.IsValid() && p != PaymentProviderBankTransfer
}

// ParsePaymentProvider converts raw input into a PaymentProvider.
func ParsePaymentProvider(value string) (PaymentProvider, error) {
	for _, candidate := range validPaymentProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment provider %q", value)
}

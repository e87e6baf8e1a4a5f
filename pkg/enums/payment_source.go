package enums

import "fmt"

// PaymentSource records which path created a payment row.
type PaymentSource string

const (
	PaymentSourceStripeWebhook PaymentSource = "stripe-webhook"
	PaymentSourceManual        PaymentSource = "manual"
	PaymentSourceAdminReplay   PaymentSource = "admin-replay"
)

var validPaymentSources = []PaymentSource{
	PaymentSourceStripeWebhook,
	PaymentSourceManual,
	PaymentSourceAdminReplay,
}

// IsValid reports whether the value matches a known payment source.
func (s PaymentSource) IsValid() bool {
	for _, candidate := range validPaymentSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePaymentSource converts raw input into PaymentSource.
func ParsePaymentSource(value string) (PaymentSource, error) {
	for _, candidate := range validPaymentSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment source %q", value)
}

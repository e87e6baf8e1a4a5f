package enums

import "testing"

func TestParsePaymentSource(t *testing.T) {
	got, err := ParsePaymentSource("stripe-webhook")
	if err != nil || got != PaymentSourceStripeWebhook {
		t.Fatalf("expected stripe-webhook, got %q (%v)", got, err)
	}
	if _, err := ParsePaymentSource("paypal"); err == nil {
		t.Fatal("expected unknown source to fail")
	}
	if PaymentSource("manual").IsValid() != true {
		t.Fatal("manual should be valid")
	}
}

func TestAuditViaPaymentSource(t *testing.T) {
	tests := map[AuditVia]PaymentSource{
		AuditViaWebhook:     PaymentSourceStripeWebhook,
		AuditViaAdmin:       PaymentSourceManual,
		AuditViaAdminReplay: PaymentSourceAdminReplay,
		AuditViaReconcile:   PaymentSourceAdminReplay,
	}
	for via, want := range tests {
		if got := via.PaymentSource(); got != want {
			t.Fatalf("%s: expected %s, got %s", via, want, got)
		}
		if !via.IsValid() {
			t.Fatalf("%s should be valid", via)
		}
	}
	if AuditVia("carrier-pigeon").IsValid() {
		t.Fatal("unknown via should be invalid")
	}
}

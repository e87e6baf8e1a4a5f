package enums

// AuditVia tags the provenance of a credit attempt in the audit trail.
type AuditVia string

const (
	AuditViaWebhook     AuditVia = "webhook"
	AuditViaAdmin       AuditVia = "admin"
	AuditViaAdminReplay AuditVia = "admin-replay"
	AuditViaReconcile   AuditVia = "reconcile"
)

// PaymentSource maps a provenance tag onto the payment source persisted with
// a newly recorded payment.
func (v AuditVia) PaymentSource() PaymentSource {
	switch v {
	case AuditViaWebhook:
		return PaymentSourceStripeWebhook
	case AuditViaAdmin:
		return PaymentSourceManual
	default:
		return PaymentSourceAdminReplay
	}
}

func (v AuditVia) IsValid() bool {
	switch v {
	case AuditViaWebhook, AuditViaAdmin, AuditViaAdminReplay, AuditViaReconcile:
		return true
	}
	return false
}

// Audit event types.
const (
	AuditTypeCheckoutCompleted = "checkout.session.completed"
	AuditTypeManualCredit      = "manual.credit"
)

package credits

import "github.com/talentkonnect/raffle-backend/pkg/enums"

// ReasonDuplicatePayment marks a credit that was skipped because its payment
// id had already been recorded.
const ReasonDuplicatePayment = "duplicate-payment"

// Event is the canonical credit request fed to the engine.
type Event struct {
	UserID    string
	Entries   int64
	Amount    int64
	PaymentID string
	SessionID string
	EventID   string
	Via       enums.AuditVia
	Type      string
}

// Result reports the outcome of a credit attempt.
type Result struct {
	Applied      bool           `json:"applied"`
	TotalTickets int64          `json:"totalTickets"`
	Reason       string         `json:"reason,omitempty"`
	UserID       string         `json:"userId"`
	Entries      int64          `json:"entries"`
	Amount       int64          `json:"amount"`
	PaymentID    string         `json:"paymentId"`
	Via          enums.AuditVia `json:"via"`
}

package models

import (
	"time"

	"github.com/talentkonnect/raffle-backend/pkg/enums"
)

// Payment records a credited purchase. PaymentID is unique and is the only
// idempotency key for balance increments; rows are never updated.
type Payment struct {
	PaymentID string              `gorm:"column:payment_id;primaryKey" json:"paymentId"`
	UserID    string              `gorm:"column:user_id;not null;index" json:"userId"`
	Entries   int64               `gorm:"column:entries;not null;check:chk_payments_entries_positive,entries > 0" json:"entries"`
	Amount    int64               `gorm:"column:amount;not null" json:"amount"`
	Source    enums.PaymentSource `gorm:"column:source;not null" json:"source"`
	EventID   *string             `gorm:"column:event_id" json:"eventId,omitempty"`
	Timestamp time.Time           `gorm:"column:recorded_at;not null" json:"timestamp"`
}

func (Payment) TableName() string { return "payments" }

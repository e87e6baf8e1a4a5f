package models

import (
	"time"

	"github.com/talentkonnect/raffle-backend/pkg/enums"
)

// AuditEvent is a best-effort trace of a credit attempt.
type AuditEvent struct {
	ID         int64          `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	EventID    string         `gorm:"column:event_id;not null;uniqueIndex:idx_audit_events_event_via,priority:1" json:"eventId"`
	Type       string         `gorm:"column:type;not null" json:"type"`
	SessionID  *string        `gorm:"column:session_id" json:"sessionId"`
	UserID     string         `gorm:"column:user_id;not null" json:"userId"`
	Amount     int64          `gorm:"column:amount;not null" json:"amount"`
	Entries    int64          `gorm:"column:entries;not null" json:"entries"`
	Via        enums.AuditVia `gorm:"column:via;not null;uniqueIndex:idx_audit_events_event_via,priority:2" json:"via"`
	ReceivedAt time.Time      `gorm:"column:received_at;not null;index" json:"receivedAt"`
}

func (AuditEvent) TableName() string { return "audit_events" }

package models

import "time"

// TicketBalance is the single running ticket count for a user identifier.
type TicketBalance struct {
	UserID    string    `gorm:"column:user_id;primaryKey" json:"userId"`
	Tickets   int64     `gorm:"column:tickets;not null;check:chk_ticket_balances_tickets_non_negative,tickets >= 0" json:"tickets"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (TicketBalance) TableName() string { return "ticket_balances" }

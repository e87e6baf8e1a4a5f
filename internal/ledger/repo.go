package ledger

import (
	"context"
	"errors"

	"github.com/talentkonnect/raffle-backend/pkg/db"
	"github.com/talentkonnect/raffle-backend/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository manages persistence for balances, payments and audit events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	InsertPaymentIfAbsent(ctx context.Context, payment *models.Payment) (bool, error)
	AddTickets(ctx context.Context, userID string, delta int64) (int64, error)
	GetBalance(ctx context.Context, userID string) (int64, error)
	FindPayment(ctx context.Context, paymentID string) (*models.Payment, error)
	CountPaymentsByUser(ctx context.Context, userID string) (int64, error)
	AppendAudit(ctx context.Context, event *models.AuditEvent) (bool, error)
	ListRecentAudit(ctx context.Context, limit int) ([]models.AuditEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// InsertPaymentIfAbsent inserts the payment unless its payment_id already
// exists. It reports true only for the call that created the row.
func (r *repository) InsertPaymentIfAbsent(ctx context.Context, payment *models.Payment) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_id"}},
			DoNothing: true,
		}).
		Create(payment)
	if db.IsUniqueViolation(res.Error, "") {
		return false, nil
	}
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AddTickets atomically adds delta to the user's balance, creating the row on
// first credit, and returns the resulting total.
func (r *repository) AddTickets(ctx context.Context, userID string, delta int64) (int64, error) {
	balance := models.TicketBalance{UserID: userID, Tickets: delta}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"tickets":    gorm.Expr("ticket_balances.tickets + excluded.tickets"),
				"updated_at": gorm.Expr("excluded.updated_at"),
			}),
		}).
		Create(&balance).Error
	if err != nil {
		return 0, err
	}
	return r.GetBalance(ctx, userID)
}

// GetBalance returns the user's ticket count; unknown users have zero.
func (r *repository) GetBalance(ctx context.Context, userID string) (int64, error) {
	var balance models.TicketBalance
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance.Tickets, nil
}

func (r *repository) FindPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Take(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) CountPaymentsByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// AppendAudit inserts the event, silently skipping an existing (event_id, via)
// pair. The bool reports whether a row was written.
func (r *repository) AppendAudit(ctx context.Context, event *models.AuditEvent) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}, {Name: "via"}},
			DoNothing: true,
		}).
		Create(event)
	if db.IsUniqueViolation(res.Error, "") {
		return false, nil
	}
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListRecentAudit(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	var events []models.AuditEvent
	if err := r.db.WithContext(ctx).
		Order("received_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

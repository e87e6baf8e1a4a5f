package ledger

import (
	"context"
	"fmt"

	"github.com/talentkonnect/raffle-backend/pkg/db"
	"github.com/talentkonnect/raffle-backend/pkg/db/models"
	"gorm.io/gorm"
)

// TxRunner executes fn inside a single database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreditOutcome describes what a conditional credit write did.
type CreditOutcome struct {
	Inserted     bool
	TotalTickets int64
}

// Store is the durable home of ticket balances, payment records and the
// audit trail. It is created once per process and shared by all handlers.
type Store struct {
	tx   TxRunner
	repo Repository
}

// NewStore binds a store to an open database client.
func NewStore(client *db.Client) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	return NewStoreWith(client, NewRepository(client.DB()))
}

// NewStoreWith wires a store from its parts.
func NewStoreWith(tx TxRunner, repo Repository) (*Store, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &Store{tx: tx, repo: repo}, nil
}

// CreditOnce records the payment and, only when the payment_id is new,
// increments the user's balance by payment.Entries. Both writes commit
// together; a duplicate payment_id leaves the balance untouched.
func (s *Store) CreditOnce(ctx context.Context, payment *models.Payment) (CreditOutcome, error) {
	var outcome CreditOutcome
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		inserted, err := repo.InsertPaymentIfAbsent(ctx, payment)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		if !inserted {
			total, err := repo.GetBalance(ctx, payment.UserID)
			if err != nil {
				return fmt.Errorf("read balance: %w", err)
			}
			outcome.TotalTickets = total
			return nil
		}

		total, err := repo.AddTickets(ctx, payment.UserID, payment.Entries)
		if err != nil {
			return fmt.Errorf("increment balance: %w", err)
		}
		outcome.Inserted = true
		outcome.TotalTickets = total
		return nil
	})
	if err != nil {
		return CreditOutcome{}, err
	}
	return outcome, nil
}

func (s *Store) Balance(ctx context.Context, userID string) (int64, error) {
	return s.repo.GetBalance(ctx, userID)
}

func (s *Store) Payment(ctx context.Context, paymentID string) (*models.Payment, error) {
	return s.repo.FindPayment(ctx, paymentID)
}

func (s *Store) PaymentCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.CountPaymentsByUser(ctx, userID)
}

// AppendAudit writes an audit row outside any credit transaction.
func (s *Store) AppendAudit(ctx context.Context, event *models.AuditEvent) (bool, error) {
	return s.repo.AppendAudit(ctx, event)
}

func (s *Store) RecentAudit(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	return s.repo.ListRecentAudit(ctx, limit)
}

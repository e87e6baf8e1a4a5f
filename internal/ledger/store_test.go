package ledger_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talentkonnect/raffle-backend/internal/ledger"
	"github.com/talentkonnect/raffle-backend/internal/ledger/ledgertest"
	"github.com/talentkonnect/raffle-backend/pkg/db/models"
	"github.com/talentkonnect/raffle-backend/pkg/enums"
	"gorm.io/gorm"
)

func newPayment(id, user string, entries int64) *models.Payment {
	return &models.Payment{
		PaymentID: id,
		UserID:    user,
		Entries:   entries,
		Amount:    entries * 700,
		Source:    enums.PaymentSourceStripeWebhook,
		Timestamp: time.Now().UTC(),
	}
}

func TestCreditOnceAppliesFirstPaymentOnly(t *testing.T) {
	store, _ := ledgertest.NewStore(t)
	ctx := context.Background()

	first, err := store.CreditOnce(ctx, newPayment("cs_1", "a@x.com", 6))
	require.NoError(t, err)
	assert.True(t, first.Inserted)
	assert.Equal(t, int64(6), first.TotalTickets)

	second, err := store.CreditOnce(ctx, newPayment("cs_1", "a@x.com", 9))
	require.NoError(t, err)
	assert.False(t, second.Inserted)
	assert.Equal(t, int64(6), second.TotalTickets)

	stored, err := store.Payment(ctx, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, int64(6), stored.Entries)
}

func TestCreditOnceAccumulatesAcrossPayments(t *testing.T) {
	store, _ := ledgertest.NewStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.CreditOnce(ctx, newPayment(fmt.Sprintf("cs_%d", i), "u1", 2))
		require.NoError(t, err)
	}

	total, err := store.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)

	count, err := store.PaymentCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestCreditOnceConcurrentSamePayment(t *testing.T) {
	store, _ := ledgertest.NewStore(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := store.CreditOnce(ctx, newPayment("cs_race", "racer", 4))
			if !assert.NoError(t, err) {
				return
			}
			if outcome.Inserted {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	total, err := store.Balance(ctx, "racer")
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
}

// Runs only against Postgres: the sqlite helper pins one connection, so
// goroutines above never overlap inside the database.
func TestCreditOnceConcurrentPostgres(t *testing.T) {
	store := ledgertest.NewPostgresStore(t)
	ctx := context.Background()
	run := uuid.NewString()[:8]
	user := "racer_" + run

	const (
		workers  = 16
		payments = 4
	)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied = map[string]int{}
	)
	for i := 0; i < workers; i++ {
		for p := 0; p < payments; p++ {
			paymentID := fmt.Sprintf("cs_%s_%d", run, p)
			wg.Add(1)
			go func() {
				defer wg.Done()
				outcome, err := store.CreditOnce(ctx, newPayment(paymentID, user, 3))
				if !assert.NoError(t, err) {
					return
				}
				if outcome.Inserted {
					mu.Lock()
					applied[paymentID]++
					mu.Unlock()
				}
			}()
		}
	}
	wg.Wait()

	require.Len(t, applied, payments)
	for id, n := range applied {
		assert.Equal(t, 1, n, id)
	}
	total, err := store.Balance(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(3*payments), total)
}

func TestBalanceUnknownUserIsZero(t *testing.T) {
	store, _ := ledgertest.NewStore(t)
	total, err := store.Balance(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestPaymentNotFound(t *testing.T) {
	store, _ := ledgertest.NewStore(t)
	_, err := store.Payment(context.Background(), "missing")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAppendAuditSwallowsDuplicates(t *testing.T) {
	store, _ := ledgertest.NewStore(t)
	ctx := context.Background()

	event := func() *models.AuditEvent {
		return &models.AuditEvent{
			EventID:    "evt_1",
			Type:       enums.AuditTypeCheckoutCompleted,
			UserID:     "u1",
			Entries:    1,
			Via:        enums.AuditViaWebhook,
			ReceivedAt: time.Now().UTC(),
		}
	}

	wrote, err := store.AppendAudit(ctx, event())
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = store.AppendAudit(ctx, event())
	require.NoError(t, err)
	assert.False(t, wrote)

	other := event()
	other.Via = enums.AuditViaReconcile
	wrote, err = store.AppendAudit(ctx, other)
	require.NoError(t, err)
	assert.True(t, wrote)
}

func TestRecentAuditNewestFirst(t *testing.T) {
	store, _ := ledgertest.NewStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		_, err := store.AppendAudit(ctx, &models.AuditEvent{
			EventID:    fmt.Sprintf("evt_%d", i),
			Type:       enums.AuditTypeCheckoutCompleted,
			UserID:     "u1",
			Entries:    1,
			Via:        enums.AuditViaWebhook,
			ReceivedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	events, err := store.RecentAudit(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "evt_3", events[0].EventID)
	assert.Equal(t, "evt_2", events[1].EventID)
}

type failingTx struct{}

func (failingTx) WithTx(context.Context, func(tx *gorm.DB) error) error {
	return fmt.Errorf("connection refused")
}

func TestCreditOncePropagatesStoreFailure(t *testing.T) {
	client := ledgertest.NewClient(t)
	store, err := ledger.NewStoreWith(failingTx{}, ledger.NewRepository(client.DB()))
	require.NoError(t, err)

	_, err = store.CreditOnce(context.Background(), newPayment("cs_x", "u1", 1))
	require.Error(t, err)

	total, err := store.Balance(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestNewStoreRequiresParts(t *testing.T) {
	_, err := ledger.NewStore(nil)
	require.Error(t, err)
	_, err = ledger.NewStoreWith(failingTx{}, nil)
	require.Error(t, err)
}

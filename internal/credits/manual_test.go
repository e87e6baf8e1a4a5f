package credits

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talentkonnect/raffle-backend/pkg/enums"
	pkgerrors "github.com/talentkonnect/raffle-backend/pkg/errors"
)

func TestCreditManualIsNeverDeduplicated(t *testing.T) {
	engine, store := newTestEngine(t)
	manual, err := NewManualCrediter(engine, 700, 1000)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := manual.CreditManual(ctx, "walkin@example.com", 3)
	require.NoError(t, err)
	second, err := manual.CreditManual(ctx, "walkin@example.com", 3)
	require.NoError(t, err)

	assert.True(t, first.Applied)
	assert.True(t, second.Applied)
	assert.NotEqual(t, first.PaymentID, second.PaymentID)
	assert.Equal(t, int64(6), second.TotalTickets)
	assert.Equal(t, int64(2100), first.Amount)
	assert.Equal(t, enums.AuditViaAdmin, first.Via)

	count, err := store.PaymentCount(ctx, "walkin@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	payment, err := store.Payment(ctx, first.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentSourceManual, payment.Source)

	audits, err := store.RecentAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, audits, 2)
	assert.Equal(t, enums.AuditTypeManualCredit, audits[0].Type)
	assert.Nil(t, audits[0].SessionID)
}

func TestCreditManualPaymentIDFormat(t *testing.T) {
	engine, _ := newTestEngine(t)
	manual, err := NewManualCrediter(engine, 700, 1000)
	require.NoError(t, err)

	res, err := manual.CreditManual(context.Background(), "u1", 1)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^manual_\d+_[0-9a-f]{8}$`), res.PaymentID)
}

func TestCreditManualValidatesInput(t *testing.T) {
	engine, store := newTestEngine(t)
	manual, err := NewManualCrediter(engine, 700, 1000)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = manual.CreditManual(ctx, "   ", 3)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = manual.CreditManual(ctx, "u1", 0)
	require.Error(t, err)

	total, err := store.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCreditManualRejectsEntriesOverLimit(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	capped, err := NewManualCrediter(engine, 700, 1000)
	require.NoError(t, err)
	_, err = capped.CreditManual(ctx, "big", 1001)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	res, err := capped.CreditManual(ctx, "big", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(700_000), res.Amount)

	uncapped, err := NewManualCrediter(engine, 700, 0)
	require.NoError(t, err)
	_, err = uncapped.CreditManual(ctx, "huge", 1<<60)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	total, err := store.Balance(ctx, "huge")
	require.NoError(t, err)
	assert.Zero(t, total)
}

package credits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"github.com/talentkonnect/raffle-backend/pkg/enums"
)

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	n, err := NewNormalizer(700)
	require.NoError(t, err)
	return n
}

func TestNormalizeResolvesUserAndEntries(t *testing.T) {
	n := newTestNormalizer(t)

	tests := []struct {
		name        string
		session     SessionData
		wantUser    string
		wantEntries int64
	}{
		{
			name:        "metadata wins",
			session:     SessionData{ID: "cs_1", Metadata: map[string]string{"userId": " user-1 ", "entriesPurchased": "3"}, DetailsEmail: "a@x.com", AmountTotal: 4200},
			wantUser:    "user-1",
			wantEntries: 3,
		},
		{
			name:        "email fallback is trimmed and lowercased",
			session:     SessionData{ID: "cs_2", DetailsEmail: "  Foo@Bar.COM ", AmountTotal: 4200},
			wantUser:    "foo@bar.com",
			wantEntries: 6,
		},
		{
			name:        "customer email used without details",
			session:     SessionData{ID: "cs_3", CustomerEmail: "Buyer@Example.com", AmountTotal: 700},
			wantUser:    "buyer@example.com",
			wantEntries: 1,
		},
		{
			name:        "non-positive metadata falls back to amount",
			session:     SessionData{ID: "cs_4", Metadata: map[string]string{"userId": "u", "entriesPurchased": "-2"}, AmountTotal: 2100},
			wantUser:    "u",
			wantEntries: 3,
		},
		{
			name:        "garbage metadata falls back to amount",
			session:     SessionData{ID: "cs_5", Metadata: map[string]string{"userId": "u", "entriesPurchased": "lots"}, AmountTotal: 1400},
			wantUser:    "u",
			wantEntries: 2,
		},
		{
			name:        "half rounds up",
			session:     SessionData{ID: "cs_6", Metadata: map[string]string{"userId": "u"}, AmountTotal: 1050},
			wantUser:    "u",
			wantEntries: 2,
		},
		{
			name:        "small amount still yields one entry",
			session:     SessionData{ID: "cs_7", Metadata: map[string]string{"userId": "u"}, AmountTotal: 100},
			wantUser:    "u",
			wantEntries: 1,
		},
		{
			name:        "no amount defaults to one entry",
			session:     SessionData{ID: "cs_8", Metadata: map[string]string{"userId": "u"}},
			wantUser:    "u",
			wantEntries: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt, err := n.Normalize(tt.session, "evt_1", enums.AuditViaWebhook)
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, evt.UserID)
			assert.Equal(t, tt.wantEntries, evt.Entries)
			assert.Equal(t, tt.session.ID, evt.PaymentID)
			assert.Equal(t, "evt_1", evt.EventID)
			assert.Equal(t, enums.AuditViaWebhook, evt.Via)
			assert.Equal(t, enums.AuditTypeCheckoutCompleted, evt.Type)
		})
	}
}

func TestNormalizeFallbackEntriesFromAmount(t *testing.T) {
	n := newTestNormalizer(t)
	evt, err := n.Normalize(SessionData{ID: "cs_fallback", Metadata: map[string]string{"userId": "u"}, AmountTotal: 4200}, "", enums.AuditViaReconcile)
	require.NoError(t, err)
	assert.Equal(t, int64(6), evt.Entries)
	assert.Equal(t, int64(4200), evt.Amount)
}

func TestNormalizeRejections(t *testing.T) {
	n := newTestNormalizer(t)

	_, err := n.Normalize(SessionData{ID: "cs_1", AmountTotal: 700}, "evt", enums.AuditViaWebhook)
	require.ErrorIs(t, err, ErrMissingUserID)
	reason, ok := RejectionReason(err)
	assert.True(t, ok)
	assert.Equal(t, "missing-userId", reason)

	_, err = n.Normalize(SessionData{Metadata: map[string]string{"userId": "u"}}, "evt", enums.AuditViaWebhook)
	require.ErrorIs(t, err, ErrMissingPaymentID)

	_, ok = RejectionReason(assert.AnError)
	assert.False(t, ok)
}

func TestNewNormalizerRejectsZeroPrice(t *testing.T) {
	_, err := NewNormalizer(0)
	require.Error(t, err)
}

func TestSessionFromStripe(t *testing.T) {
	data := SessionFromStripe(&stripe.CheckoutSession{
		ID:              "cs_live_1",
		Metadata:        map[string]string{"userId": "u"},
		CustomerDetails: &stripe.CheckoutSessionCustomerDetails{Email: "a@x.com"},
		CustomerEmail:   "b@x.com",
		AmountTotal:     700,
		PaymentStatus:   stripe.CheckoutSessionPaymentStatusPaid,
	})
	assert.Equal(t, "cs_live_1", data.ID)
	assert.Equal(t, "a@x.com", data.DetailsEmail)
	assert.Equal(t, "b@x.com", data.CustomerEmail)
	assert.True(t, data.Paid())

	assert.Equal(t, SessionData{}, SessionFromStripe(nil))
	assert.False(t, SessionData{PaymentStatus: "unpaid"}.Paid())
	assert.ErrorIs(t, RequireSettled(SessionData{PaymentStatus: "unpaid"}), ErrUnpaidSession)
	assert.NoError(t, RequireSettled(SessionData{}))
	assert.True(t, SessionData{PaymentStatus: "no_payment_required"}.Paid())
}

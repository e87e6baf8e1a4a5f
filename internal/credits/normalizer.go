package credits

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/talentkonnect/raffle-backend/pkg/enums"
	pkgstripe "github.com/talentkonnect/raffle-backend/pkg/stripe"
)

// Normalization rejections. Their messages double as the public reason.
var (
	ErrMissingUserID    = errors.New("missing-userId")
	ErrMissingPaymentID = errors.New("missing-paymentId")
	ErrInvalidEntries   = errors.New("invalid-entries")
	ErrUnpaidSession    = errors.New("unpaid-session")
)

// SessionData is the subset of a completed checkout session the normalizer reads.
type SessionData struct {
	ID            string
	Metadata      map[string]string
	DetailsEmail  string
	CustomerEmail string
	AmountTotal   int64
	PaymentStatus string
}

// SessionFromStripe adapts a provider checkout session.
func SessionFromStripe(sess *stripe.CheckoutSession) SessionData {
	if sess == nil {
		return SessionData{}
	}
	data := SessionData{
		ID:            sess.ID,
		Metadata:      sess.Metadata,
		CustomerEmail: sess.CustomerEmail,
		AmountTotal:   sess.AmountTotal,
		PaymentStatus: string(sess.PaymentStatus),
	}
	if sess.CustomerDetails != nil {
		data.DetailsEmail = sess.CustomerDetails.Email
	}
	return data
}

// Paid reports whether the session has settled funds (or needed none).
func (s SessionData) Paid() bool {
	switch stripe.CheckoutSessionPaymentStatus(s.PaymentStatus) {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return true
	}
	return false
}

// RequireSettled rejects sessions whose payment is still pending. Sessions
// without a reported status are accepted.
func RequireSettled(s SessionData) error {
	if s.PaymentStatus == "" || s.Paid() {
		return nil
	}
	return ErrUnpaidSession
}

// Normalizer turns provider sessions into canonical credit events.
type Normalizer struct {
	pricePerEntry decimal.Decimal
}

func NewNormalizer(pricePerEntryCents int64) (*Normalizer, error) {
	if pricePerEntryCents <= 0 {
		return nil, fmt.Errorf("price per entry must be positive")
	}
	return &Normalizer{pricePerEntry: decimal.NewFromInt(pricePerEntryCents)}, nil
}

// Normalize derives the credit event for a session. Sessions without a
// resolvable user or payment id are rejected with a sentinel error.
func (n *Normalizer) Normalize(sess SessionData, eventID string, via enums.AuditVia) (Event, error) {
	userID := resolveUserID(sess)
	if userID == "" {
		return Event{}, ErrMissingUserID
	}
	paymentID := sess.ID
	if strings.TrimSpace(paymentID) == "" {
		return Event{}, ErrMissingPaymentID
	}

	amount := sess.AmountTotal
	if amount < 0 {
		amount = 0
	}
	entries := n.resolveEntries(sess.Metadata[pkgstripe.MetadataEntries], amount)
	if entries <= 0 {
		return Event{}, ErrInvalidEntries
	}

	return Event{
		UserID:    userID,
		Entries:   entries,
		Amount:    amount,
		PaymentID: paymentID,
		SessionID: sess.ID,
		EventID:   eventID,
		Via:       via,
		Type:      enums.AuditTypeCheckoutCompleted,
	}, nil
}

func resolveUserID(sess SessionData) string {
	if id := strings.TrimSpace(sess.Metadata[pkgstripe.MetadataUserID]); id != "" {
		return id
	}
	email := sess.DetailsEmail
	if strings.TrimSpace(email) == "" {
		email = sess.CustomerEmail
	}
	return strings.ToLower(strings.TrimSpace(email))
}

// resolveEntries prefers the purchased count from metadata, then derives it
// from the charged amount, and finally falls back to a single entry.
func (n *Normalizer) resolveEntries(raw string, amount int64) int64 {
	if parsed, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil && parsed > 0 {
		return parsed
	}
	if amount > 0 {
		derived := decimal.NewFromInt(amount).Div(n.pricePerEntry).Round(0).IntPart()
		if derived < 1 {
			return 1
		}
		return derived
	}
	return 1
}

// RejectionReason maps a normalization error onto its public reason string.
func RejectionReason(err error) (string, bool) {
	for _, sentinel := range []error{ErrMissingUserID, ErrMissingPaymentID, ErrInvalidEntries, ErrUnpaidSession} {
		if errors.Is(err, sentinel) {
			return sentinel.Error(), true
		}
	}
	return "", false
}

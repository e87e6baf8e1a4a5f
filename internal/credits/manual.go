package credits

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/talentkonnect/raffle-backend/pkg/enums"
	pkgerrors "github.com/talentkonnect/raffle-backend/pkg/errors"
)

// Crediter is satisfied by Engine.
type Crediter interface {
	ApplyCredit(ctx context.Context, evt Event) (Result, error)
}

// ManualCrediter issues privileged credits that bypass the normalizer. Each
// call mints a new payment id, so manual credits never deduplicate.
type ManualCrediter struct {
	engine        Crediter
	pricePerEntry int64
	maxEntries    int64
	now           func() time.Time
	suffix        func() string
}

// NewManualCrediter caps a single credit at maxEntries. A non-positive cap
// leaves only the bound that keeps entries*price within int64.
func NewManualCrediter(engine Crediter, pricePerEntryCents, maxEntries int64) (*ManualCrediter, error) {
	if engine == nil {
		return nil, fmt.Errorf("credit engine required")
	}
	if pricePerEntryCents <= 0 {
		return nil, fmt.Errorf("price per entry must be positive")
	}
	limit := math.MaxInt64 / pricePerEntryCents
	if maxEntries > 0 && maxEntries < limit {
		limit = maxEntries
	}
	return &ManualCrediter{
		engine:        engine,
		pricePerEntry: pricePerEntryCents,
		maxEntries:    limit,
		now:           time.Now,
		suffix:        randomSuffix,
	}, nil
}

func (m *ManualCrediter) CreditManual(ctx context.Context, userID string, entries int64) (Result, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || entries < 1 {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "userId and positive entries required")
	}
	if entries > m.maxEntries {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "entries exceeds the per-credit limit").
			WithDetails(map[string]any{"entries": entries, "max": m.maxEntries})
	}

	paymentID := fmt.Sprintf("manual_%d_%s", m.now().UnixMilli(), m.suffix())
	return m.engine.ApplyCredit(ctx, Event{
		UserID:    userID,
		Entries:   entries,
		Amount:    entries * m.pricePerEntry,
		PaymentID: paymentID,
		EventID:   paymentID,
		Via:       enums.AuditViaAdmin,
		Type:      enums.AuditTypeManualCredit,
	})
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/talentkonnect/raffle-backend/pkg/redis"
)

// DeliveryGuard short-circuits repeated deliveries of the same Stripe event.
// It is an optimization only: the payment_id constraint in the ledger is what
// keeps credits exactly-once, so a lost or expired claim is harmless.
type DeliveryGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewDeliveryGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*DeliveryGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &DeliveryGuard{store: store, ttl: ttl, scope: scope}, nil
}

// Claim marks eventID as seen. It reports false when another delivery
// already claimed it.
func (g *DeliveryGuard) Claim(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	set, err := g.store.SetNX(ctx, g.store.IdempotencyKey(g.scope, eventID), time.Now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim delivery: %w", err)
	}
	return set, nil
}

// Release drops a claim so a failed delivery can be retried.
func (g *DeliveryGuard) Release(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(g.scope, eventID))
}

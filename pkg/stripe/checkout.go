package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v84"
	checkoutsession "github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/event"
	pkgerrors "github.com/talentkonnect/raffle-backend/pkg/errors"
)

// Checkout session metadata keys.
const (
	MetadataUserID  = "userId"
	MetadataEntries = "entriesPurchased"
)

// EventPage is one page of provider events plus the continuation signal.
type EventPage struct {
	Events  []*stripe.Event
	HasMore bool
}

// CheckoutRequest describes a Checkout session for a number of entries.
type CheckoutRequest struct {
	UserID      string
	Entries     int64
	UnitAmount  int64
	Currency    string
	ProductName string
	SuccessURL  string
	CancelURL   string
}

// GetCheckoutSession fetches a single session by id.
func (c *Client) GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := checkoutsession.Get(sessionID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve checkout session")
	}
	return sess, nil
}

// ListCompletedCheckoutEvents returns one page of checkout completion events
// (including delayed async successes) created at or after since, continuing
// after startingAfter when set.
func (c *Client) ListCompletedCheckoutEvents(ctx context.Context, since time.Time, startingAfter string, limit int64) (EventPage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.EventListParams{
		Types: stripe.StringSlice([]string{
			string(stripe.EventTypeCheckoutSessionCompleted),
			string(stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded),
		}),
		CreatedRange: &stripe.RangeQueryParams{GreaterThanOrEqual: since.Unix()},
	}
	params.Limit = stripe.Int64(limit)
	params.Single = true
	params.Context = ctx
	if startingAfter != "" {
		params.StartingAfter = stripe.String(startingAfter)
	}

	var page EventPage
	it := event.List(params)
	for it.Next() {
		page.Events = append(page.Events, it.Event())
	}
	if err := it.Err(); err != nil {
		return EventPage{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list checkout events")
	}
	if meta := it.Meta(); meta != nil {
		page.HasMore = meta.HasMore
	}
	return page, nil
}

// CreateCheckoutSession opens a one-off card payment for req.Entries units.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*stripe.CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.ProductName),
					},
					UnitAmount: stripe.Int64(req.UnitAmount),
				},
				Quantity: stripe.Int64(req.Entries),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserID, req.UserID)
	params.AddMetadata(MetadataEntries, strconv.FormatInt(req.Entries, 10))

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	return sess, nil
}

// SessionFromEvent decodes the checkout session carried by a provider event.
func SessionFromEvent(evt *stripe.Event) (*stripe.CheckoutSession, error) {
	if evt == nil || evt.Data == nil {
		return nil, fmt.Errorf("event has no data")
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	return &sess, nil
}

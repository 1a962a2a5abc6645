package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"audio-embed-service/internal/config"

	"github.com/stripe/stripe-go/v82"
	stripeapi "github.com/stripe/stripe-go/v82/client"
)

type StripeClient interface {
	// LatestSubscription returns the customer's newest subscription in any status,
	// or nil when the customer has none.
	LatestSubscription(ctx context.Context, customerID string) (*Subscription, error)
	// ListSubscriptions returns every subscription of the customer in any status.
	ListSubscriptions(ctx context.Context, customerID string) ([]*Subscription, error)
	PauseCollection(ctx context.Context, subscriptionID string) error
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*Subscription, error)
	CancelNow(ctx context.Context, subscriptionID string) error
	CreateCustomer(ctx context.Context, email, accountID string) (string, error)
	DeleteCustomer(ctx context.Context, customerID string) error
	CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSession, error)
	// CreatePortalSession returns the URL of a billing portal session.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

// Subscription is the subset of a Stripe subscription the billing record mirrors.
type Subscription struct {
	ID                 string
	CustomerID         string
	Status             string
	PriceID            *string
	CurrentPeriodStart *int64
	CurrentPeriodEnd   *int64
	CancelAtPeriodEnd  bool
	// PaymentMethod is nil unless the default payment method came back expanded.
	PaymentMethod *PaymentMethod
}

// PaymentMethod fields are empty for non-card methods.
type PaymentMethod struct {
	Brand string
	Last4 string
}

type CheckoutSessionRequest struct {
	CustomerID string
	PriceID    string
	Mode       string // payment | subscription
	SuccessURL string
	CancelURL  string
	TrialDays  int64
}

type CheckoutSession struct {
	ID  string
	URL string
}

type stripeClientImpl struct {
	api *stripeapi.API
}

func NewStripeClient(stripeCfg *config.Stripe) StripeClient {
	backends := stripe.NewBackends(&http.Client{
		Timeout: 30 * time.Second,
	})

	return newStripeClient(stripeCfg.SecretKey, backends)
}

func newStripeClient(secretKey string, backends *stripe.Backends) *stripeClientImpl {
	return &stripeClientImpl{
		api: stripeapi.New(secretKey, backends),
	}
}

func (c *stripeClientImpl) LatestSubscription(ctx context.Context, customerID string) (*Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	params.Single = true
	params.AddExpand("data.default_payment_method")

	it := c.api.Subscriptions.List(params)
	if it.Next() {
		return toSubscription(it.Subscription()), nil
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("stripe list subscriptions: %w", err)
	}

	return nil, nil
}

func (c *stripeClientImpl) ListSubscriptions(ctx context.Context, customerID string) ([]*Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx

	var subs []*Subscription
	it := c.api.Subscriptions.List(params)
	for it.Next() {
		subs = append(subs, toSubscription(it.Subscription()))
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("stripe list subscriptions: %w", err)
	}

	return subs, nil
}

func (c *stripeClientImpl) PauseCollection(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionParams{
		PauseCollection: &stripe.SubscriptionPauseCollectionParams{
			Behavior: stripe.String("void"),
		},
	}
	params.Context = ctx

	if _, err := c.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("stripe pause collection: %w", err)
	}
	return nil
}

func (c *stripeClientImpl) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx

	sub, err := c.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe cancel at period end: %w", err)
	}
	return toSubscription(sub), nil
}

func (c *stripeClientImpl) CancelNow(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	if _, err := c.api.Subscriptions.Cancel(subscriptionID, params); err != nil {
		return fmt.Errorf("stripe cancel subscription: %w", err)
	}
	return nil
}

func (c *stripeClientImpl) CreateCustomer(ctx context.Context, email, accountID string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.SetIdempotencyKey("customer-create-" + accountID)
	params.AddMetadata("userId", accountID)

	cus, err := c.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return cus.ID, nil
}

func (c *stripeClientImpl) DeleteCustomer(ctx context.Context, customerID string) error {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	if _, err := c.api.Customers.Del(customerID, params); err != nil {
		return fmt.Errorf("stripe delete customer: %w", err)
	}
	return nil
}

func (c *stripeClientImpl) CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:   stripe.String(req.CustomerID),
		Mode:       stripe.String(req.Mode),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	if req.Mode == string(stripe.CheckoutSessionModeSubscription) && req.TrialDays > 0 {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			TrialPeriodDays: stripe.Int64(req.TrialDays),
		}
	}
	params.Context = ctx

	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create checkout session: %w", err)
	}

	return &CheckoutSession{
		ID:  session.ID,
		URL: session.URL,
	}, nil
}

func (c *stripeClientImpl) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	session, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create portal session: %w", err)
	}
	return session.URL, nil
}

func toSubscription(sub *stripe.Subscription) *Subscription {
	out := &Subscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}

	// period and price live on the first item since the 2025-03-31 API version
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil && item.Price.ID != "" {
			out.PriceID = stripe.String(item.Price.ID)
		}
		if item.CurrentPeriodStart > 0 {
			out.CurrentPeriodStart = stripe.Int64(item.CurrentPeriodStart)
		}
		if item.CurrentPeriodEnd > 0 {
			out.CurrentPeriodEnd = stripe.Int64(item.CurrentPeriodEnd)
		}
	}

	// an unexpanded payment method only carries its id
	pm := sub.DefaultPaymentMethod
	if pm != nil && pm.Type != "" {
		out.PaymentMethod = &PaymentMethod{}
		if pm.Card != nil {
			out.PaymentMethod.Brand = string(pm.Card.Brand)
			out.PaymentMethod.Last4 = pm.Card.Last4
		}
	}

	return out
}

package model

import "encoding/json"

// StripeObject holds the fields read from any event object before classification.
// Customer stays raw because Stripe sends either an id string or an expanded object.
type StripeObject struct {
	ID       string          `json:"id"`
	Object   string          `json:"object"`
	Customer json.RawMessage `json:"customer"`
	Invoice  json.RawMessage `json:"invoice"`
}

// CustomerID returns the customer id when the object carries it as a plain string.
func (o *StripeObject) CustomerID() (string, bool) {
	if len(o.Customer) == 0 {
		return "", false
	}
	var id string
	if err := json.Unmarshal(o.Customer, &id); err != nil || id == "" {
		return "", false
	}
	return id, true
}

// HasInvoice reports whether the object references an invoice (payment intents).
func (o *StripeObject) HasInvoice() bool {
	if len(o.Invoice) == 0 || string(o.Invoice) == "null" {
		return false
	}
	var id string
	if err := json.Unmarshal(o.Invoice, &id); err == nil {
		return id != ""
	}
	return true
}

type StripeCheckoutSession struct {
	ID             string  `json:"id"`
	Mode           string  `json:"mode"`
	PaymentIntent  *string `json:"payment_intent"`
	PaymentStatus  string  `json:"payment_status"`
	AmountSubtotal int64   `json:"amount_subtotal"`
	AmountTotal    int64   `json:"amount_total"`
	Currency       string  `json:"currency"`
}

type StripeInvoice struct {
	ID            string  `json:"id"`
	BillingReason string  `json:"billing_reason"`
	AttemptCount  int64   `json:"attempt_count"`
	Subscription  *string `json:"subscription"`
	Parent        *struct {
		SubscriptionDetails *struct {
			Subscription *string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// SubscriptionID returns the invoice's subscription reference from either the
// legacy top-level field or parent.subscription_details.
func (i *StripeInvoice) SubscriptionID() string {
	if i.Subscription != nil && *i.Subscription != "" {
		return *i.Subscription
	}
	if i.Parent != nil && i.Parent.SubscriptionDetails != nil && i.Parent.SubscriptionDetails.Subscription != nil {
		return *i.Parent.SubscriptionDetails.Subscription
	}
	return ""
}

// OrderPayload is the sync job payload for record_order jobs.
type OrderPayload struct {
	CheckoutSessionID string  `json:"checkout_session_id"`
	PaymentIntentID   *string `json:"payment_intent_id,omitempty"`
	CustomerID        string  `json:"customer_id"`
	AmountSubtotal    int64   `json:"amount_subtotal"`
	AmountTotal       int64   `json:"amount_total"`
	Currency          string  `json:"currency"`
	PaymentStatus     string  `json:"payment_status"`
}

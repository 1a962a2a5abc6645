package dto

type ErrorResponse struct {
	Error string `json:"error"`
}

type WebhookReceivedResponse struct {
	Received bool `json:"received"`
}

type CheckoutRequest struct {
	PriceID    string `json:"price_id" validate:"required"`
	SuccessURL string `json:"success_url" validate:"required,url"`
	CancelURL  string `json:"cancel_url" validate:"required,url"`
	Mode       string `json:"mode" validate:"required,oneof=payment subscription"`
}

type CheckoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

type PortalRequest struct {
	ReturnURL string `json:"return_url" validate:"required,url"`
}

type PortalResponse struct {
	URL string `json:"url"`
}

type CancelSubscriptionResponse struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	CurrentPeriodEnd  *int64 `json:"current_period_end"`
}

type DeleteAccountResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type SubscriptionView struct {
	CustomerID         string  `json:"customer_id"`
	SubscriptionID     *string `json:"subscription_id"`
	Status             string  `json:"subscription_status"`
	PriceID            *string `json:"price_id"`
	CurrentPeriodStart *int64  `json:"current_period_start"`
	CurrentPeriodEnd   *int64  `json:"current_period_end"`
	CancelAtPeriodEnd  bool    `json:"cancel_at_period_end"`
	PaymentMethodBrand *string `json:"payment_method_brand"`
	PaymentMethodLast4 *string `json:"payment_method_last4"`
}

type OrderView struct {
	CheckoutSessionID string `json:"checkout_session_id"`
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	PaymentStatus     string `json:"payment_status"`
	Status            string `json:"order_status"`
	CreatedAt         int64  `json:"created_at"`
}

type BillingStatusResponse struct {
	Access       string            `json:"access"`
	HasAccess    bool              `json:"has_access"`
	Subscription *SubscriptionView `json:"subscription"`
	Orders       []OrderView       `json:"orders"`
}

type CollectionView struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	CoverURL    *string `json:"cover_url,omitempty"`
}

type TrackView struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	FileURL  string  `json:"file_url"`
	Duration float64 `json:"duration"`
	Position int     `json:"position"`
}

type EmbedResponse struct {
	Access     string          `json:"access"`
	Collection *CollectionView `json:"collection,omitempty"`
	Tracks     []TrackView     `json:"tracks,omitempty"`
}

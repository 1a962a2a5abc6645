package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"audio-embed-service/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// JobEnqueuer persists a sync job and hands it to the worker pool.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job *model.SyncJob) error
}

type WebhookService interface {
	// HandleWebhook verifies and classifies one Stripe delivery and enqueues the
	// resulting work. It returns the event type once the signature checks out.
	HandleWebhook(ctx context.Context, signature string, payload []byte) (string, error)
}

type webhookServiceImpl struct {
	secret   string
	enqueuer JobEnqueuer
}

func NewWebhookService(secret string, enqueuer JobEnqueuer) WebhookService {
	return &webhookServiceImpl{
		secret:   secret,
		enqueuer: enqueuer,
	}
}

func (s *webhookServiceImpl) HandleWebhook(ctx context.Context, signature string, payload []byte) (string, error) {
	if strings.TrimSpace(signature) == "" {
		return "", ErrMissingSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	eventType := string(event.Type)

	job := classifyEvent(&event)
	if job == nil {
		return eventType, nil
	}

	if err := s.enqueuer.Enqueue(ctx, job); err != nil {
		return eventType, fmt.Errorf("enqueue %s job: %w", job.Kind, err)
	}

	log.Info().
		Str("event_id", event.ID).
		Str("event_type", eventType).
		Str("customer_id", job.CustomerID).
		Str("kind", job.Kind).
		Str("job_id", job.ID).
		Msg("webhook event queued")

	return eventType, nil
}

// classifyEvent maps a verified event to the work it requires, or nil when the
// event needs none.
func classifyEvent(event *stripe.Event) *model.SyncJob {
	logger := log.With().Str("event_id", event.ID).Str("event_type", string(event.Type)).Logger()

	if event.Data == nil || len(event.Data.Raw) == 0 {
		logger.Warn().Msg("webhook event without data object ignored")
		return nil
	}
	raw := event.Data.Raw

	var obj model.StripeObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		logger.Error().Err(err).Msg("decode webhook object failed")
		return nil
	}

	customerID, ok := obj.CustomerID()
	if !ok {
		logger.Info().Msg("webhook event without customer ignored")
		return nil
	}

	newJob := func(kind, payload string) *model.SyncJob {
		return &model.SyncJob{
			ID:         uuid.NewString(),
			EventID:    event.ID,
			EventType:  string(event.Type),
			Kind:       kind,
			CustomerID: customerID,
			Payload:    payload,
			Status:     model.SyncJobPending,
			NextRunAt:  time.Now().UTC(),
		}
	}

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		// any status syncs, including trialing and incomplete
		return newJob(model.SyncJobReconcile, "")

	case "checkout.session.completed":
		var session model.StripeCheckoutSession
		if err := json.Unmarshal(raw, &session); err != nil {
			logger.Error().Err(err).Msg("decode checkout session failed")
			return nil
		}

		switch {
		case session.Mode == "subscription":
			return newJob(model.SyncJobReconcile, "")
		case session.Mode == "payment" && session.PaymentStatus == model.OrderPaymentPaid:
			payload, err := json.Marshal(model.OrderPayload{
				CheckoutSessionID: session.ID,
				PaymentIntentID:   session.PaymentIntent,
				CustomerID:        customerID,
				AmountSubtotal:    session.AmountSubtotal,
				AmountTotal:       session.AmountTotal,
				Currency:          session.Currency,
				PaymentStatus:     session.PaymentStatus,
			})
			if err != nil {
				logger.Error().Err(err).Msg("encode order payload failed")
				return nil
			}
			return newJob(model.SyncJobRecordOrder, string(payload))
		default:
			logger.Info().
				Str("mode", session.Mode).
				Str("payment_status", session.PaymentStatus).
				Msg("checkout session needs no sync")
			return nil
		}

	case "invoice.payment_failed":
		var invoice model.StripeInvoice
		if err := json.Unmarshal(raw, &invoice); err != nil {
			logger.Error().Err(err).Msg("decode invoice failed")
			return nil
		}
		subscriptionID := invoice.SubscriptionID()
		if invoice.BillingReason == "subscription_cycle" && subscriptionID != "" && invoice.AttemptCount == 1 {
			return newJob(model.SyncJobPauseThenReconcile, subscriptionID)
		}
		return newJob(model.SyncJobReconcile, "")

	case "payment_intent.succeeded":
		// one-time payments are recorded from checkout.session.completed
		if !obj.HasInvoice() {
			return nil
		}
		return newJob(model.SyncJobReconcile, "")
	}

	return newJob(model.SyncJobReconcile, "")
}

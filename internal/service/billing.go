package service

import (
	"context"
	"errors"
	"fmt"

	"audio-embed-service/internal/client"
	"audio-embed-service/internal/dto"
	"audio-embed-service/internal/metrics"
	"audio-embed-service/internal/model"
	"audio-embed-service/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type BillingService interface {
	// Reconcile pulls the customer's latest subscription from Stripe and upserts
	// the local billing record. Safe to repeat.
	Reconcile(ctx context.Context, customerID string) error
	// RecordOrder inserts a one-time purchase. Duplicate deliveries are a no-op.
	RecordOrder(ctx context.Context, order *model.Order) (bool, error)
	PauseCollection(ctx context.Context, subscriptionID string) error
	CancelAtPeriodEnd(ctx context.Context, accountID string) (*dto.CancelSubscriptionResponse, error)
	// PurgeCustomer cancels the account's live subscriptions immediately, deletes
	// the Stripe customer and soft-deletes every local billing row.
	PurgeCustomer(ctx context.Context, accountID string) error
}

// subscription statuses that still bill and must be cancelled on purge
var purgeableStatuses = map[string]bool{
	"active":   true,
	"trialing": true,
	"past_due": true,
	"unpaid":   true,
}

type billingServiceImpl struct {
	db           *gorm.DB
	stripeClient client.StripeClient
	cache        client.EntitlementCache
	billingRepo  repository.BillingRepository
	orderRepo    repository.OrderRepository
	customerRepo repository.CustomerRepository
}

func NewBillingService(
	db *gorm.DB,
	stripeClient client.StripeClient,
	cache client.EntitlementCache,
	billingRepo repository.BillingRepository,
	orderRepo repository.OrderRepository,
	customerRepo repository.CustomerRepository,
) BillingService {
	return &billingServiceImpl{
		db:           db,
		stripeClient: stripeClient,
		cache:        cache,
		billingRepo:  billingRepo,
		orderRepo:    orderRepo,
		customerRepo: customerRepo,
	}
}

func (s *billingServiceImpl) Reconcile(ctx context.Context, customerID string) error {
	sub, err := s.stripeClient.LatestSubscription(ctx, customerID)
	if err != nil {
		metrics.ReconcileTotal.WithLabelValues("provider_error").Inc()
		return fmt.Errorf("fetch latest subscription: %w", err)
	}

	record, withPaymentMethod := billingRecordFrom(customerID, sub)

	if err := s.billingRepo.Upsert(ctx, record, withPaymentMethod); err != nil {
		metrics.ReconcileTotal.WithLabelValues("store_error").Inc()
		log.Error().Err(err).Str("customer_id", customerID).Msg("billing record upsert failed")
		return fmt.Errorf("upsert billing record: %w", err)
	}

	metrics.ReconcileTotal.WithLabelValues("ok").Inc()
	log.Info().
		Str("customer_id", customerID).
		Str("status", record.Status).
		Msg("billing record synced")

	s.invalidate(ctx, customerID)
	return nil
}

// billingRecordFrom maps provider state onto a fresh record. A nil subscription
// yields a not_started record with every subscription field cleared.
func billingRecordFrom(customerID string, sub *client.Subscription) (*model.BillingRecord, bool) {
	if sub == nil {
		return &model.BillingRecord{
			CustomerID: customerID,
			Status:     "not_started",
		}, true
	}

	record := &model.BillingRecord{
		CustomerID:         customerID,
		SubscriptionID:     &sub.ID,
		Status:             sub.Status,
		PriceID:            sub.PriceID,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}

	if sub.PaymentMethod == nil {
		return record, false
	}
	record.PaymentMethodBrand = optional(sub.PaymentMethod.Brand)
	record.PaymentMethodLast4 = optional(sub.PaymentMethod.Last4)
	return record, true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *billingServiceImpl) RecordOrder(ctx context.Context, order *model.Order) (bool, error) {
	created, err := s.orderRepo.CreateIfNotExists(ctx, order)
	if err != nil {
		return false, fmt.Errorf("insert order: %w", err)
	}

	if created {
		log.Info().
			Str("customer_id", order.CustomerID).
			Str("checkout_session_id", order.CheckoutSessionID).
			Msg("one-time payment recorded")
		s.invalidate(ctx, order.CustomerID)
	}

	return created, nil
}

func (s *billingServiceImpl) PauseCollection(ctx context.Context, subscriptionID string) error {
	if err := s.stripeClient.PauseCollection(ctx, subscriptionID); err != nil {
		return fmt.Errorf("pause subscription %s: %w", subscriptionID, err)
	}
	log.Info().Str("subscription_id", subscriptionID).Msg("paused subscription after failed renewal")
	return nil
}

func (s *billingServiceImpl) CancelAtPeriodEnd(ctx context.Context, accountID string) (*dto.CancelSubscriptionResponse, error) {
	customer, err := s.customerRepo.FindByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoCustomer
		}
		return nil, fmt.Errorf("find customer: %w", err)
	}

	record, err := s.billingRepo.FindByCustomerID(ctx, customer.CustomerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoSubscription
		}
		return nil, fmt.Errorf("find billing record: %w", err)
	}

	if record.SubscriptionID == nil || *record.SubscriptionID == "" {
		return nil, ErrNoSubscriptionID
	}

	updated, err := s.stripeClient.CancelAtPeriodEnd(ctx, *record.SubscriptionID)
	if err != nil {
		log.Error().Err(err).
			Str("customer_id", customer.CustomerID).
			Str("subscription_id", *record.SubscriptionID).
			Msg("cancel at period end failed")
		return nil, err
	}

	// Stripe already changed, so a failed local mirror is only logged
	if err := s.billingRepo.MarkCancelAtPeriodEnd(ctx, customer.CustomerID); err != nil {
		log.Error().Err(err).Str("customer_id", customer.CustomerID).Msg("failed to mirror cancel_at_period_end")
	}
	s.invalidate(ctx, customer.CustomerID)

	return &dto.CancelSubscriptionResponse{
		Success:           true,
		Message:           "Subscription will be canceled at the end of the current billing period",
		CancelAtPeriodEnd: updated.CancelAtPeriodEnd,
		CurrentPeriodEnd:  updated.CurrentPeriodEnd,
	}, nil
}

func (s *billingServiceImpl) PurgeCustomer(ctx context.Context, accountID string) error {
	customer, err := s.customerRepo.FindByAccountID(ctx, accountID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find customer: %w", err)
	}

	logger := log.With().Str("account_id", accountID).Str("customer_id", customer.CustomerID).Logger()

	subs, err := s.stripeClient.ListSubscriptions(ctx, customer.CustomerID)
	if err != nil {
		logger.Error().Err(err).Msg("list subscriptions for purge failed")
	}
	for _, sub := range subs {
		if !purgeableStatuses[sub.Status] {
			continue
		}
		if err := s.stripeClient.CancelNow(ctx, sub.ID); err != nil {
			logger.Error().Err(err).Str("subscription_id", sub.ID).Msg("cancel subscription failed")
			continue
		}
		logger.Info().Str("subscription_id", sub.ID).Msg("canceled subscription")
	}

	if err := s.stripeClient.DeleteCustomer(ctx, customer.CustomerID); err != nil {
		logger.Error().Err(err).Msg("delete stripe customer failed")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.billingRepo.SoftDelete(ctx, tx, customer.CustomerID); err != nil {
			return fmt.Errorf("soft delete billing record: %w", err)
		}
		if err := s.orderRepo.SoftDeleteByCustomerID(ctx, tx, customer.CustomerID); err != nil {
			return fmt.Errorf("soft delete orders: %w", err)
		}
		if err := s.customerRepo.SoftDeleteByAccountID(ctx, tx, accountID); err != nil {
			return fmt.Errorf("soft delete customer: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, customer.CustomerID)
	logger.Info().Msg("billing data purged")
	return nil
}

func (s *billingServiceImpl) invalidate(ctx context.Context, customerID string) {
	if err := s.cache.Invalidate(ctx, customerID); err != nil {
		log.Warn().Err(err).Str("customer_id", customerID).Msg("entitlement cache invalidate failed")
	}
}

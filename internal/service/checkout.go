package service

import (
	"context"
	"errors"
	"fmt"

	"audio-embed-service/internal/client"
	"audio-embed-service/internal/dto"
	"audio-embed-service/internal/model"
	"audio-embed-service/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type CheckoutService interface {
	CreateCheckoutSession(ctx context.Context, account *model.Account, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error)
	// CreatePortalSession opens the Stripe billing portal for an account that
	// already has a customer. It returns ErrNoCustomer otherwise.
	CreatePortalSession(ctx context.Context, account *model.Account, req *dto.PortalRequest) (*dto.PortalResponse, error)
}

type checkoutServiceImpl struct {
	db           *gorm.DB
	stripeClient client.StripeClient
	accountRepo  repository.AccountRepository
	customerRepo repository.CustomerRepository
	billingRepo  repository.BillingRepository
	trialDays    int64
}

func NewCheckoutService(
	db *gorm.DB,
	stripeClient client.StripeClient,
	accountRepo repository.AccountRepository,
	customerRepo repository.CustomerRepository,
	billingRepo repository.BillingRepository,
	trialDays int64,
) CheckoutService {
	return &checkoutServiceImpl{
		db:           db,
		stripeClient: stripeClient,
		accountRepo:  accountRepo,
		customerRepo: customerRepo,
		billingRepo:  billingRepo,
		trialDays:    trialDays,
	}
}

func (s *checkoutServiceImpl) CreateCheckoutSession(ctx context.Context, account *model.Account, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	customerID, err := s.ensureCustomer(ctx, account)
	if err != nil {
		return nil, err
	}

	if req.Mode == "subscription" {
		if err := s.billingRepo.CreateIfNotExists(ctx, customerID); err != nil {
			return nil, fmt.Errorf("create pending billing record: %w", err)
		}
	}

	session, err := s.stripeClient.CreateCheckoutSession(ctx, &client.CheckoutSessionRequest{
		CustomerID: customerID,
		PriceID:    req.PriceID,
		Mode:       req.Mode,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
		TrialDays:  s.trialDays,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("account_id", account.ID).
		Str("customer_id", customerID).
		Str("mode", req.Mode).
		Str("session_id", session.ID).
		Msg("checkout session created")

	return &dto.CheckoutResponse{
		SessionID: session.ID,
		URL:       session.URL,
	}, nil
}

func (s *checkoutServiceImpl) CreatePortalSession(ctx context.Context, account *model.Account, req *dto.PortalRequest) (*dto.PortalResponse, error) {
	customer, err := s.customerRepo.FindByAccountID(ctx, account.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoCustomer
		}
		return nil, fmt.Errorf("find customer: %w", err)
	}

	portalURL, err := s.stripeClient.CreatePortalSession(ctx, customer.CustomerID, req.ReturnURL)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("account_id", account.ID).
		Str("customer_id", customer.CustomerID).
		Msg("billing portal session created")

	return &dto.PortalResponse{URL: portalURL}, nil
}

// ensureCustomer returns the account's Stripe customer, creating it on first
// use. The account row stays locked until the mapping is committed.
func (s *checkoutServiceImpl) ensureCustomer(ctx context.Context, account *model.Account) (string, error) {
	var customerID string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.accountRepo.LockByID(ctx, tx, account.ID); err != nil {
			return fmt.Errorf("lock account: %w", err)
		}

		customer, err := s.customerRepo.FindByAccountIDInTx(ctx, tx, account.ID)
		if err == nil {
			customerID = customer.CustomerID
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("find customer: %w", err)
		}

		created, err := s.stripeClient.CreateCustomer(ctx, account.Email, account.ID)
		if err != nil {
			return err
		}

		if err := s.customerRepo.Create(ctx, tx, &model.Customer{
			AccountID:  account.ID,
			CustomerID: created,
		}); err != nil {
			log.Error().Err(err).Str("account_id", account.ID).Str("customer_id", created).Msg("failed to save customer mapping")
			return fmt.Errorf("save customer mapping: %w", err)
		}

		log.Info().Str("account_id", account.ID).Str("customer_id", created).Msg("stripe customer created")
		customerID = created
		return nil
	})
	if err != nil {
		return "", err
	}

	return customerID, nil
}

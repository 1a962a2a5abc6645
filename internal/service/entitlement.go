package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"audio-embed-service/internal/client"
	"audio-embed-service/internal/dto"
	"audio-embed-service/internal/entitlement"
	"audio-embed-service/internal/model"
	"audio-embed-service/internal/repository"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type EntitlementService interface {
	// ResolveAccount never fails; lookup failures resolve to entitlement.AccessError.
	ResolveAccount(ctx context.Context, accountID string) entitlement.Access
	BillingStatus(ctx context.Context, accountID string) (*dto.BillingStatusResponse, error)
}

type entitlementServiceImpl struct {
	customerRepo repository.CustomerRepository
	billingRepo  repository.BillingRepository
	orderRepo    repository.OrderRepository
	cache        client.EntitlementCache
	cacheTTL     time.Duration
	now          func() time.Time
}

func NewEntitlementService(
	customerRepo repository.CustomerRepository,
	billingRepo repository.BillingRepository,
	orderRepo repository.OrderRepository,
	cache client.EntitlementCache,
	cacheTTL time.Duration,
) EntitlementService {
	return &entitlementServiceImpl{
		customerRepo: customerRepo,
		billingRepo:  billingRepo,
		orderRepo:    orderRepo,
		cache:        cache,
		cacheTTL:     cacheTTL,
		now:          time.Now,
	}
}

func (s *entitlementServiceImpl) ResolveAccount(ctx context.Context, accountID string) entitlement.Access {
	logger := log.With().Str("account_id", accountID).Logger()

	customer, err := s.customerRepo.FindByAccountID(ctx, accountID)
	if errors.Is(err, repository.ErrNotFound) {
		return entitlement.Resolve(nil, nil, s.now())
	}
	if err != nil {
		logger.Error().Err(err).Msg("entitlement lookup failed: customer")
		return entitlement.AccessError
	}

	cached, gen, ok := s.cached(ctx, customer.CustomerID)
	if ok {
		return cached
	}

	record, orders, err := s.load(ctx, customer.CustomerID)
	if err != nil {
		logger.Error().Err(err).Str("customer_id", customer.CustomerID).Msg("entitlement lookup failed")
		return entitlement.AccessError
	}

	now := s.now()
	access := entitlement.Resolve(record, orders, now)
	s.store(ctx, customer.CustomerID, access, gen, record, now)

	return access
}

func (s *entitlementServiceImpl) BillingStatus(ctx context.Context, accountID string) (*dto.BillingStatusResponse, error) {
	resp := &dto.BillingStatusResponse{Orders: []dto.OrderView{}}

	customer, err := s.customerRepo.FindByAccountID(ctx, accountID)
	if errors.Is(err, repository.ErrNotFound) {
		resp.Access = entitlement.AccessNoTrial.String()
		return resp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find customer: %w", err)
	}

	record, orders, err := s.load(ctx, customer.CustomerID)
	if err != nil {
		return nil, err
	}

	access := entitlement.Resolve(record, orders, s.now())
	resp.Access = access.String()
	resp.HasAccess = access == entitlement.AccessActive

	if record != nil {
		resp.Subscription = &dto.SubscriptionView{
			CustomerID:         record.CustomerID,
			SubscriptionID:     record.SubscriptionID,
			Status:             record.Status,
			PriceID:            record.PriceID,
			CurrentPeriodStart: record.CurrentPeriodStart,
			CurrentPeriodEnd:   record.CurrentPeriodEnd,
			CancelAtPeriodEnd:  record.CancelAtPeriodEnd,
			PaymentMethodBrand: record.PaymentMethodBrand,
			PaymentMethodLast4: record.PaymentMethodLast4,
		}
	}

	for _, o := range orders {
		resp.Orders = append(resp.Orders, dto.OrderView{
			CheckoutSessionID: o.CheckoutSessionID,
			Amount:            dto.FormatAmount(o.AmountTotal, o.Currency),
			Currency:          o.Currency,
			PaymentStatus:     o.PaymentStatus,
			Status:            o.Status,
			CreatedAt:         o.CreatedAt.Unix(),
		})
	}

	return resp, nil
}

// load fetches the billing record and orders concurrently. A missing record is nil.
func (s *entitlementServiceImpl) load(ctx context.Context, customerID string) (*model.BillingRecord, []model.Order, error) {
	var (
		record *model.BillingRecord
		orders []model.Order
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.billingRepo.FindByCustomerID(gctx, customerID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("find billing record: %w", err)
		}
		record = r
		return nil
	})
	g.Go(func() error {
		o, err := s.orderRepo.ListByCustomerID(gctx, customerID)
		if err != nil {
			return fmt.Errorf("list orders: %w", err)
		}
		orders = o
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return record, orders, nil
}

func (s *entitlementServiceImpl) cached(ctx context.Context, customerID string) (entitlement.Access, int64, bool) {
	val, gen, ok, err := s.cache.Get(ctx, customerID)
	if err != nil {
		log.Warn().Err(err).Str("customer_id", customerID).Msg("entitlement cache read failed")
		return entitlement.AccessError, 0, false
	}
	if !ok {
		return entitlement.AccessError, gen, false
	}

	access, err := entitlement.ParseAccess(val)
	if err != nil || access == entitlement.AccessError {
		return entitlement.AccessError, gen, false
	}
	return access, gen, true
}

// store caches access until the TTL or the end of the current period, whichever
// is first. It is a no-op when the customer was invalidated after gen was read.
func (s *entitlementServiceImpl) store(ctx context.Context, customerID string, access entitlement.Access, gen int64, record *model.BillingRecord, now time.Time) {
	if access == entitlement.AccessError || s.cacheTTL <= 0 {
		return
	}

	ttl := s.cacheTTL
	if record != nil && record.CurrentPeriodEnd != nil {
		untilEnd := time.Unix(*record.CurrentPeriodEnd, 0).Sub(now)
		if untilEnd > 0 && untilEnd < ttl {
			ttl = untilEnd
		}
	}

	stored, err := s.cache.Set(ctx, customerID, access.String(), gen, ttl)
	if err != nil {
		log.Warn().Err(err).Str("customer_id", customerID).Msg("entitlement cache write failed")
		return
	}
	if !stored {
		log.Debug().Str("customer_id", customerID).Msg("entitlement cache write skipped, invalidated meanwhile")
	}
}

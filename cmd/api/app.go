package main

import (
	"context"

	"audio-embed-service/internal/client"
	"audio-embed-service/internal/config"
	"audio-embed-service/internal/repository"
	"audio-embed-service/internal/server"
	"audio-embed-service/internal/service"
	"audio-embed-service/internal/worker"

	"github.com/rs/zerolog/log"
)

type app struct {
	services       *server.Services
	billingService service.BillingService
	accountRepo    repository.AccountRepository
	customerRepo   repository.CustomerRepository
	pool           *worker.Pool
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := client.InitDatabase(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := client.Migrate(db); err != nil {
		return nil, err
	}

	stripeClient := client.NewStripeClient(&cfg.Stripe)

	cache, err := client.NewEntitlementCache(ctx, &cfg.Redis)
	if err != nil {
		return nil, err
	}

	objectStore, err := client.NewObjectStore(ctx, &cfg.Storage)
	if err != nil {
		return nil, err
	}

	if cfg.Stripe.WebhookSecret == "" {
		log.Warn().Msg("STRIPE_WEBHOOK_SECRET not set, every webhook will be rejected")
	}

	accountRepo := repository.NewAccountRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	billingRepo := repository.NewBillingRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	collectionRepo := repository.NewCollectionRepository(db)
	syncJobRepo := repository.NewSyncJobRepository(db)

	billingService := service.NewBillingService(
		db,
		stripeClient,
		cache,
		billingRepo,
		orderRepo,
		customerRepo,
	)
	entitlementService := service.NewEntitlementService(
		customerRepo,
		billingRepo,
		orderRepo,
		cache,
		cfg.Redis.EntitlementTTL,
	)

	pool := worker.NewPool(syncJobRepo, service.NewSyncJobExecutor(billingService), &cfg.Worker)

	return &app{
		services: &server.Services{
			Webhook:     service.NewWebhookService(cfg.Stripe.WebhookSecret, pool),
			Billing:     billingService,
			Checkout:    service.NewCheckoutService(db, stripeClient, accountRepo, customerRepo, billingRepo, cfg.Stripe.TrialDays),
			Entitlement: entitlementService,
			Embed:       service.NewEmbedService(collectionRepo, entitlementService),
			Account:     service.NewAccountService(db, billingService, objectStore, accountRepo, collectionRepo),
		},
		billingService: billingService,
		accountRepo:    accountRepo,
		customerRepo:   customerRepo,
		pool:           pool,
	}, nil
}

package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"audio-embed-service/internal/client"
	"audio-embed-service/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type AccountService interface {
	// Delete removes the account and everything it owns. Billing rows are
	// soft-deleted; storage and Stripe cleanup failures are logged and skipped.
	Delete(ctx context.Context, accountID string) error
}

type accountServiceImpl struct {
	db             *gorm.DB
	billingService BillingService
	objectStore    client.ObjectStore
	accountRepo    repository.AccountRepository
	collectionRepo repository.CollectionRepository
}

func NewAccountService(
	db *gorm.DB,
	billingService BillingService,
	objectStore client.ObjectStore,
	accountRepo repository.AccountRepository,
	collectionRepo repository.CollectionRepository,
) AccountService {
	return &accountServiceImpl{
		db:             db,
		billingService: billingService,
		objectStore:    objectStore,
		accountRepo:    accountRepo,
		collectionRepo: collectionRepo,
	}
}

func (s *accountServiceImpl) Delete(ctx context.Context, accountID string) error {
	logger := log.With().Str("account_id", accountID).Logger()
	logger.Info().Msg("starting account deletion")

	if err := s.billingService.PurgeCustomer(ctx, accountID); err != nil {
		return fmt.Errorf("purge billing: %w", err)
	}

	s.deleteObjects(ctx, accountID)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.collectionRepo.DeleteByAccountID(ctx, tx, accountID); err != nil {
			return fmt.Errorf("delete collections: %w", err)
		}
		if err := s.accountRepo.Delete(ctx, tx, accountID); err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info().Msg("account deletion completed")
	return nil
}

func (s *accountServiceImpl) deleteObjects(ctx context.Context, accountID string) {
	logger := log.With().Str("account_id", accountID).Logger()

	keys, err := s.collectionRepo.ListStoragePaths(ctx, accountID)
	if err != nil {
		logger.Error().Err(err).Msg("list audio storage paths failed")
	}

	coverURLs, err := s.collectionRepo.ListCoverURLs(ctx, accountID)
	if err != nil {
		logger.Error().Err(err).Msg("list cover urls failed")
	}
	for _, u := range coverURLs {
		if key, ok := coverObjectKey(u); ok {
			keys = append(keys, key)
		}
	}

	if len(keys) == 0 {
		return
	}

	failed, err := s.objectStore.DeleteObjects(ctx, keys)
	if err != nil {
		logger.Error().Err(err).Msg("storage cleanup failed")
	}
	logger.Info().
		Int("requested", len(keys)).
		Int("failed", len(failed)).
		Msg("storage cleanup finished")
}

// coverObjectKey turns a public cover url into its object key
// (<account>/covers/<file>, the last three path segments).
func coverObjectKey(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "", false
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 3 {
		return "", false
	}
	return strings.Join(parts[len(parts)-3:], "/"), true
}

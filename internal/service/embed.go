package service

import (
	"context"
	"errors"

	"audio-embed-service/internal/entitlement"
	"audio-embed-service/internal/metrics"
	"audio-embed-service/internal/model"
	"audio-embed-service/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type EmbedState string

const (
	EmbedPlayer                 EmbedState = "player"
	EmbedReactivate             EmbedState = "reactivate"
	EmbedStartTrial             EmbedState = "start_trial"
	EmbedTemporarilyUnavailable EmbedState = "temporarily_unavailable"
	// EmbedUnavailable covers missing, private and malformed collection ids alike.
	EmbedUnavailable EmbedState = "unavailable"
)

// EmbedView is what the gate decided to show. Collection and Tracks are only
// set for EmbedPlayer.
type EmbedView struct {
	State      EmbedState
	Access     entitlement.Access
	Collection *model.Collection
	Tracks     []model.CollectionTrack
}

type EmbedService interface {
	Render(ctx context.Context, collectionID string) *EmbedView
}

type embedServiceImpl struct {
	collectionRepo     repository.CollectionRepository
	entitlementService EntitlementService
}

func NewEmbedService(
	collectionRepo repository.CollectionRepository,
	entitlementService EntitlementService,
) EmbedService {
	return &embedServiceImpl{
		collectionRepo:     collectionRepo,
		entitlementService: entitlementService,
	}
}

func (s *embedServiceImpl) Render(ctx context.Context, collectionID string) *EmbedView {
	view := s.render(ctx, collectionID)
	metrics.EmbedDecisionsTotal.WithLabelValues(string(view.State)).Inc()
	return view
}

func (s *embedServiceImpl) render(ctx context.Context, collectionID string) *EmbedView {
	if _, err := uuid.Parse(collectionID); err != nil {
		return &EmbedView{State: EmbedUnavailable}
	}

	collection, err := s.collectionRepo.FindPublic(ctx, collectionID)
	if errors.Is(err, repository.ErrNotFound) {
		return &EmbedView{State: EmbedUnavailable}
	}
	if err != nil {
		log.Error().Err(err).Str("collection_id", collectionID).Msg("embed collection lookup failed")
		return &EmbedView{State: EmbedTemporarilyUnavailable}
	}

	access := s.entitlementService.ResolveAccount(ctx, collection.AccountID)
	switch access {
	case entitlement.AccessActive:
		tracks, err := s.collectionRepo.ListTracks(ctx, collection.ID)
		if err != nil {
			log.Error().Err(err).Str("collection_id", collectionID).Msg("embed track lookup failed")
			return &EmbedView{State: EmbedTemporarilyUnavailable, Access: entitlement.AccessError}
		}
		return &EmbedView{
			State:      EmbedPlayer,
			Access:     access,
			Collection: collection,
			Tracks:     tracks,
		}
	case entitlement.AccessTrialEnded:
		return &EmbedView{State: EmbedReactivate, Access: access}
	case entitlement.AccessNoTrial:
		return &EmbedView{State: EmbedStartTrial, Access: access}
	default:
		log.Warn().
			Str("collection_id", collectionID).
			Str("account_id", collection.AccountID).
			Msg("embed entitlement unresolved, serving unavailable view")
		return &EmbedView{State: EmbedTemporarilyUnavailable, Access: entitlement.AccessError}
	}
}

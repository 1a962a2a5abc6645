package repository

import (
	"context"

	"audio-embed-service/internal/model"

	"gorm.io/gorm"
)

type CollectionRepository interface {
	// FindPublic returns ErrNotFound for both missing and private collections.
	FindPublic(ctx context.Context, collectionID string) (*model.Collection, error)
	ListTracks(ctx context.Context, collectionID string) ([]model.CollectionTrack, error)
	ListStoragePaths(ctx context.Context, accountID string) ([]string, error)
	ListCoverURLs(ctx context.Context, accountID string) ([]string, error)
	DeleteByAccountID(ctx context.Context, tx *gorm.DB, accountID string) error
}

type collectionRepoImpl struct {
	db *gorm.DB
}

func NewCollectionRepository(db *gorm.DB) CollectionRepository {
	return &collectionRepoImpl{
		db: db,
	}
}

func (r *collectionRepoImpl) FindPublic(ctx context.Context, collectionID string) (*model.Collection, error) {
	var collection model.Collection
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_public = ?", collectionID, true).
		First(&collection).Error

	if err != nil {
		return nil, translate(err)
	}

	return &collection, nil
}

func (r *collectionRepoImpl) ListTracks(ctx context.Context, collectionID string) ([]model.CollectionTrack, error) {
	var tracks []model.CollectionTrack
	err := r.db.WithContext(ctx).
		Preload("AudioFile").
		Where("collection_id = ?", collectionID).
		Order("position ASC").
		Find(&tracks).Error

	if err != nil {
		return nil, err
	}

	return tracks, nil
}

func (r *collectionRepoImpl) ListStoragePaths(ctx context.Context, accountID string) ([]string, error) {
	var paths []string
	err := r.db.WithContext(ctx).
		Model(&model.AudioFile{}).
		Where("account_id = ? AND storage_path <> ''", accountID).
		Pluck("storage_path", &paths).Error

	if err != nil {
		return nil, err
	}

	return paths, nil
}

func (r *collectionRepoImpl) ListCoverURLs(ctx context.Context, accountID string) ([]string, error) {
	var urls []string
	err := r.db.WithContext(ctx).
		Model(&model.Collection{}).
		Where("account_id = ? AND cover_url IS NOT NULL AND cover_url <> ''", accountID).
		Pluck("cover_url", &urls).Error

	if err != nil {
		return nil, err
	}

	return urls, nil
}

// DeleteByAccountID hard-deletes the account's tracks, collections and audio files.
func (r *collectionRepoImpl) DeleteByAccountID(ctx context.Context, tx *gorm.DB, accountID string) error {
	tx = tx.WithContext(ctx)

	collectionIDs := tx.Model(&model.Collection{}).Select("id").Where("account_id = ?", accountID)
	audioIDs := tx.Model(&model.AudioFile{}).Select("id").Where("account_id = ?", accountID)

	if err := tx.
		Where("collection_id IN (?) OR audio_id IN (?)", collectionIDs, audioIDs).
		Delete(&model.CollectionTrack{}).Error; err != nil {
		return err
	}

	if err := tx.Where("account_id = ?", accountID).Delete(&model.Collection{}).Error; err != nil {
		return err
	}

	return tx.Where("account_id = ?", accountID).Delete(&model.AudioFile{}).Error
}

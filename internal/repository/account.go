package repository

import (
	"context"

	"audio-embed-service/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepository interface {
	FindByID(ctx context.Context, accountID string) (*model.Account, error)
	// LockByID takes a row lock on the account for the rest of tx.
	LockByID(ctx context.Context, tx *gorm.DB, accountID string) error
	Delete(ctx context.Context, tx *gorm.DB, accountID string) error
}

type accountRepoImpl struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepoImpl{
		db: db,
	}
}

func (r *accountRepoImpl) FindByID(ctx context.Context, accountID string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).
		Where("id = ?", accountID).
		First(&account).Error

	if err != nil {
		return nil, translate(err)
	}

	return &account, nil
}

func (r *accountRepoImpl) LockByID(ctx context.Context, tx *gorm.DB, accountID string) error {
	var account model.Account
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", accountID).
		First(&account).Error

	return translate(err)
}

func (r *accountRepoImpl) Delete(ctx context.Context, tx *gorm.DB, accountID string) error {
	return tx.WithContext(ctx).
		Where("id = ?", accountID).
		Delete(&model.Account{}).Error
}

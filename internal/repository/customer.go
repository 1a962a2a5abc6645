package repository

import (
	"context"

	"audio-embed-service/internal/model"

	"gorm.io/gorm"
)

type CustomerRepository interface {
	Create(ctx context.Context, tx *gorm.DB, customer *model.Customer) error
	FindByAccountID(ctx context.Context, accountID string) (*model.Customer, error)
	FindByAccountIDInTx(ctx context.Context, tx *gorm.DB, accountID string) (*model.Customer, error)
	FindByCustomerID(ctx context.Context, customerID string) (*model.Customer, error)
	SoftDeleteByAccountID(ctx context.Context, tx *gorm.DB, accountID string) error
}

type customerRepoImpl struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepoImpl{
		db: db,
	}
}

func (r *customerRepoImpl) Create(ctx context.Context, tx *gorm.DB, customer *model.Customer) error {
	return tx.WithContext(ctx).Create(customer).Error
}

func (r *customerRepoImpl) FindByAccountID(ctx context.Context, accountID string) (*model.Customer, error) {
	return r.FindByAccountIDInTx(ctx, r.db, accountID)
}

func (r *customerRepoImpl) FindByAccountIDInTx(ctx context.Context, tx *gorm.DB, accountID string) (*model.Customer, error) {
	var customer model.Customer
	err := tx.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("id DESC").
		First(&customer).Error

	if err != nil {
		return nil, translate(err)
	}

	return &customer, nil
}

func (r *customerRepoImpl) FindByCustomerID(ctx context.Context, customerID string) (*model.Customer, error) {
	var customer model.Customer
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		First(&customer).Error

	if err != nil {
		return nil, translate(err)
	}

	return &customer, nil
}

func (r *customerRepoImpl) SoftDeleteByAccountID(ctx context.Context, tx *gorm.DB, accountID string) error {
	return tx.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&model.Customer{}).Error
}

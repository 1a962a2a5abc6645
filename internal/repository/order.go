package repository

import (
	"context"

	"audio-embed-service/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository interface {
	// CreateIfNotExists inserts the order unless one exists for its checkout session.
	// It reports whether a row was written.
	CreateIfNotExists(ctx context.Context, order *model.Order) (bool, error)
	ListByCustomerID(ctx context.Context, customerID string) ([]model.Order, error)
	SoftDeleteByCustomerID(ctx context.Context, tx *gorm.DB, customerID string) error
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) CreateIfNotExists(ctx context.Context, order *model.Order) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "checkout_session_id"}},
		DoNothing: true,
	}).Create(order)

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *orderRepoImpl) ListByCustomerID(ctx context.Context, customerID string) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&orders).Error

	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *orderRepoImpl) SoftDeleteByCustomerID(ctx context.Context, tx *gorm.DB, customerID string) error {
	return tx.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Delete(&model.Order{}).Error
}

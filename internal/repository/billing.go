package repository

import (
	"context"
	"time"

	"audio-embed-service/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BillingRepository interface {
	// Upsert writes the record keyed on customer_id. Payment method columns are
	// only overwritten when withPaymentMethod is true.
	Upsert(ctx context.Context, record *model.BillingRecord, withPaymentMethod bool) error
	CreateIfNotExists(ctx context.Context, customerID string) error
	FindByCustomerID(ctx context.Context, customerID string) (*model.BillingRecord, error)
	MarkCancelAtPeriodEnd(ctx context.Context, customerID string) error
	SoftDelete(ctx context.Context, tx *gorm.DB, customerID string) error
}

type billingRepoImpl struct {
	db *gorm.DB
}

func NewBillingRepository(db *gorm.DB) BillingRepository {
	return &billingRepoImpl{
		db: db,
	}
}

var subscriptionColumns = []string{
	"subscription_id",
	"status",
	"price_id",
	"current_period_start",
	"current_period_end",
	"cancel_at_period_end",
	"updated_at",
}

func (r *billingRepoImpl) Upsert(ctx context.Context, record *model.BillingRecord, withPaymentMethod bool) error {
	columns := subscriptionColumns
	if withPaymentMethod {
		columns = append(append([]string{}, subscriptionColumns...), "payment_method_brand", "payment_method_last4")
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "customer_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(record).Error
}

func (r *billingRepoImpl) CreateIfNotExists(ctx context.Context, customerID string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "customer_id"}},
		DoNothing: true,
	}).Create(&model.BillingRecord{
		CustomerID: customerID,
		Status:     "not_started",
	}).Error
}

func (r *billingRepoImpl) FindByCustomerID(ctx context.Context, customerID string) (*model.BillingRecord, error) {
	var record model.BillingRecord
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		First(&record).Error

	if err != nil {
		return nil, translate(err)
	}

	return &record, nil
}

func (r *billingRepoImpl) MarkCancelAtPeriodEnd(ctx context.Context, customerID string) error {
	result := r.db.WithContext(ctx).
		Model(&model.BillingRecord{}).
		Where("customer_id = ?", customerID).
		Updates(map[string]interface{}{
			"cancel_at_period_end": true,
			"updated_at":           time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *billingRepoImpl) SoftDelete(ctx context.Context, tx *gorm.DB, customerID string) error {
	return tx.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Delete(&model.BillingRecord{}).Error
}

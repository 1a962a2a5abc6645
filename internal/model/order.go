package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	OrderPaymentPaid    = "paid"
	OrderStatusComplete = "completed"
)

// Order is one completed one-time checkout. Rows are inserted once and never updated.
type Order struct {
	ID                uint    `gorm:"primaryKey"`
	CheckoutSessionID string  `gorm:"size:128;uniqueIndex;not null"`
	PaymentIntentID   *string `gorm:"size:128;uniqueIndex"`
	CustomerID        string  `gorm:"size:64;index;not null"`
	AmountSubtotal    int64   // minor units
	AmountTotal       int64   // minor units
	Currency          string  `gorm:"size:8"`
	PaymentStatus     string  `gorm:"size:32;not null"`
	Status            string  `gorm:"size:32;not null"`
	CreatedAt         time.Time
	DeletedAt         gorm.DeletedAt `gorm:"index"`
}

func (Order) TableName() string { return "stripe_orders" }

// GrantsLifetime reports whether the order is a paid, completed lifetime purchase.
func (o *Order) GrantsLifetime() bool {
	return o.PaymentStatus == OrderPaymentPaid && o.Status == OrderStatusComplete
}

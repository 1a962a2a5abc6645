package model

import (
	"time"

	"gorm.io/gorm"
)

type Account struct {
	ID        string `gorm:"primaryKey;size:64;not null"`
	Email     string `gorm:"size:255;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Customer links an account to its Stripe customer. At most one live row per account.
type Customer struct {
	ID         uint   `gorm:"primaryKey"`
	AccountID  string `gorm:"size:64;index;not null"`
	CustomerID string `gorm:"size:64;uniqueIndex;not null"` // stripe customer id (cus_...)
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

func (Customer) TableName() string { return "stripe_customers" }

// BillingRecord is the local copy of a customer's subscription state.
// It is keyed by CustomerID and only ever written through an upsert.
type BillingRecord struct {
	ID                 uint    `gorm:"primaryKey"`
	CustomerID         string  `gorm:"size:64;uniqueIndex;not null"`
	SubscriptionID     *string `gorm:"size:64"`
	Status             string  `gorm:"size:32;not null"` // provider vocabulary, stored verbatim
	PriceID            *string `gorm:"size:64"`
	CurrentPeriodStart *int64  // epoch seconds
	CurrentPeriodEnd   *int64  // epoch seconds
	CancelAtPeriodEnd  bool    `gorm:"not null"`
	PaymentMethodBrand *string `gorm:"size:32"`
	PaymentMethodLast4 *string `gorm:"size:4"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
	DeletedAt          gorm.DeletedAt `gorm:"index"`
}

func (BillingRecord) TableName() string { return "stripe_subscriptions" }

type Collection struct {
	ID          string  `gorm:"primaryKey;size:64;not null"`
	AccountID   string  `gorm:"size:64;index;not null"`
	Title       string  `gorm:"size:255;not null"`
	Description string  `gorm:"type:text"`
	CoverURL    *string `gorm:"size:1024"`
	IsPublic    bool    `gorm:"index;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type AudioFile struct {
	ID          string  `gorm:"primaryKey;size:64;not null"`
	AccountID   string  `gorm:"size:64;index;not null"`
	Title       string  `gorm:"size:255;not null"`
	Artist      string  `gorm:"size:255"`
	FileURL     string  `gorm:"size:1024;not null"`
	StoragePath string  `gorm:"size:1024;not null"`
	Duration    float64 // seconds
	CreatedAt   time.Time
}

type CollectionTrack struct {
	ID           string `gorm:"primaryKey;size:64;not null"`
	CollectionID string `gorm:"size:64;index;not null"`
	AudioID      string `gorm:"size:64;index;not null"`
	Position     int    `gorm:"not null"`
	CreatedAt    time.Time

	AudioFile AudioFile `gorm:"foreignKey:AudioID"`
}

const (
	SyncJobReconcile          = "reconcile"
	SyncJobRecordOrder        = "record_order"
	SyncJobPauseThenReconcile = "pause_then_reconcile"

	SyncJobPending = "pending"
	SyncJobRunning = "running"
	SyncJobDone    = "done"
	SyncJobFailed  = "failed"
)

// SyncJob is a unit of webhook work persisted before the webhook is acknowledged.
type SyncJob struct {
	ID         string    `gorm:"primaryKey;size:36;not null"`
	EventID    string    `gorm:"size:128;index"`
	EventType  string    `gorm:"size:64;index"`
	Kind       string    `gorm:"size:32;not null"`
	CustomerID string    `gorm:"size:64;index"`
	Payload    string    `gorm:"type:text"` // kind specific: order JSON or subscription id
	Status     string    `gorm:"size:16;index;not null"`
	Attempts   int       `gorm:"not null"`
	NextRunAt  time.Time `gorm:"index;not null"`
	ClaimedAt  *time.Time
	LastError  string `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// All lists every table the service owns, in migration order.
func All() []any {
	return []any{
		&Account{},
		&Customer{},
		&BillingRecord{},
		&Order{},
		&AudioFile{},
		&Collection{},
		&CollectionTrack{},
		&SyncJob{},
	}
}

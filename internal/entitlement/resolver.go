package entitlement

import (
	"time"

	"audio-embed-service/internal/model"
)

// Resolve decides embed access from the account's billing record and orders.
// A nil record means none exists. The first matching rule wins:
// a lifetime order, then a missing record, then the record's status.
func Resolve(record *model.BillingRecord, orders []model.Order, now time.Time) Access {
	for i := range orders {
		if orders[i].GrantsLifetime() {
			return AccessActive
		}
	}

	if record == nil {
		return AccessNoTrial
	}

	switch ParseStatus(record.Status) {
	case StatusTrialing, StatusActive:
		return AccessActive
	case StatusIncomplete, StatusIncompleteExpired, StatusCanceled:
		if periodOpen(record, now) {
			return AccessActive
		}
		return AccessTrialEnded
	case StatusPaused, StatusPastDue, StatusUnpaid:
		return AccessTrialEnded
	case StatusNotStarted:
		return AccessNoTrial
	case StatusUnrecognized:
		return AccessTrialEnded
	}
	return AccessTrialEnded
}

func HasAccess(record *model.BillingRecord, orders []model.Order, now time.Time) bool {
	return Resolve(record, orders, now) == AccessActive
}

func periodOpen(record *model.BillingRecord, now time.Time) bool {
	return record.CurrentPeriodEnd != nil && *record.CurrentPeriodEnd > now.Unix()
}

package service

import (
	"context"
	"testing"

	"audio-embed-service/internal/client"
	"audio-embed-service/internal/model"
	"audio-embed-service/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileWithoutSubscriptionWritesNotStarted(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	require.NoError(t, env.billing.Upsert(ctx, &model.BillingRecord{
		CustomerID:         "cus_1",
		SubscriptionID:     ptr("sub_old"),
		Status:             "canceled",
		PriceID:            ptr("price_1"),
		CurrentPeriodEnd:   ptr(int64(1_800_000_000)),
		PaymentMethodBrand: ptr("visa"),
		PaymentMethodLast4: ptr("4242"),
	}, true))

	require.NoError(t, env.billingSvc.Reconcile(ctx, "cus_1"))

	got, err := env.billing.FindByCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "not_started", got.Status)
	assert.Nil(t, got.SubscriptionID)
	assert.Nil(t, got.PriceID)
	assert.Nil(t, got.CurrentPeriodEnd)
	assert.Nil(t, got.PaymentMethodBrand)
	assert.Nil(t, got.PaymentMethodLast4)
	assert.Contains(t, env.cache.invalidated, "cus_1")
}

func TestReconcileCopiesProviderStateVerbatim(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.stripe.latest["cus_1"] = &client.Subscription{
		ID:                 "sub_1",
		CustomerID:         "cus_1",
		Status:             "trialing",
		PriceID:            ptr("price_monthly"),
		CurrentPeriodStart: ptr(int64(1_700_000_000)),
		CurrentPeriodEnd:   ptr(int64(1_701_209_600)),
		CancelAtPeriodEnd:  true,
		PaymentMethod:      &client.PaymentMethod{Brand: "visa", Last4: "4242"},
	}

	require.NoError(t, env.billingSvc.Reconcile(ctx, "cus_1"))
	// repeating converges on the same row
	require.NoError(t, env.billingSvc.Reconcile(ctx, "cus_1"))

	got, err := env.billing.FindByCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "sub_1", *got.SubscriptionID)
	assert.Equal(t, "trialing", got.Status)
	assert.Equal(t, "price_monthly", *got.PriceID)
	assert.Equal(t, int64(1_700_000_000), *got.CurrentPeriodStart)
	assert.Equal(t, int64(1_701_209_600), *got.CurrentPeriodEnd)
	assert.True(t, got.CancelAtPeriodEnd)
	assert.Equal(t, "visa", *got.PaymentMethodBrand)
	assert.Equal(t, "4242", *got.PaymentMethodLast4)

	var n int64
	require.NoError(t, env.db.Model(&model.BillingRecord{}).Where("customer_id = ?", "cus_1").Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestReconcileKeepsPaymentMethodWhenNotExpanded(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.stripe.latest["cus_1"] = &client.Subscription{
		ID:            "sub_1",
		Status:        "active",
		PaymentMethod: &client.PaymentMethod{Brand: "amex", Last4: "0005"},
	}
	require.NoError(t, env.billingSvc.Reconcile(ctx, "cus_1"))

	env.stripe.latest["cus_1"] = &client.Subscription{ID: "sub_1", Status: "past_due"}
	require.NoError(t, env.billingSvc.Reconcile(ctx, "cus_1"))

	got, err := env.billing.FindByCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "past_due", got.Status)
	assert.Equal(t, "amex", *got.PaymentMethodBrand)

	// an expanded non-card method clears the card details
	env.stripe.latest["cus_1"] = &client.Subscription{ID: "sub_1", Status: "active", PaymentMethod: &client.PaymentMethod{}}
	require.NoError(t, env.billingSvc.Reconcile(ctx, "cus_1"))

	got, err = env.billing.FindByCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Nil(t, got.PaymentMethodBrand)
	assert.Nil(t, got.PaymentMethodLast4)
}

func TestReconcileProviderErrorLeavesRecord(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	require.NoError(t, env.billing.Upsert(ctx, &model.BillingRecord{CustomerID: "cus_1", Status: "active"}, false))
	env.stripe.latestErr = errProvider

	err := env.billingSvc.Reconcile(ctx, "cus_1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errProvider)

	got, err := env.billing.FindByCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "active", got.Status)
}

func TestRecordOrderIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	order := func() *model.Order {
		return &model.Order{
			CheckoutSessionID: "cs_1",
			CustomerID:        "cus_1",
			AmountTotal:       9900,
			Currency:          "usd",
			PaymentStatus:     model.OrderPaymentPaid,
			Status:            model.OrderStatusComplete,
		}
	}

	created, err := env.billingSvc.RecordOrder(ctx, order())
	require.NoError(t, err)
	assert.True(t, created)

	created, err = env.billingSvc.RecordOrder(ctx, order())
	require.NoError(t, err)
	assert.False(t, created)

	orders, err := env.orders.ListByCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, []string{"cus_1"}, env.cache.invalidated)
}

func TestCancelAtPeriodEndErrors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.billingSvc.CancelAtPeriodEnd(ctx, "acc_unknown")
	assert.ErrorIs(t, err, ErrNoCustomer)

	env.seedCustomer(t, "acc_1", "cus_1")
	_, err = env.billingSvc.CancelAtPeriodEnd(ctx, "acc_1")
	assert.ErrorIs(t, err, ErrNoSubscription)

	require.NoError(t, env.billing.CreateIfNotExists(ctx, "cus_1"))
	_, err = env.billingSvc.CancelAtPeriodEnd(ctx, "acc_1")
	assert.ErrorIs(t, err, ErrNoSubscriptionID)

	assert.Empty(t, env.stripe.canceledAtEnd)
}

func TestCancelAtPeriodEndMirrorsLocally(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedCustomer(t, "acc_1", "cus_1")

	require.NoError(t, env.billing.Upsert(ctx, &model.BillingRecord{
		CustomerID:     "cus_1",
		SubscriptionID: ptr("sub_1"),
		Status:         "active",
	}, false))

	resp, err := env.billingSvc.CancelAtPeriodEnd(ctx, "acc_1")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.True(t, resp.CancelAtPeriodEnd)
	assert.Equal(t, "Subscription will be canceled at the end of the current billing period", resp.Message)
	assert.Equal(t, []string{"sub_1"}, env.stripe.canceledAtEnd)

	got, err := env.billing.FindByCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.True(t, got.CancelAtPeriodEnd)
	assert.Equal(t, "active", got.Status)
}

func TestCancelAtPeriodEndProviderFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedCustomer(t, "acc_1", "cus_1")
	require.NoError(t, env.billing.Upsert(ctx, &model.BillingRecord{
		CustomerID:     "cus_1",
		SubscriptionID: ptr("sub_1"),
		Status:         "active",
	}, false))
	env.stripe.cancelErr = errProvider

	_, err := env.billingSvc.CancelAtPeriodEnd(ctx, "acc_1")
	assert.ErrorIs(t, err, errProvider)

	got, err := env.billing.FindByCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.False(t, got.CancelAtPeriodEnd)
}

func TestPurgeCustomerCancelsLiveSubscriptions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedCustomer(t, "acc_1", "cus_1")

	env.stripe.subs["cus_1"] = []*client.Subscription{
		{ID: "sub_active", Status: "active"},
		{ID: "sub_trial", Status: "trialing"},
		{ID: "sub_past_due", Status: "past_due"},
		{ID: "sub_unpaid", Status: "unpaid"},
		{ID: "sub_canceled", Status: "canceled"},
		{ID: "sub_incomplete_expired", Status: "incomplete_expired"},
	}
	require.NoError(t, env.billing.Upsert(ctx, &model.BillingRecord{CustomerID: "cus_1", Status: "active"}, false))
	_, err := env.orders.CreateIfNotExists(ctx, &model.Order{CheckoutSessionID: "cs_1", CustomerID: "cus_1", PaymentStatus: "paid", Status: "completed"})
	require.NoError(t, err)

	require.NoError(t, env.billingSvc.PurgeCustomer(ctx, "acc_1"))

	assert.ElementsMatch(t, []string{"sub_active", "sub_trial", "sub_past_due", "sub_unpaid"}, env.stripe.canceledNow)
	assert.Equal(t, []string{"cus_1"}, env.stripe.deletedCustomer)

	_, err = env.billing.FindByCustomerID(ctx, "cus_1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = env.customers.FindByAccountID(ctx, "acc_1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	orders, err := env.orders.ListByCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Empty(t, orders)

	var n int64
	require.NoError(t, env.db.Unscoped().Model(&model.BillingRecord{}).Where("customer_id = ?", "cus_1").Count(&n).Error)
	assert.Equal(t, int64(1), n, "billing row is soft-deleted, not removed")
}

func TestPurgeCustomerContinuesOnProviderErrors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedCustomer(t, "acc_1", "cus_1")
	require.NoError(t, env.billing.Upsert(ctx, &model.BillingRecord{CustomerID: "cus_1", Status: "active"}, false))

	env.stripe.listErr = errProvider
	env.stripe.deleteErr = errProvider

	require.NoError(t, env.billingSvc.PurgeCustomer(ctx, "acc_1"))

	_, err := env.billing.FindByCustomerID(ctx, "cus_1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPurgeCustomerWithoutCustomerIsNoop(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.billingSvc.PurgeCustomer(context.Background(), "acc_none"))
	assert.Empty(t, env.stripe.deletedCustomer)
}

func TestPauseCollection(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.billingSvc.PauseCollection(context.Background(), "sub_1"))
	assert.Equal(t, []string{"sub_1"}, env.stripe.paused)

	env.stripe.pauseErr = errProvider
	assert.ErrorIs(t, env.billingSvc.PauseCollection(context.Background(), "sub_2"), errProvider)
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"audio-embed-service/internal/client"
	"audio-embed-service/internal/entitlement"
	"audio-embed-service/internal/model"
	"audio-embed-service/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingCustomerRepo struct {
	repository.CustomerRepository
}

func (failingCustomerRepo) FindByAccountID(context.Context, string) (*model.Customer, error) {
	return nil, errors.New("connection reset")
}

func TestResolveAccountWithoutCustomer(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, entitlement.AccessNoTrial, env.entitlements.ResolveAccount(context.Background(), "acc_none"))
}

func TestResolveAccountStates(t *testing.T) {
	now := time.Unix(1_750_000_000, 0)

	tests := []struct {
		name   string
		record *model.BillingRecord
		orders []model.Order
		want   entitlement.Access
	}{
		{
			name: "no record",
			want: entitlement.AccessNoTrial,
		},
		{
			name:   "not started",
			record: &model.BillingRecord{Status: "not_started"},
			want:   entitlement.AccessNoTrial,
		},
		{
			name:   "trialing",
			record: &model.BillingRecord{Status: "trialing"},
			want:   entitlement.AccessActive,
		},
		{
			name:   "canceled inside paid period",
			record: &model.BillingRecord{Status: "canceled", CurrentPeriodEnd: ptr(now.Unix() + 3600)},
			want:   entitlement.AccessActive,
		},
		{
			name:   "past due",
			record: &model.BillingRecord{Status: "past_due", CurrentPeriodEnd: ptr(now.Unix() + 3600)},
			want:   entitlement.AccessTrialEnded,
		},
		{
			name:   "lifetime order wins over canceled",
			record: &model.BillingRecord{Status: "canceled"},
			orders: []model.Order{{CheckoutSessionID: "cs_1", PaymentStatus: "paid", Status: "completed"}},
			want:   entitlement.AccessActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			env := newTestEnv(t)
			env.seedCustomer(t, "acc_1", "cus_1")
			svc := env.entitlements.(*entitlementServiceImpl)
			svc.now = func() time.Time { return now }

			if tt.record != nil {
				tt.record.CustomerID = "cus_1"
				require.NoError(t, env.billing.Upsert(ctx, tt.record, false))
			}
			for i := range tt.orders {
				tt.orders[i].CustomerID = "cus_1"
				_, err := env.orders.CreateIfNotExists(ctx, &tt.orders[i])
				require.NoError(t, err)
			}

			assert.Equal(t, tt.want, svc.ResolveAccount(ctx, "acc_1"))
		})
	}
}

func TestResolveAccountLookupFailure(t *testing.T) {
	env := newTestEnv(t)
	svc := NewEntitlementService(failingCustomerRepo{}, env.billing, env.orders, env.cache, time.Minute)

	assert.Equal(t, entitlement.AccessError, svc.ResolveAccount(context.Background(), "acc_1"))
	assert.Empty(t, env.cache.values)
}

func TestResolveAccountCachesUntilPeriodEnd(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_750_000_000, 0)
	env := newTestEnv(t)
	env.seedCustomer(t, "acc_1", "cus_1")
	svc := env.entitlements.(*entitlementServiceImpl)
	svc.now = func() time.Time { return now }

	require.NoError(t, env.billing.Upsert(ctx, &model.BillingRecord{
		CustomerID:       "cus_1",
		Status:           "canceled",
		CurrentPeriodEnd: ptr(now.Unix() + 60),
	}, false))

	assert.Equal(t, entitlement.AccessActive, svc.ResolveAccount(ctx, "acc_1"))
	assert.Equal(t, "active", env.cache.values["cus_1"])
	assert.Equal(t, time.Minute, env.cache.ttls["cus_1"])

	// cached value is served without touching the store
	env.cache.values["cus_1"] = "trial_ended"
	assert.Equal(t, entitlement.AccessTrialEnded, svc.ResolveAccount(ctx, "acc_1"))
}

func TestResolveAccountIgnoresBrokenCache(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedCustomer(t, "acc_1", "cus_1")
	require.NoError(t, env.billing.Upsert(ctx, &model.BillingRecord{CustomerID: "cus_1", Status: "active"}, false))

	env.cache.getErr = errors.New("redis down")
	assert.Equal(t, entitlement.AccessActive, env.entitlements.ResolveAccount(ctx, "acc_1"))

	env.cache.getErr = nil
	env.cache.values["cus_1"] = "garbage"
	assert.Equal(t, entitlement.AccessActive, env.entitlements.ResolveAccount(ctx, "acc_1"))
}

func TestReconcileInvalidatesCachedAccess(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedCustomer(t, "acc_1", "cus_1")
	require.NoError(t, env.billing.Upsert(ctx, &model.BillingRecord{CustomerID: "cus_1", Status: "active"}, false))

	assert.Equal(t, entitlement.AccessActive, env.entitlements.ResolveAccount(ctx, "acc_1"))

	assert.Equal(t, "active", env.cache.values["cus_1"])

	env.stripe.latest["cus_1"] = &client.Subscription{ID: "sub_1", Status: "unpaid"}
	require.NoError(t, env.billingSvc.Reconcile(ctx, "cus_1"))

	assert.Equal(t, entitlement.AccessTrialEnded, env.entitlements.ResolveAccount(ctx, "acc_1"))
}

func TestResolveAccountDoesNotCacheAcrossInvalidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedCustomer(t, "acc_1", "cus_1")
	require.NoError(t, env.billing.Upsert(ctx, &model.BillingRecord{CustomerID: "cus_1", Status: "active"}, false))

	// a reconcile lands after the resolve read the active row but before it caches
	env.stripe.latest["cus_1"] = &client.Subscription{ID: "sub_1", Status: "unpaid"}
	reconciled := false
	env.cache.beforeSet = func() {
		if reconciled {
			return
		}
		reconciled = true
		require.NoError(t, env.billingSvc.Reconcile(ctx, "cus_1"))
	}

	assert.Equal(t, entitlement.AccessActive, env.entitlements.ResolveAccount(ctx, "acc_1"))
	_, ok := env.cache.value("cus_1")
	assert.False(t, ok, "stale access must not be cached after invalidation")

	env.cache.beforeSet = nil
	assert.Equal(t, entitlement.AccessTrialEnded, env.entitlements.ResolveAccount(ctx, "acc_1"))
	v, ok := env.cache.value("cus_1")
	assert.True(t, ok)
	assert.Equal(t, "trial_ended", v)
}

func TestBillingStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	resp, err := env.entitlements.BillingStatus(ctx, "acc_none")
	require.NoError(t, err)
	assert.Equal(t, "no_trial", resp.Access)
	assert.False(t, resp.HasAccess)
	assert.Nil(t, resp.Subscription)
	assert.Empty(t, resp.Orders)

	env.seedCustomer(t, "acc_1", "cus_1")
	require.NoError(t, env.billing.Upsert(ctx, &model.BillingRecord{
		CustomerID:         "cus_1",
		SubscriptionID:     ptr("sub_1"),
		Status:             "active",
		PaymentMethodBrand: ptr("visa"),
		PaymentMethodLast4: ptr("4242"),
	}, true))
	_, err = env.orders.CreateIfNotExists(ctx, &model.Order{
		CheckoutSessionID: "cs_1",
		CustomerID:        "cus_1",
		AmountTotal:       4999,
		Currency:          "usd",
		PaymentStatus:     "paid",
		Status:            "completed",
	})
	require.NoError(t, err)

	resp, err = env.entitlements.BillingStatus(ctx, "acc_1")
	require.NoError(t, err)
	assert.Equal(t, "active", resp.Access)
	assert.True(t, resp.HasAccess)
	require.NotNil(t, resp.Subscription)
	assert.Equal(t, "active", resp.Subscription.Status)
	assert.Equal(t, "4242", *resp.Subscription.PaymentMethodLast4)
	require.Len(t, resp.Orders, 1)
	assert.Equal(t, "49.99", resp.Orders[0].Amount)
}

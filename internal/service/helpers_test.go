package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"audio-embed-service/internal/client"
	"audio-embed-service/internal/config"
	"audio-embed-service/internal/model"
	"audio-embed-service/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var errProvider = errors.New("stripe unavailable")

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := client.InitDatabase(&config.Database{
		Driver: "sqlite",
		URL:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err)
	require.NoError(t, client.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func ptr[T any](v T) *T { return &v }

type fakeStripe struct {
	mu sync.Mutex

	latest    map[string]*client.Subscription
	subs      map[string][]*client.Subscription
	latestErr error
	listErr   error
	cancelErr error
	deleteErr error
	pauseErr  error

	createDelay time.Duration

	paused          []string
	canceledNow     []string
	canceledAtEnd   []string
	deletedCustomer []string
	createdCustomer []string
	sessions        []*client.CheckoutSessionRequest
	portalReturns   []string
}

func newFakeStripe() *fakeStripe {
	return &fakeStripe{
		latest: map[string]*client.Subscription{},
		subs:   map[string][]*client.Subscription{},
	}
}

func (f *fakeStripe) LatestSubscription(_ context.Context, customerID string) (*client.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return f.latest[customerID], nil
}

func (f *fakeStripe) ListSubscriptions(_ context.Context, customerID string) ([]*client.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.subs[customerID], nil
}

func (f *fakeStripe) PauseCollection(_ context.Context, subscriptionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pauseErr != nil {
		return f.pauseErr
	}
	f.paused = append(f.paused, subscriptionID)
	return nil
}

func (f *fakeStripe) CancelAtPeriodEnd(_ context.Context, subscriptionID string) (*client.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	f.canceledAtEnd = append(f.canceledAtEnd, subscriptionID)
	return &client.Subscription{
		ID:                subscriptionID,
		Status:            "active",
		CancelAtPeriodEnd: true,
		CurrentPeriodEnd:  ptr(int64(1_900_000_000)),
	}, nil
}

func (f *fakeStripe) CancelNow(_ context.Context, subscriptionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.canceledNow = append(f.canceledNow, subscriptionID)
	return nil
}

func (f *fakeStripe) CreateCustomer(_ context.Context, email, accountID string) (string, error) {
	if f.createDelay > 0 {
		time.Sleep(f.createDelay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	id := "cus_" + accountID
	if n := len(f.createdCustomer); n > 0 {
		id = fmt.Sprintf("%s_%d", id, n+1)
	}
	f.createdCustomer = append(f.createdCustomer, id)
	return id, nil
}

func (f *fakeStripe) DeleteCustomer(_ context.Context, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedCustomer = append(f.deletedCustomer, customerID)
	return nil
}

func (f *fakeStripe) CreateCheckoutSession(_ context.Context, req *client.CheckoutSessionRequest) (*client.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, req)
	return &client.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

func (f *fakeStripe) CreatePortalSession(_ context.Context, customerID, returnURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.portalReturns = append(f.portalReturns, returnURL)
	return "https://billing.stripe.com/p/session/" + customerID, nil
}

type fakeCache struct {
	mu          sync.Mutex
	values      map[string]string
	ttls        map[string]time.Duration
	gens        map[string]int64
	invalidated []string
	getErr      error
	// beforeSet runs without the lock held, between a resolve's load and its write
	beforeSet func()
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		values: map[string]string{},
		ttls:   map[string]time.Duration{},
		gens:   map[string]int64{},
	}
}

func (c *fakeCache) Get(_ context.Context, customerID string) (string, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", 0, false, c.getErr
	}
	v, ok := c.values[customerID]
	return v, c.gens[customerID], ok, nil
}

func (c *fakeCache) Set(_ context.Context, customerID, value string, gen int64, ttl time.Duration) (bool, error) {
	if c.beforeSet != nil {
		c.beforeSet()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[customerID] != gen {
		return false, nil
	}
	c.values[customerID] = value
	c.ttls[customerID] = ttl
	return true, nil
}

func (c *fakeCache) Invalidate(_ context.Context, customerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[customerID]++
	delete(c.values, customerID)
	c.invalidated = append(c.invalidated, customerID)
	return nil
}

func (c *fakeCache) value(customerID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[customerID]
	return v, ok
}

type fakeObjectStore struct {
	deleted []string
	err     error
}

func (s *fakeObjectStore) DeleteObjects(_ context.Context, keys []string) ([]string, error) {
	if s.err != nil {
		return keys, s.err
	}
	s.deleted = append(s.deleted, keys...)
	return nil, nil
}

// testEnv bundles real repositories over sqlite with fake providers.
type testEnv struct {
	db           *gorm.DB
	stripe       *fakeStripe
	cache        *fakeCache
	store        *fakeObjectStore
	customers    repository.CustomerRepository
	billing      repository.BillingRepository
	orders       repository.OrderRepository
	accounts     repository.AccountRepository
	collections  repository.CollectionRepository
	billingSvc   BillingService
	entitlements EntitlementService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	env := &testEnv{
		db:          db,
		stripe:      newFakeStripe(),
		cache:       newFakeCache(),
		store:       &fakeObjectStore{},
		customers:   repository.NewCustomerRepository(db),
		billing:     repository.NewBillingRepository(db),
		orders:      repository.NewOrderRepository(db),
		accounts:    repository.NewAccountRepository(db),
		collections: repository.NewCollectionRepository(db),
	}
	env.billingSvc = NewBillingService(db, env.stripe, env.cache, env.billing, env.orders, env.customers)
	env.entitlements = NewEntitlementService(env.customers, env.billing, env.orders, env.cache, 5*time.Minute)
	return env
}

func (e *testEnv) seedCustomer(t *testing.T, accountID, customerID string) {
	t.Helper()
	require.NoError(t, e.db.Create(&model.Account{ID: accountID, Email: accountID + "@example.com"}).Error)
	require.NoError(t, e.customers.Create(context.Background(), e.db, &model.Customer{AccountID: accountID, CustomerID: customerID}))
}

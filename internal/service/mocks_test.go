package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *repository.Repository {
	t.Helper()
	creds := &repository.Credentials{
		Dialect:           repository.DialectSQLite,
		SQLitePath:        filepath.Join(t.TempDir(), "store.db"),
		MigrationsDirPath: "../repository/migrations",
	}
	repo, err := repository.NewRepository(creds)
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations(creds))
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func seedProduct(t *testing.T, repo *repository.Repository, name string, price domain.Money, stock int32) *domain.Product {
	t.Helper()
	ctx := context.Background()
	cat := &domain.Category{Name: "cat-" + uuid.NewString()}
	require.NoError(t, repo.CreateCategory(ctx, cat))
	p := &domain.Product{Name: name, Price: price, Stock: stock, CategoryID: cat.ID}
	require.NoError(t, repo.CreateProduct(ctx, p))
	return p
}

func stockOf(t *testing.T, repo *repository.Repository, productID int64) int32 {
	t.Helper()
	p, err := repo.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

// faultStore wraps a real store and injects failures into its transactions.
type faultStore struct {
	repository.Store

	mu            sync.Mutex
	txCalls       int
	conflictsLeft int
	commitErr     error
	afterLock     func(ctx context.Context, tx repository.Tx)
	beforeOutbox  func()

	// outages injected into reads outside and inside transactions
	unavailableReads int
	unavailableLocks int
	unavailableTxs   int
	afterCartLines   func()
}

func (f *faultStore) takeOutage(counter *int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if *counter > 0 {
		*counter--
		return true
	}
	return false
}

func injectedOutage() error {
	return fmt.Errorf("failed to query: %w", repository.ErrUnavailable)
}

func (f *faultStore) CartLines(ctx context.Context, userID int64) ([]domain.CartLine, error) {
	if f.takeOutage(&f.unavailableReads) {
		return nil, injectedOutage()
	}
	lines, err := f.Store.CartLines(ctx, userID)
	if err == nil && f.afterCartLines != nil {
		f.afterCartLines()
	}
	return lines, err
}

func (f *faultStore) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	if f.takeOutage(&f.unavailableReads) {
		return nil, injectedOutage()
	}
	return f.Store.GetOrder(ctx, orderID)
}

func (f *faultStore) ListOrdersByUserID(ctx context.Context, userID int64) ([]*domain.Order, error) {
	if f.takeOutage(&f.unavailableReads) {
		return nil, injectedOutage()
	}
	return f.Store.ListOrdersByUserID(ctx, userID)
}

func (f *faultStore) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	f.mu.Lock()
	f.txCalls++
	f.mu.Unlock()

	if f.takeOutage(&f.unavailableTxs) {
		return fmt.Errorf("failed to begin tx: %w", repository.ErrUnavailable)
	}
	err := f.Store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return fn(ctx, &faultTx{Tx: tx, store: f})
	})
	if err == nil && f.commitErr != nil {
		return f.commitErr
	}
	return err
}

func (f *faultStore) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.txCalls
}

type faultTx struct {
	repository.Tx
	store *faultStore
}

func (f *faultTx) LockCartLines(ctx context.Context, userID int64) ([]domain.CartLine, error) {
	if f.store.takeOutage(&f.store.unavailableLocks) {
		return nil, injectedOutage()
	}
	lines, err := f.Tx.LockCartLines(ctx, userID)
	if err == nil && f.store.afterLock != nil {
		f.store.afterLock(ctx, f.Tx)
	}
	return lines, err
}

func (f *faultTx) CreateOrder(ctx context.Context, order *domain.Order) error {
	f.store.mu.Lock()
	conflict := f.store.conflictsLeft > 0
	if conflict {
		f.store.conflictsLeft--
	}
	f.store.mu.Unlock()
	if conflict {
		return fmt.Errorf("%w: injected deadlock", repository.ErrRetryable)
	}
	return f.Tx.CreateOrder(ctx, order)
}

func (f *faultTx) InsertOutboxEvent(ctx context.Context, event *repository.OutboxEvent) error {
	if f.store.beforeOutbox != nil {
		f.store.beforeOutbox()
	}
	return f.Tx.InsertOutboxEvent(ctx, event)
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
	attempts []int
}

func (o *recordingObserver) ObserveCheckout(outcome string, attempts int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
	o.attempts = append(o.attempts, attempts)
}

func (o *recordingObserver) last() (string, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.outcomes) == 0 {
		return "", 0
	}
	return o.outcomes[len(o.outcomes)-1], o.attempts[len(o.attempts)-1]
}

// MockCache records invalidations on top of an in-process map.
type MockCache struct {
	mu          sync.Mutex
	views       map[int64]*domain.CartView
	generations map[int64]int64
	deleted     []int64
	GetErr      error
}

func NewMockCache() *MockCache {
	return &MockCache{
		views:       make(map[int64]*domain.CartView),
		generations: make(map[int64]int64),
	}
}

func (m *MockCache) Get(_ context.Context, userID int64) (*domain.CartView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	v, ok := m.views[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return v, nil
}

func (m *MockCache) Generation(_ context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generations[userID], nil
}

func (m *MockCache) Set(_ context.Context, view *domain.CartView, generation int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generations[view.UserID] != generation {
		return cache.ErrStaleGeneration
	}
	m.views[view.UserID] = view
	return nil
}

func (m *MockCache) Cached(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.views[userID]
	return ok
}

func (m *MockCache) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.views, userID)
	m.generations[userID]++
	m.deleted = append(m.deleted, userID)
	return nil
}

func (m *MockCache) Deleted() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.deleted...)
}

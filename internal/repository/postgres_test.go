package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	if testing.Short() {
		t.Skip("postgres container tests skipped in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Dialect:           DialectPostgres,
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
	}

	repo, err := NewRepository(creds)
	require.NoError(t, err)

	err = repo.RunMigrations(creds)
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func TestPostgres_CartAndOrderRoundTrip(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	p := seedProduct(t, repo, "Widget", 400, 10)
	addToCart(t, repo, 1, p.ID, 2)
	item := addToCart(t, repo, 1, p.ID, 1)
	assert.Equal(t, int32(3), item.Quantity)

	var order *domain.Order
	err := repo.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		lines, err := tx.LockCartLines(ctx, 1)
		if err != nil {
			return err
		}
		require.Len(t, lines, 1)

		now := time.Now().UTC()
		items := []domain.OrderItem{{
			ProductID:   lines[0].Product.ID,
			ProductName: lines[0].Product.Name,
			Quantity:    lines[0].Item.Quantity,
			UnitPrice:   lines[0].Product.Price,
		}}
		order = newOrder(t, 1, items, "pg-key", now)
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		if err := tx.DecrementStock(ctx, p.ID, 3, now); err != nil {
			return err
		}
		_, err = tx.DeleteCartItem(ctx, 1, lines[0].Item.ID)
		return err
	})
	require.NoError(t, err)

	got, err := repo.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(1200), got.TotalAmount)
	assert.NoError(t, got.Verify())

	prod, err := repo.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(7), prod.Stock)

	lines, err := repo.CartLines(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestPostgres_OrderItemsAreAppendOnly(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	p := seedProduct(t, repo, "Widget", 400, 10)
	order := newOrder(t, 1, []domain.OrderItem{{ProductID: p.ID, ProductName: p.Name, Quantity: 1, UnitPrice: 400}}, "", time.Now().UTC())
	require.NoError(t, repo.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.CreateOrder(ctx, order)
	}))

	_, err := repo.db.ExecContext(context.Background(), `UPDATE order_items SET unit_price_cents = 1 WHERE order_id = $1`, order.ID)
	assert.Error(t, err)
	_, err = repo.db.ExecContext(context.Background(), `DELETE FROM order_items WHERE order_id = $1`, order.ID)
	assert.Error(t, err)
}

func TestPostgres_ConcurrentDecrementNeverOversells(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	p := seedProduct(t, repo, "Last one", 1000, 1)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := repo.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
				return tx.DecrementStock(ctx, p.ID, 1, time.Now().UTC())
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, ErrStockGuard) || errors.Is(err, ErrRetryable), "unexpected error: %v", err)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	prod, err := repo.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(0), prod.Stock)
}

func TestPostgres_LockCartLinesBlocksConcurrentWriter(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	p := seedProduct(t, repo, "Widget", 400, 10)
	item := addToCart(t, repo, 1, p.ID, 2)

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- repo.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
			if _, err := tx.LockCartLines(ctx, 1); err != nil {
				return err
			}
			close(locked)
			<-release
			_, err := tx.DeleteCartItem(ctx, 1, item.ID)
			return err
		})
	}()
	<-locked

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := repo.InTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.SetCartItemQuantity(ctx, 1, item.ID, 9, time.Now().UTC())
		return err
	})
	assert.Error(t, err, "writer must wait for the row lock")

	close(release)
	require.NoError(t, <-done)
}

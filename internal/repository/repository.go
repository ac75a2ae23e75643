package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/storefront/domain"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrOrderNotFound    = errors.New("order not found")

	// ErrStockGuard is returned when a conditional stock decrement matched no row.
	ErrStockGuard = errors.New("stock decrement rejected")

	// ErrRetryable marks serialization failures, deadlocks and busy locks.
	// The whole transaction may be re-run.
	ErrRetryable = errors.New("transaction conflict")

	ErrUnavailable  = errors.New("store unavailable")
	ErrCommitFailed = errors.New("commit failed")
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

type Credentials struct {
	Dialect           Dialect
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	SQLitePath        string
	MigrationsDirPath string
}

// OutboxEvent is a pending integration event written in the same
// transaction as the state change it describes.
type OutboxEvent struct {
	ID          int64
	EventID     string
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// Tx is the set of operations available inside one store transaction.
type Tx interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)

	GetCartItem(ctx context.Context, userID, itemID int64) (*domain.CartItem, error)
	GetCartItemByProduct(ctx context.Context, userID, productID int64) (*domain.CartItem, error)
	// LockCartLines reads the user's cart joined with products, locking both
	// sides in product id order where the dialect supports row locks.
	LockCartLines(ctx context.Context, userID int64) ([]domain.CartLine, error)
	AddCartQuantity(ctx context.Context, userID, productID int64, qty int32, now time.Time) (*domain.CartItem, error)
	SetCartItemQuantity(ctx context.Context, userID, itemID int64, qty int32, now time.Time) (*domain.CartItem, error)
	DeleteCartItem(ctx context.Context, userID, itemID int64) (bool, error)

	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Order, error)
	DecrementStock(ctx context.Context, productID int64, qty int32, now time.Time) error

	InsertOutboxEvent(ctx context.Context, event *OutboxEvent) error
}

// Store is the transactional persistence boundary.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	CartLines(ctx context.Context, userID int64) ([]domain.CartLine, error)
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID int64) ([]*domain.Order, error)
	Ping(ctx context.Context) error
}

type CatalogStore interface {
	CreateCategory(ctx context.Context, c *domain.Category) error
	CreateProduct(ctx context.Context, p *domain.Product) error
	SetProductPrice(ctx context.Context, productID int64, price domain.Money) error
	SetProductStock(ctx context.Context, productID int64, stock int32) error
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

type OutboxStore interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

type RepoInterface interface {
	Store
	CatalogStore
	OutboxStore
	Close() error
	RunMigrations(*Credentials) error
}

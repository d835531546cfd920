package port

import (
	"context"

	"github.com/rl1809/salespoint-inventory/internal/core/domain"
)

type InventoryRepository interface {
	// Save inserts a new item or updates an existing one with version check
	Save(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error)

	// FindByID returns domain.ErrNotFound when the item does not exist
	FindByID(ctx context.Context, id domain.InventoryItemIdentifier) (domain.InventoryItem, error)

	ExistsByID(ctx context.Context, id domain.InventoryItemIdentifier) (bool, error)

	DeleteByID(ctx context.Context, id domain.InventoryItemIdentifier) error

	// FindByProductIdentifier resolves all items of a product into a StockResult
	FindByProductIdentifier(ctx context.Context, productID domain.ProductIdentifier) (domain.StockResult, error)

	// FindItemsOutOfStock returns every item whose quantity is zero or negative
	FindItemsOutOfStock(ctx context.Context) ([]domain.InventoryItem, error)

	FindAll(ctx context.Context) ([]domain.InventoryItem, error)
}

type OrderRepository interface {
	Save(ctx context.Context, order domain.Order) error

	// FindByID returns domain.ErrNotFound when the order does not exist
	FindByID(ctx context.Context, id domain.OrderIdentifier) (domain.Order, error)
}

type ProductRepository interface {
	Save(ctx context.Context, product domain.Product) error

	FindByID(ctx context.Context, id domain.ProductIdentifier) (domain.Product, error)
}

// Transactor runs fn inside one transaction; repositories called with the
// context passed to fn take part in it. A non-nil error from fn rolls back.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

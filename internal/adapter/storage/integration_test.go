package storage_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rl1809/salespoint-inventory/internal/adapter/storage"
	"github.com/rl1809/salespoint-inventory/internal/core/domain"
	"github.com/rl1809/salespoint-inventory/internal/core/service"
)

type testEnv struct {
	db        *gorm.DB
	inventory *storage.InventoryRepository
	orders    *storage.OrderRepository
	products  *storage.ProductRepository
	tx        *storage.GormTransactor
	cleanup   func()
}

// databases returns every database reachable through MYSQL_DSN / POSTGRES_DSN.
func databases(t *testing.T) map[string]*testEnv {
	envs := make(map[string]*testEnv)
	for driver, key := range map[string]string{
		storage.DriverMySQL:    "MYSQL_DSN",
		storage.DriverPostgres: "POSTGRES_DSN",
	} {
		dsn := os.Getenv(key)
		if dsn == "" {
			continue
		}
		db, err := storage.OpenDatabase(storage.DatabaseOptions{Driver: driver, DSN: dsn, MaxOpenConns: 20}, zap.NewNop())
		if err != nil {
			t.Logf("%s not available: %v", driver, err)
			continue
		}
		if err := storage.Migrate(db); err != nil {
			t.Fatalf("migrate %s: %v", driver, err)
		}
		sqlDB, _ := db.DB()
		envs[driver] = &testEnv{
			db:        db,
			inventory: storage.NewInventoryRepository(db),
			orders:    storage.NewOrderRepository(db),
			products:  storage.NewProductRepository(db),
			tx:        storage.NewGormTransactor(db),
			cleanup:   func() { sqlDB.Close() },
		}
	}
	if len(envs) == 0 {
		t.Skip("no database available: set MYSQL_DSN or POSTGRES_DSN")
	}
	return envs
}

func newProduct(t *testing.T, env *testEnv) domain.Product {
	t.Helper()
	p := domain.Product{
		ID:     domain.ProductIdentifier(uuid.NewString()),
		Name:   "integration product",
		Price:  domain.NewMoney(decimal.RequireFromString("19.99"), domain.EUR),
		Metric: domain.MetricUnit,
	}
	if err := env.products.Save(context.Background(), p); err != nil {
		t.Fatalf("save product: %v", err)
	}
	return p
}

func TestIntegration_UniquenessBackstop(t *testing.T) {
	for driver, env := range databases(t) {
		t.Run(driver, func(t *testing.T) {
			defer env.cleanup()
			ctx := context.Background()
			product := newProduct(t, env)

			if _, err := env.inventory.Save(ctx, domain.NewUniqueInventoryItem(product.ID, domain.Of(1))); err != nil {
				t.Fatalf("first unique item: %v", err)
			}
			if _, err := env.inventory.Save(ctx, domain.NewUniqueInventoryItem(product.ID, domain.Of(1))); !errors.Is(err, domain.ErrUniquenessConflict) {
				t.Errorf("expected ErrUniquenessConflict for second unique item, got: %v", err)
			}
			if _, err := env.inventory.Save(ctx, domain.NewBatchInventoryItem(product.ID, domain.Of(1))); !errors.Is(err, domain.ErrUniquenessConflict) {
				t.Errorf("expected ErrUniquenessConflict for batch next to unique, got: %v", err)
			}

			batches := newProduct(t, env)
			for i := 0; i < 2; i++ {
				if _, err := env.inventory.Save(ctx, domain.NewBatchInventoryItem(batches.ID, domain.Of(5))); err != nil {
					t.Fatalf("batch item %d: %v", i, err)
				}
			}
			stock, err := env.inventory.FindByProductIdentifier(ctx, batches.ID)
			if err != nil {
				t.Fatalf("find stock: %v", err)
			}
			total, _ := stock.TotalQuantity()
			if stock.Kind() != domain.StockMultiple || !total.Equal(domain.Of(10)) {
				t.Errorf("expected 10 units in batches, got %s of %s", total, stock.Kind())
			}
		})
	}
}

func TestIntegration_DeleteReleasesStockKind(t *testing.T) {
	for driver, env := range databases(t) {
		t.Run(driver, func(t *testing.T) {
			defer env.cleanup()
			ctx := context.Background()
			product := newProduct(t, env)

			batch, err := env.inventory.Save(ctx, domain.NewBatchInventoryItem(product.ID, domain.Of(1)))
			if err != nil {
				t.Fatalf("save batch: %v", err)
			}
			if err := env.inventory.DeleteByID(ctx, batch.ID); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := env.inventory.Save(ctx, domain.NewUniqueInventoryItem(product.ID, domain.Of(1))); err != nil {
				t.Errorf("expected unique item after last batch was deleted, got: %v", err)
			}
			if err := env.inventory.DeleteByID(ctx, batch.ID); !errors.Is(err, domain.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got: %v", err)
			}
		})
	}
}

func TestIntegration_OrderRoundTrip(t *testing.T) {
	for driver, env := range databases(t) {
		t.Run(driver, func(t *testing.T) {
			defer env.cleanup()
			ctx := context.Background()
			product := newProduct(t, env)

			line := domain.NewOrderLine(product.ID, domain.Of(2))
			line.ProductName = product.Name
			line.Price = product.Price
			order := domain.NewOrder(line)
			if err := env.orders.Save(ctx, order); err != nil {
				t.Fatalf("save order: %v", err)
			}

			got, err := env.orders.FindByID(ctx, order.ID)
			if err != nil {
				t.Fatalf("find order: %v", err)
			}
			if len(got.Lines) != 1 || !got.Lines[0].Price.Equal(product.Price) || !got.Lines[0].Quantity.Equal(domain.Of(2)) {
				t.Errorf("unexpected lines: %+v", got.Lines)
			}

			if _, err := env.orders.FindByID(ctx, domain.NewOrderIdentifier()); !errors.Is(err, domain.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got: %v", err)
			}
		})
	}
}

func TestIntegration_ConcurrentCompletionsDoNotOversell(t *testing.T) {
	for driver, env := range databases(t) {
		t.Run(driver, func(t *testing.T) {
			defer env.cleanup()
			ctx := context.Background()
			product := newProduct(t, env)
			initialStock := 10
			totalOrders := 20

			item, err := env.inventory.Save(ctx, domain.NewUniqueInventoryItem(product.ID, domain.Of(int64(initialStock))))
			if err != nil {
				t.Fatalf("save item: %v", err)
			}

			reconciler := service.NewReconciler(env.inventory, nil, nil)
			svc := service.NewOrderService(env.orders, env.products, env.tx, reconciler, nil)

			ids := make([]domain.OrderIdentifier, 0, totalOrders)
			for i := 0; i < totalOrders; i++ {
				o, err := svc.Create(ctx, service.NewOrder{Lines: []service.NewOrderLine{{ProductID: string(product.ID), Amount: decimal.NewFromInt(1)}}})
				if err != nil {
					t.Fatalf("create order: %v", err)
				}
				if _, err := svc.Pay(ctx, o.ID); err != nil {
					t.Fatalf("pay order: %v", err)
				}
				ids = append(ids, o.ID)
			}

			var successCount atomic.Int32
			var wg sync.WaitGroup
			for _, id := range ids {
				wg.Add(1)
				go func(id domain.OrderIdentifier) {
					defer wg.Done()
					if _, _, err := svc.Complete(ctx, id); err == nil {
						successCount.Add(1)
					}
				}(id)
			}
			wg.Wait()

			if successCount.Load() != int32(initialStock) {
				t.Errorf("expected %d completions, got %d", initialStock, successCount.Load())
			}
			got, err := env.inventory.FindByID(ctx, item.ID)
			if err != nil {
				t.Fatalf("find item: %v", err)
			}
			if !got.Quantity.Amount().IsZero() {
				t.Errorf("expected stock 0, got %s", got.Quantity)
			}
		})
	}
}

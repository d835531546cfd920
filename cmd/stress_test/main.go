package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/salespoint-inventory/internal/adapter/storage"
	"github.com/rl1809/salespoint-inventory/internal/config"
	"github.com/rl1809/salespoint-inventory/internal/core/domain"
	"github.com/rl1809/salespoint-inventory/internal/core/service"
	"github.com/rl1809/salespoint-inventory/internal/port"
)

const (
	initialStock  = 20
	totalRequests = 50
)

// Completes many paid orders against one unique stock record at the same
// time. Runs in memory by default; set STRESS_DB_DRIVER and DATABASE_DSN to
// run against MySQL or Postgres.
func main() {
	ctx := context.Background()
	logger := zap.NewNop()

	var (
		inventory port.InventoryRepository
		orders    port.OrderRepository
		products  port.ProductRepository
		tx        port.Transactor
	)
	driver := config.GetEnv("STRESS_DB_DRIVER", storage.DriverMemory)
	if driver == storage.DriverMemory {
		store := storage.NewMemoryStore(0)
		inventory, orders, products, tx = store.Inventory(), store.Orders(), store.Products(), store
	} else {
		db, err := storage.OpenDatabase(storage.DatabaseOptions{
			Driver:       driver,
			DSN:          config.GetEnv("DATABASE_DSN", ""),
			MaxOpenConns: 50,
			MaxIdleConns: 25,
		}, logger)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		if err := storage.Migrate(db); err != nil {
			log.Fatalf("failed to migrate: %v", err)
		}
		inventory = storage.NewInventoryRepository(db)
		orders = storage.NewOrderRepository(db)
		products = storage.NewProductRepository(db)
		tx = storage.NewGormTransactor(db)
	}

	catalogService := service.NewCatalogService(products, logger)
	inventoryService := service.NewInventoryService(inventory, products, tx, logger, nil)
	orderService := service.NewOrderService(orders, products, tx, service.NewReconciler(inventory, logger, nil), logger)

	product, err := catalogService.AddProduct(ctx, service.NewProduct{Name: "stress item", Price: "EUR 9.99"})
	if err != nil {
		log.Fatalf("failed to add product: %v", err)
	}
	item, err := inventoryService.AddItem(ctx, service.NewInventoryItem{
		ProductID: string(product.ID),
		Amount:    decimal.NewFromInt(initialStock),
		Unique:    true,
	})
	if err != nil {
		log.Fatalf("failed to add stock: %v", err)
	}

	// Prepare paid orders up front so only completion runs concurrently
	ids := make([]domain.OrderIdentifier, 0, totalRequests)
	for i := 0; i < totalRequests; i++ {
		order, err := orderService.Create(ctx, service.NewOrder{Lines: []service.NewOrderLine{
			{ProductID: string(product.ID), Amount: decimal.NewFromInt(1)},
		}})
		if err != nil {
			log.Fatalf("failed to create order: %v", err)
		}
		if _, err := orderService.Pay(ctx, order.ID); err != nil {
			log.Fatalf("failed to pay order: %v", err)
		}
		ids = append(ids, order.ID)
	}

	// Counters
	var successCount atomic.Int32
	var rejectedCount atomic.Int32
	var errorCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for _, id := range ids {
		wg.Add(1)
		go func(id domain.OrderIdentifier) {
			defer wg.Done()

			_, _, err := orderService.Complete(ctx, id)
			var failure *domain.CompletionFailure
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.As(err, &failure):
				rejectedCount.Add(1)
			default:
				errorCount.Add(1)
				log.Printf("order %s: %v", id, err)
			}
		}(id)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	rejected := rejectedCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Storage:          %s\n", driver)
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Completed:        %d\n", success)
	fmt.Printf("Rejected:         %d\n", rejected)
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == initialStock && rejected == totalRequests-initialStock {
		fmt.Printf("PASS: Exactly %d orders completed, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d completed/%d rejected, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, rejected)
	}

	final, err := inventoryService.Item(ctx, item.ID)
	if err != nil {
		log.Fatalf("failed to read final stock: %v", err)
	}
	fmt.Printf("Final Stock: %s\n", final.Quantity)

	if final.Quantity.Equal(domain.None) {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %s\n", final.Quantity)
	}
}

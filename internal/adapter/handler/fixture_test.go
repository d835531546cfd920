package handler

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/rl1809/salespoint-inventory/internal/adapter/storage"
	"github.com/rl1809/salespoint-inventory/internal/core/domain"
	"github.com/rl1809/salespoint-inventory/internal/core/service"
	"github.com/rl1809/salespoint-inventory/internal/platform/metrics"
)

type fixture struct {
	store     *storage.MemoryStore
	catalog   *service.CatalogService
	inventory *service.InventoryService
	orders    *service.OrderService
	registry  *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemoryStore(time.Hour)
	reg := prometheus.NewRegistry()
	m := metrics.NewInventoryMetrics(reg)
	reconciler := service.NewReconciler(store.Inventory(), nil, m)
	return &fixture{
		store:     store,
		catalog:   service.NewCatalogService(store.Products(), nil),
		inventory: service.NewInventoryService(store.Inventory(), store.Products(), store, nil, m),
		orders:    service.NewOrderService(store.Orders(), store.Products(), store, reconciler, nil),
		registry:  reg,
	}
}

// paidOrder seeds a product with a unique stock of stock units and a paid
// order for amount of them.
func (f *fixture) paidOrder(t *testing.T, stock, amount int64) (domain.Product, domain.InventoryItem, domain.Order) {
	t.Helper()
	ctx := context.Background()

	p, err := f.catalog.AddProduct(ctx, service.NewProduct{Name: "Lamp", Price: "EUR 25.00"})
	if err != nil {
		t.Fatalf("add product: %v", err)
	}
	item, err := f.inventory.AddItem(ctx, service.NewInventoryItem{ProductID: string(p.ID), Amount: decimal.NewFromInt(stock), Unique: true})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	o, err := f.orders.Create(ctx, service.NewOrder{Lines: []service.NewOrderLine{{ProductID: string(p.ID), Amount: decimal.NewFromInt(amount)}}})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	o, err = f.orders.Pay(ctx, o.ID)
	if err != nil {
		t.Fatalf("pay order: %v", err)
	}
	return p, item, o
}

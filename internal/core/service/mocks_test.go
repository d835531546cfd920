package service

import (
	"context"
	"sync"

	"github.com/rl1809/salespoint-inventory/internal/core/domain"
)

// Mock InventoryRepository
type mockInventoryRepo struct {
	mu      sync.Mutex
	items   []domain.InventoryItem
	saves   int
	lookups int
	findErr error
	saveErr error
}

func newMockInventoryRepo(items ...domain.InventoryItem) *mockInventoryRepo {
	return &mockInventoryRepo{items: items}
}

func (m *mockInventoryRepo) Save(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveErr != nil {
		return domain.InventoryItem{}, m.saveErr
	}
	m.saves++
	for i := range m.items {
		if m.items[i].ID == item.ID {
			item.Version = m.items[i].Version + 1
			m.items[i] = item
			return item, nil
		}
	}
	m.items = append(m.items, item)
	return item, nil
}

func (m *mockInventoryRepo) FindByID(ctx context.Context, id domain.InventoryItemIdentifier) (domain.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, it := range m.items {
		if it.ID == id {
			return it, nil
		}
	}
	return domain.InventoryItem{}, domain.ErrNotFound
}

func (m *mockInventoryRepo) ExistsByID(ctx context.Context, id domain.InventoryItemIdentifier) (bool, error) {
	_, err := m.FindByID(ctx, id)
	return err == nil, nil
}

func (m *mockInventoryRepo) DeleteByID(ctx context.Context, id domain.InventoryItemIdentifier) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, it := range m.items {
		if it.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockInventoryRepo) FindByProductIdentifier(ctx context.Context, productID domain.ProductIdentifier) (domain.StockResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lookups++
	if m.findErr != nil {
		return domain.StockResult{}, m.findErr
	}
	var found []domain.InventoryItem
	for _, it := range m.items {
		if it.ProductID == productID {
			found = append(found, it)
		}
	}
	return domain.ResolveStock(found)
}

func (m *mockInventoryRepo) FindItemsOutOfStock(ctx context.Context) ([]domain.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.InventoryItem
	for _, it := range m.items {
		if it.IsOutOfStock() {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *mockInventoryRepo) FindAll(ctx context.Context) ([]domain.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.InventoryItem(nil), m.items...), nil
}

func (m *mockInventoryRepo) quantityOf(id domain.InventoryItemIdentifier) domain.Quantity {
	it, err := m.FindByID(context.Background(), id)
	if err != nil {
		return domain.Quantity{}
	}
	return it.Quantity
}

func (m *mockInventoryRepo) snapshot() []domain.InventoryItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.InventoryItem(nil), m.items...)
}

func (m *mockInventoryRepo) restore(items []domain.InventoryItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = items
}

// Mock OrderRepository
type mockOrderRepo struct {
	mu     sync.Mutex
	orders map[domain.OrderIdentifier]domain.Order
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[domain.OrderIdentifier]domain.Order)}
}

func (m *mockOrderRepo) Save(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderRepo) FindByID(ctx context.Context, id domain.OrderIdentifier) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) snapshot() map[domain.OrderIdentifier]domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[domain.OrderIdentifier]domain.Order, len(m.orders))
	for k, v := range m.orders {
		cp[k] = v
	}
	return cp
}

func (m *mockOrderRepo) restore(orders map[domain.OrderIdentifier]domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = orders
}

// Mock ProductRepository
type mockProductRepo struct {
	mu       sync.Mutex
	products map[domain.ProductIdentifier]domain.Product
}

func newMockProductRepo(products ...domain.Product) *mockProductRepo {
	m := &mockProductRepo{products: make(map[domain.ProductIdentifier]domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockProductRepo) Save(ctx context.Context, product domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepo) FindByID(ctx context.Context, id domain.ProductIdentifier) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	return p, nil
}

// Mock Transactor, restores repository state when fn fails
type mockTx struct {
	mu        sync.Mutex
	inventory *mockInventoryRepo
	orders    *mockOrderRepo
	rollbacks int
}

func (m *mockTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var items []domain.InventoryItem
	if m.inventory != nil {
		items = m.inventory.snapshot()
	}
	var orders map[domain.OrderIdentifier]domain.Order
	if m.orders != nil {
		orders = m.orders.snapshot()
	}

	if err := fn(ctx); err != nil {
		m.rollbacks++
		if m.inventory != nil {
			m.inventory.restore(items)
		}
		if m.orders != nil {
			m.orders.restore(orders)
		}
		return err
	}
	return nil
}

// Mock IdempotencyStore
type mockCache struct {
	mu             sync.Mutex
	idempotencySet map[string]bool
	confirmed      []string
	released       []string
}

func newMockCache() *mockCache {
	return &mockCache{idempotencySet: make(map[string]bool)}
}

func (m *mockCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCache) ConfirmIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmed = append(m.confirmed, key)
	return nil
}

func (m *mockCache) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	m.released = append(m.released, key)
	return nil
}

// Mock ReportPublisher
type mockPublisher struct {
	mu      sync.Mutex
	reports []domain.CompletionReport
	err     error
}

func (m *mockPublisher) PublishReport(ctx context.Context, report domain.CompletionReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.reports = append(m.reports, report)
	return nil
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reports)
}

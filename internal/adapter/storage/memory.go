package storage

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rl1809/salespoint-inventory/internal/core/domain"
)

type memoryTxKey struct{}

type storedItem struct {
	item domain.InventoryItem
	seq  uint64
}

// MemoryStore keeps products, inventory, orders and idempotency keys in
// process. Transactions are serialized and rolled back from a snapshot.
type MemoryStore struct {
	txMu sync.Mutex

	mu          sync.RWMutex
	seq         uint64
	products    map[domain.ProductIdentifier]domain.Product
	items       map[domain.InventoryItemIdentifier]storedItem
	orders      map[domain.OrderIdentifier]domain.Order
	idempotency map[string]time.Time
	ttl         time.Duration
	lease       time.Duration
}

func NewMemoryStore(idempotencyTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		products:    make(map[domain.ProductIdentifier]domain.Product),
		items:       make(map[domain.InventoryItemIdentifier]storedItem),
		orders:      make(map[domain.OrderIdentifier]domain.Order),
		idempotency: make(map[string]time.Time),
		ttl:         idempotencyTTL,
		lease:       idempotencyLease,
	}
}

type memorySnapshot struct {
	products map[domain.ProductIdentifier]domain.Product
	items    map[domain.InventoryItemIdentifier]storedItem
	orders   map[domain.OrderIdentifier]domain.Order
}

func (s *MemoryStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memoryTxKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snap := memorySnapshot{
		products: cloneMap(s.products),
		items:    cloneMap(s.items),
		orders:   cloneMap(s.orders),
	}
	s.mu.RUnlock()

	// Restores on error and on panic.
	committed := false
	defer func() {
		if committed {
			return
		}
		s.mu.Lock()
		s.products, s.items, s.orders = snap.products, snap.items, snap.orders
		s.mu.Unlock()
	}()

	if err := fn(context.WithValue(ctx, memoryTxKey{}, struct{}{})); err != nil {
		return err
	}
	committed = true
	return nil
}

// read runs fn under the read lock. Outside a transaction it first waits for
// any open transaction, so uncommitted writes are never observed.
func (s *MemoryStore) read(ctx context.Context, fn func()) {
	if ctx.Value(memoryTxKey{}) == nil {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
}

// write runs fn under the transaction lock unless ctx already holds it.
func (s *MemoryStore) write(ctx context.Context, fn func() error) error {
	if ctx.Value(memoryTxKey{}) == nil {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	cp := make(map[K]V, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func (s *MemoryStore) Inventory() *MemoryInventoryRepository { return &MemoryInventoryRepository{s} }
func (s *MemoryStore) Orders() *MemoryOrderRepository        { return &MemoryOrderRepository{s} }
func (s *MemoryStore) Products() *MemoryProductRepository    { return &MemoryProductRepository{s} }

type MemoryInventoryRepository struct {
	s *MemoryStore
}

func (r *MemoryInventoryRepository) Save(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error) {
	err := r.s.write(ctx, func() error {
		if item.Version == 0 {
			return r.insertLocked(&item)
		}
		stored, ok := r.s.items[item.ID]
		if !ok || stored.item.Version != item.Version {
			return fmt.Errorf("update inventory item %s at version %d: %w", item.ID, item.Version, domain.ErrConcurrentUpdate)
		}
		item.Version++
		item.UpdatedAt = time.Now().UTC()
		stored.item = item
		r.s.items[item.ID] = stored
		return nil
	})
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return item, nil
}

func (r *MemoryInventoryRepository) insertLocked(item *domain.InventoryItem) error {
	if _, ok := r.s.items[item.ID]; ok {
		return fmt.Errorf("insert inventory item %s: duplicate id", item.ID)
	}
	for _, st := range r.s.items {
		if st.item.ProductID != item.ProductID {
			continue
		}
		if item.Unique || st.item.Unique {
			return fmt.Errorf("%w: product %s already has %s item %s",
				domain.ErrUniquenessConflict, item.ProductID, st.item.Kind(), st.item.ID)
		}
	}
	r.s.seq++
	item.Version = 1
	r.s.items[item.ID] = storedItem{item: *item, seq: r.s.seq}
	return nil
}

func (r *MemoryInventoryRepository) FindByID(ctx context.Context, id domain.InventoryItemIdentifier) (domain.InventoryItem, error) {
	var (
		st storedItem
		ok bool
	)
	r.s.read(ctx, func() { st, ok = r.s.items[id] })
	if !ok {
		return domain.InventoryItem{}, fmt.Errorf("find inventory item %s: %w", id, domain.ErrNotFound)
	}
	return st.item, nil
}

func (r *MemoryInventoryRepository) ExistsByID(ctx context.Context, id domain.InventoryItemIdentifier) (bool, error) {
	var ok bool
	r.s.read(ctx, func() { _, ok = r.s.items[id] })
	return ok, nil
}

func (r *MemoryInventoryRepository) DeleteByID(ctx context.Context, id domain.InventoryItemIdentifier) error {
	return r.s.write(ctx, func() error {
		if _, ok := r.s.items[id]; !ok {
			return fmt.Errorf("delete inventory item %s: %w", id, domain.ErrNotFound)
		}
		delete(r.s.items, id)
		return nil
	})
}

func (r *MemoryInventoryRepository) FindByProductIdentifier(ctx context.Context, productID domain.ProductIdentifier) (domain.StockResult, error) {
	return domain.ResolveStock(r.filter(ctx, func(it domain.InventoryItem) bool {
		return it.ProductID == productID
	}))
}

func (r *MemoryInventoryRepository) FindItemsOutOfStock(ctx context.Context) ([]domain.InventoryItem, error) {
	return r.filter(ctx, domain.InventoryItem.IsOutOfStock), nil
}

func (r *MemoryInventoryRepository) FindAll(ctx context.Context) ([]domain.InventoryItem, error) {
	return r.filter(ctx, func(domain.InventoryItem) bool { return true }), nil
}

// filter returns matching items in insertion order.
func (r *MemoryInventoryRepository) filter(ctx context.Context, keep func(domain.InventoryItem) bool) []domain.InventoryItem {
	matched := make([]storedItem, 0)
	r.s.read(ctx, func() {
		for _, st := range r.s.items {
			if keep(st.item) {
				matched = append(matched, st)
			}
		}
	})
	slices.SortFunc(matched, func(a, b storedItem) int {
		return cmp.Compare(a.seq, b.seq)
	})

	items := make([]domain.InventoryItem, 0, len(matched))
	for _, st := range matched {
		items = append(items, st.item)
	}
	return items
}

type MemoryOrderRepository struct {
	s *MemoryStore
}

func (r *MemoryOrderRepository) Save(ctx context.Context, order domain.Order) error {
	return r.s.write(ctx, func() error {
		order.Lines = slices.Clone(order.Lines)
		r.s.orders[order.ID] = order
		return nil
	})
}

func (r *MemoryOrderRepository) FindByID(ctx context.Context, id domain.OrderIdentifier) (domain.Order, error) {
	var (
		o  domain.Order
		ok bool
	)
	r.s.read(ctx, func() { o, ok = r.s.orders[id] })
	if !ok {
		return domain.Order{}, fmt.Errorf("find order %s: %w", id, domain.ErrNotFound)
	}
	o.Lines = slices.Clone(o.Lines)
	return o, nil
}

type MemoryProductRepository struct {
	s *MemoryStore
}

func (r *MemoryProductRepository) Save(ctx context.Context, product domain.Product) error {
	return r.s.write(ctx, func() error {
		r.s.products[product.ID] = product
		return nil
	})
}

func (r *MemoryProductRepository) FindByID(ctx context.Context, id domain.ProductIdentifier) (domain.Product, error) {
	var (
		p  domain.Product
		ok bool
	)
	r.s.read(ctx, func() { p, ok = r.s.products[id] })
	if !ok {
		return domain.Product{}, fmt.Errorf("find product %s: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

func (s *MemoryStore) SetIdempotency(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if exp, ok := s.idempotency[key]; ok && (exp.IsZero() || now.Before(exp)) {
		return false, nil
	}
	lease := s.lease
	if s.ttl > 0 {
		lease = min(lease, s.ttl)
	}
	s.idempotency[key] = now.Add(lease)
	return true, nil
}

func (s *MemoryStore) ConfirmIdempotency(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exp time.Time // zero never expires
	if s.ttl > 0 {
		exp = time.Now().Add(s.ttl)
	}
	s.idempotency[key] = exp
	return nil
}

func (s *MemoryStore) ReleaseIdempotency(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.idempotency, key)
	return nil
}

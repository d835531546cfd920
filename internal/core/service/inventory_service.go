package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/salespoint-inventory/internal/core/domain"
	"github.com/rl1809/salespoint-inventory/internal/platform/metrics"
	"github.com/rl1809/salespoint-inventory/internal/port"
)

type NewInventoryItem struct {
	ProductID string          `json:"product_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Metric    string          `json:"metric" validate:"omitempty,oneof=unit kg l m m2 m3"`
	Unique    bool            `json:"unique"`
}

type InventoryService struct {
	inventory port.InventoryRepository
	products  port.ProductRepository
	tx        port.Transactor
	logger    *zap.Logger
	metrics   *metrics.InventoryMetrics
}

func NewInventoryService(inventory port.InventoryRepository, products port.ProductRepository, tx port.Transactor, logger *zap.Logger, m *metrics.InventoryMetrics) *InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryService{
		inventory: inventory,
		products:  products,
		tx:        tx,
		logger:    logger,
		metrics:   m,
	}
}

// AddItem stores a new inventory item for an existing product. A unique item
// must be the only item of its product, and a batch item cannot join a
// product that already has a unique one.
func (s *InventoryService) AddItem(ctx context.Context, in NewInventoryItem) (domain.InventoryItem, error) {
	if err := validateInput(in); err != nil {
		return domain.InventoryItem{}, err
	}

	productID := domain.ProductIdentifier(in.ProductID)
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return domain.InventoryItem{}, fmt.Errorf("product %s: %w", productID, err)
	}

	metric := product.Metric
	if in.Metric != "" {
		metric = domain.Metric(in.Metric)
	}
	if metric != product.Metric {
		return domain.InventoryItem{}, fmt.Errorf("%w: product %s is measured in %s, not %s",
			domain.ErrIncompatibleMetric, productID, product.Metric, metric)
	}

	quantity := domain.NewQuantity(in.Amount, metric)
	item := domain.NewBatchInventoryItem(productID, quantity)
	if in.Unique {
		item = domain.NewUniqueInventoryItem(productID, quantity)
	}

	var saved domain.InventoryItem
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		stock, err := s.inventory.FindByProductIdentifier(ctx, productID)
		if err != nil {
			return err
		}
		if conflictsWith(item, stock) {
			return &domain.UniquenessConflictError{Item: item, Existing: stock.Items()}
		}
		saved, err = s.inventory.Save(ctx, item)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrUniquenessConflict) {
			s.metrics.IncUniquenessConflicts()
			var conflict *domain.UniquenessConflictError
			if !errors.As(err, &conflict) {
				err = &domain.UniquenessConflictError{Item: item}
			}
			s.logger.Warn("inventory item rejected", zap.Error(err))
		}
		return domain.InventoryItem{}, err
	}

	s.logger.Info("inventory item added",
		zap.String("item_id", string(saved.ID)),
		zap.String("product_id", string(saved.ProductID)),
		zap.Bool("unique", saved.Unique),
		zap.Stringer("quantity", saved.Quantity),
	)
	return saved, nil
}

func conflictsWith(item domain.InventoryItem, stock domain.StockResult) bool {
	if item.Unique {
		return !stock.IsEmpty()
	}
	return stock.Kind() == domain.StockUnique
}

func (s *InventoryService) Item(ctx context.Context, id domain.InventoryItemIdentifier) (domain.InventoryItem, error) {
	return s.inventory.FindByID(ctx, id)
}

func (s *InventoryService) Exists(ctx context.Context, id domain.InventoryItemIdentifier) (bool, error) {
	return s.inventory.ExistsByID(ctx, id)
}

func (s *InventoryService) Items(ctx context.Context) ([]domain.InventoryItem, error) {
	return s.inventory.FindAll(ctx)
}

func (s *InventoryService) Delete(ctx context.Context, id domain.InventoryItemIdentifier) error {
	if err := s.inventory.DeleteByID(ctx, id); err != nil {
		return err
	}
	s.logger.Info("inventory item deleted", zap.String("item_id", string(id)))
	return nil
}

func (s *InventoryService) StockFor(ctx context.Context, productID domain.ProductIdentifier) (domain.StockResult, error) {
	return s.inventory.FindByProductIdentifier(ctx, productID)
}

func (s *InventoryService) OutOfStock(ctx context.Context) ([]domain.InventoryItem, error) {
	return s.inventory.FindItemsOutOfStock(ctx)
}

// Restock adds quantity to an existing item, e.g. after a delivery.
func (s *InventoryService) Restock(ctx context.Context, id domain.InventoryItemIdentifier, quantity domain.Quantity) (domain.InventoryItem, error) {
	if quantity.IsNegative() {
		return domain.InventoryItem{}, fmt.Errorf("%w: restock quantity %s is negative", ErrInvalidInput, quantity)
	}
	if err := quantity.CheckScale(); err != nil {
		return domain.InventoryItem{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	var saved domain.InventoryItem
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		item, err := s.inventory.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := item.IncreaseQuantity(quantity); err != nil {
			return err
		}
		saved, err = s.inventory.Save(ctx, item)
		return err
	})
	if err != nil {
		return domain.InventoryItem{}, err
	}

	s.metrics.IncRestocks()
	s.logger.Info("inventory item restocked",
		zap.String("item_id", string(id)),
		zap.Stringer("added", quantity),
		zap.Stringer("quantity", saved.Quantity),
	)
	return saved, nil
}

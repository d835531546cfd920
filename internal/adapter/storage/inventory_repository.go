package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rl1809/salespoint-inventory/internal/core/domain"
)

type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// Save inserts items that were never stored (version 0) and otherwise updates
// the quantity if the stored version still matches.
func (r *InventoryRepository) Save(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error) {
	if item.Version == 0 {
		return r.insert(ctx, item)
	}

	now := time.Now().UTC()
	result := conn(ctx, r.db).
		Model(&inventoryItemModel{}).
		Where("id = ? AND version = ?", string(item.ID), item.Version).
		Updates(map[string]any{
			"amount":     item.Quantity.Amount(),
			"metric":     string(item.Quantity.Metric()),
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if result.Error != nil {
		return domain.InventoryItem{}, fmt.Errorf("update inventory item %s: %w", item.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.InventoryItem{}, fmt.Errorf("update inventory item %s at version %d: %w", item.ID, item.Version, domain.ErrConcurrentUpdate)
	}

	item.Version++
	item.UpdatedAt = now
	return item, nil
}

func (r *InventoryRepository) insert(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error) {
	item.Version = 1
	m := toInventoryItemModel(item)

	err := conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&m).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrUniquenessConflict) {
			return domain.InventoryItem{}, err
		}
		if isDuplicateKey(err) {
			return domain.InventoryItem{}, fmt.Errorf("%w: %v", domain.ErrUniquenessConflict, err)
		}
		return domain.InventoryItem{}, fmt.Errorf("insert inventory item %s: %w", item.ID, err)
	}
	return m.toDomain(), nil
}

func (r *InventoryRepository) FindByID(ctx context.Context, id domain.InventoryItemIdentifier) (domain.InventoryItem, error) {
	var m inventoryItemModel
	if err := conn(ctx, r.db).Where("id = ?", string(id)).First(&m).Error; err != nil {
		return domain.InventoryItem{}, translateError(err, "find inventory item "+string(id))
	}
	return m.toDomain(), nil
}

func (r *InventoryRepository) ExistsByID(ctx context.Context, id domain.InventoryItemIdentifier) (bool, error) {
	var count int64
	if err := conn(ctx, r.db).Model(&inventoryItemModel{}).Where("id = ?", string(id)).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count inventory item %s: %w", id, err)
	}
	return count > 0, nil
}

// DeleteByID removes the item and releases the product's stock kind once its
// last item is gone.
func (r *InventoryRepository) DeleteByID(ctx context.Context, id domain.InventoryItemIdentifier) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		var m inventoryItemModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", string(id)).First(&m).Error; err != nil {
			return translateError(err, "delete inventory item "+string(id))
		}
		if err := tx.Delete(&inventoryItemModel{}, "id = ?", m.ID).Error; err != nil {
			return fmt.Errorf("delete inventory item %s: %w", id, err)
		}

		var remaining int64
		if err := tx.Model(&inventoryItemModel{}).Where("product_id = ?", m.ProductID).Count(&remaining).Error; err != nil {
			return err
		}
		if remaining == 0 {
			return tx.Delete(&stockKindModel{}, "product_id = ?", m.ProductID).Error
		}
		return nil
	})
}

// FindByProductIdentifier locks the product's rows when called inside a
// transaction so concurrent completions of the same product serialize.
func (r *InventoryRepository) FindByProductIdentifier(ctx context.Context, productID domain.ProductIdentifier) (domain.StockResult, error) {
	q := conn(ctx, r.db)
	if inTransaction(ctx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var models []inventoryItemModel
	if err := q.Where("product_id = ?", string(productID)).Order("created_at, id").Find(&models).Error; err != nil {
		return domain.StockResult{}, fmt.Errorf("find inventory for product %s: %w", productID, err)
	}
	return domain.ResolveStock(toInventoryItems(models))
}

func (r *InventoryRepository) FindItemsOutOfStock(ctx context.Context) ([]domain.InventoryItem, error) {
	var models []inventoryItemModel
	if err := conn(ctx, r.db).Where("amount <= 0").Order("created_at, id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("find out of stock items: %w", err)
	}
	return toInventoryItems(models), nil
}

func (r *InventoryRepository) FindAll(ctx context.Context) ([]domain.InventoryItem, error) {
	var models []inventoryItemModel
	if err := conn(ctx, r.db).Order("created_at, id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("find inventory items: %w", err)
	}
	return toInventoryItems(models), nil
}

func toInventoryItems(models []inventoryItemModel) []domain.InventoryItem {
	items := make([]domain.InventoryItem, 0, len(models))
	for _, m := range models {
		items = append(items, m.toDomain())
	}
	return items
}

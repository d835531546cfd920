package storage

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rl1809/salespoint-inventory/internal/core/domain"
)

const (
	stockKindUnique = "unique"
	stockKindBatch  = "batch"
)

type productModel struct {
	ID        string       `gorm:"primaryKey;size:36"`
	Name      string       `gorm:"size:255;not null"`
	Price     domain.Money `gorm:"type:varchar(64)"`
	Metric    string       `gorm:"size:8;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (productModel) TableName() string { return "products" }

// stockKindModel pins a product to either one unique item or any number of
// batch items. Rows are locked while an item is inserted.
type stockKindModel struct {
	ProductID string `gorm:"primaryKey;size:36"`
	Kind      string `gorm:"size:8;not null"`
}

func (stockKindModel) TableName() string { return "inventory_stock_kinds" }

type inventoryItemModel struct {
	ID        string          `gorm:"primaryKey;size:36"`
	ProductID string          `gorm:"size:36;not null;index"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	Metric    string          `gorm:"size:8;not null"`
	IsUnique  bool            `gorm:"column:is_unique;not null"`
	UniqueKey *string         `gorm:"size:36;uniqueIndex"` // product id for unique items, NULL for batches
	Version   int             `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (inventoryItemModel) TableName() string { return "inventory_items" }

// BeforeCreate claims the stock kind of the product for the new item. A batch
// item for a product held as unique, or the reverse, is rejected; two unique
// items collide on unique_key.
func (m *inventoryItemModel) BeforeCreate(tx *gorm.DB) error {
	db := tx.Session(&gorm.Session{NewDB: true})

	want := stockKindModel{ProductID: m.ProductID, Kind: stockKindBatch}
	if m.IsUnique {
		want.Kind = stockKindUnique
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&want).Error; err != nil {
		return err
	}

	var held stockKindModel
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", m.ProductID).
		First(&held).Error; err != nil {
		return err
	}
	if held.Kind != want.Kind {
		return fmt.Errorf("%w: product %s holds %s items", domain.ErrUniquenessConflict, m.ProductID, held.Kind)
	}
	return nil
}

type orderModel struct {
	ID          string           `gorm:"primaryKey;size:36"`
	Status      string           `gorm:"size:16;not null;index"`
	Lines       []orderLineModel `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PaidAt      *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (orderModel) TableName() string { return "orders" }

type orderLineModel struct {
	ID          string          `gorm:"primaryKey;size:36"`
	OrderID     string          `gorm:"size:36;not null;index"`
	Position    int             `gorm:"not null"`
	ProductID   string          `gorm:"size:36;not null"`
	ProductName string          `gorm:"size:255"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	Metric      string          `gorm:"size:8;not null"`
	Price       domain.Money    `gorm:"type:varchar(64)"`
}

func (orderLineModel) TableName() string { return "order_lines" }

func toProductModel(p domain.Product) productModel {
	return productModel{
		ID:        string(p.ID),
		Name:      p.Name,
		Price:     p.Price,
		Metric:    string(p.Metric),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (m productModel) toDomain() domain.Product {
	return domain.Product{
		ID:        domain.ProductIdentifier(m.ID),
		Name:      m.Name,
		Price:     m.Price,
		Metric:    domain.Metric(m.Metric),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toInventoryItemModel(item domain.InventoryItem) inventoryItemModel {
	m := inventoryItemModel{
		ID:        string(item.ID),
		ProductID: string(item.ProductID),
		Amount:    item.Quantity.Amount(),
		Metric:    string(item.Quantity.Metric()),
		IsUnique:  item.Unique,
		Version:   item.Version,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
	if item.Unique {
		key := string(item.ProductID)
		m.UniqueKey = &key
	}
	return m
}

func (m inventoryItemModel) toDomain() domain.InventoryItem {
	return domain.InventoryItem{
		ID:        domain.InventoryItemIdentifier(m.ID),
		ProductID: domain.ProductIdentifier(m.ProductID),
		Quantity:  domain.NewQuantity(m.Amount, domain.Metric(m.Metric)),
		Unique:    m.IsUnique,
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toOrderModel(o domain.Order) orderModel {
	lines := make([]orderLineModel, 0, len(o.Lines))
	for i, l := range o.Lines {
		lines = append(lines, orderLineModel{
			ID:          l.ID,
			OrderID:     string(o.ID),
			Position:    i,
			ProductID:   string(l.ProductID),
			ProductName: l.ProductName,
			Amount:      l.Quantity.Amount(),
			Metric:      string(l.Quantity.Metric()),
			Price:       l.Price,
		})
	}
	return orderModel{
		ID:          string(o.ID),
		Status:      string(o.Status),
		Lines:       lines,
		PaidAt:      o.PaidAt,
		CompletedAt: o.CompletedAt,
		CancelledAt: o.CancelledAt,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

func (m orderModel) toDomain() domain.Order {
	lines := make([]domain.OrderLine, 0, len(m.Lines))
	for _, l := range m.Lines {
		lines = append(lines, domain.OrderLine{
			ID:          l.ID,
			ProductID:   domain.ProductIdentifier(l.ProductID),
			ProductName: l.ProductName,
			Quantity:    domain.NewQuantity(l.Amount, domain.Metric(l.Metric)),
			Price:       l.Price,
		})
	}
	return domain.Order{
		ID:          domain.OrderIdentifier(m.ID),
		Status:      domain.OrderStatus(m.Status),
		Lines:       lines,
		PaidAt:      m.PaidAt,
		CompletedAt: m.CompletedAt,
		CancelledAt: m.CancelledAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

package storage

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rl1809/salespoint-inventory/internal/core/domain"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Save upserts the order header. Lines are written once and never change.
func (r *OrderRepository) Save(ctx context.Context, order domain.Order) error {
	m := toOrderModel(order)
	lines := m.Lines
	m.Lines = nil

	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "paid_at", "completed_at", "cancelled_at", "updated_at"}),
		}).Create(&m).Error
		if err != nil {
			return fmt.Errorf("save order %s: %w", order.ID, err)
		}
		if len(lines) == 0 {
			return nil
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&lines).Error; err != nil {
			return fmt.Errorf("save lines of order %s: %w", order.ID, err)
		}
		return nil
	})
}

func (r *OrderRepository) FindByID(ctx context.Context, id domain.OrderIdentifier) (domain.Order, error) {
	var m orderModel
	err := conn(ctx, r.db).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("id = ?", string(id)).
		First(&m).Error
	if err != nil {
		return domain.Order{}, translateError(err, "find order "+string(id))
	}
	return m.toDomain(), nil
}

package storage

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rl1809/salespoint-inventory/internal/core/domain"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Save(ctx context.Context, product domain.Product) error {
	m := toProductModel(product)
	err := conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "price", "metric", "updated_at"}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("save product %s: %w", product.ID, err)
	}
	return nil
}

func (r *ProductRepository) FindByID(ctx context.Context, id domain.ProductIdentifier) (domain.Product, error) {
	var m productModel
	if err := conn(ctx, r.db).Where("id = ?", string(id)).First(&m).Error; err != nil {
		return domain.Product{}, translateError(err, "find product "+string(id))
	}
	return m.toDomain(), nil
}

package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/salespoint-inventory/internal/core/domain"
	"github.com/rl1809/salespoint-inventory/internal/port"
)

type NewProduct struct {
	Name   string `json:"name" validate:"required,max=255"`
	Price  string `json:"price" validate:"required"`
	Metric string `json:"metric" validate:"omitempty,oneof=unit kg l m m2 m3"`
}

type CatalogService struct {
	products port.ProductRepository
	logger   *zap.Logger
}

func NewCatalogService(products port.ProductRepository, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{products: products, logger: logger}
}

func (s *CatalogService) AddProduct(ctx context.Context, in NewProduct) (domain.Product, error) {
	if err := validateInput(in); err != nil {
		return domain.Product{}, err
	}
	price, err := domain.ParseMoney(in.Price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	metric, err := domain.ParseMetric(in.Metric)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := time.Now()
	product := domain.Product{
		ID:        domain.NewProductIdentifier(),
		Name:      in.Name,
		Price:     price,
		Metric:    metric,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.products.Save(ctx, product); err != nil {
		return domain.Product{}, fmt.Errorf("save product: %w", err)
	}

	s.logger.Info("product added",
		zap.String("product_id", string(product.ID)),
		zap.String("name", product.Name),
		zap.Stringer("price", product.Price),
	)
	return product, nil
}

func (s *CatalogService) Product(ctx context.Context, id domain.ProductIdentifier) (domain.Product, error) {
	return s.products.FindByID(ctx, id)
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

type ProductIdentifier string

func NewProductIdentifier() ProductIdentifier {
	return ProductIdentifier(uuid.NewString())
}

type Product struct {
	ID        ProductIdentifier
	Name      string
	Price     Money
	Metric    Metric
	CreatedAt time.Time
	UpdatedAt time.Time
}

package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type InventoryItemIdentifier string

func NewInventoryItemIdentifier() InventoryItemIdentifier {
	return InventoryItemIdentifier(uuid.NewString())
}

// InventoryItem is the quantity on hand of a product. A unique item is the
// single authoritative counter for its product; non-unique items are batches
// and may coexist with other batches of the same product.
type InventoryItem struct {
	ID        InventoryItemIdentifier
	ProductID ProductIdentifier
	Quantity  Quantity
	Unique    bool
	Version   int // optimistic locking
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewUniqueInventoryItem(productID ProductIdentifier, quantity Quantity) InventoryItem {
	return newInventoryItem(productID, quantity, true)
}

func NewBatchInventoryItem(productID ProductIdentifier, quantity Quantity) InventoryItem {
	return newInventoryItem(productID, quantity, false)
}

func newInventoryItem(productID ProductIdentifier, quantity Quantity, unique bool) InventoryItem {
	now := time.Now()
	return InventoryItem{
		ID:        NewInventoryItemIdentifier(),
		ProductID: productID,
		Quantity:  quantity,
		Unique:    unique,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (i InventoryItem) HasSufficientQuantity(requested Quantity) (bool, error) {
	return i.Quantity.IsGreaterThanOrEqual(requested)
}

func (i *InventoryItem) DecreaseQuantity(q Quantity) error {
	next, err := i.Quantity.Subtract(q)
	if err != nil {
		return fmt.Errorf("decrease %s: %w", i.ID, err)
	}
	i.Quantity = next
	i.UpdatedAt = time.Now()
	return nil
}

func (i *InventoryItem) IncreaseQuantity(q Quantity) error {
	next, err := i.Quantity.Add(q)
	if err != nil {
		return fmt.Errorf("increase %s: %w", i.ID, err)
	}
	i.Quantity = next
	i.UpdatedAt = time.Now()
	return nil
}

func (i InventoryItem) IsOutOfStock() bool {
	return i.Quantity.IsZeroOrNegative()
}

func (i InventoryItem) IsDifferentItemForSameProduct(other InventoryItem) bool {
	return i.ID != other.ID && i.ProductID == other.ProductID
}

func (i InventoryItem) Kind() string {
	if i.Unique {
		return "unique"
	}
	return "batch"
}

func (i InventoryItem) String() string {
	return fmt.Sprintf("%s item %s for product %s (%s)", i.Kind(), i.ID, i.ProductID, i.Quantity)
}

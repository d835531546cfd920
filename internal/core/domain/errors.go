package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrUniquenessConflict   = errors.New("inventory uniqueness conflict")
	ErrInventoryConsistency = errors.New("inventory consistency violation")
	ErrConcurrentUpdate     = errors.New("record was modified concurrently")
)

// UniquenessConflictError rejects a new inventory item whose product already
// has items that cannot coexist with it.
type UniquenessConflictError struct {
	Item     InventoryItem
	Existing []InventoryItem
}

func (e *UniquenessConflictError) Error() string {
	ids := make([]string, 0, len(e.Existing))
	for _, it := range e.Existing {
		ids = append(ids, string(it.ID))
	}
	return fmt.Sprintf("trying to persist %s inventory item %s for product %s; the following item(s) already exist: [%s]",
		e.Item.Kind(), e.Item.ID, e.Item.ProductID, strings.Join(ids, ", "))
}

func (e *UniquenessConflictError) Unwrap() error {
	return ErrUniquenessConflict
}

// ConsistencyViolationError means a completed order cannot be restocked because
// its product has no inventory item left at all.
type ConsistencyViolationError struct {
	OrderID   OrderIdentifier
	ProductID ProductIdentifier
}

func (e *ConsistencyViolationError) Error() string {
	return fmt.Sprintf("couldn't find inventory item for product %s while cancelling order %s", e.ProductID, e.OrderID)
}

func (e *ConsistencyViolationError) Unwrap() error {
	return ErrInventoryConsistency
}

package domain

import (
	"errors"
	"fmt"
)

var ErrInconsistentStock = errors.New("unique inventory item mixed with other items")

type StockKind int

const (
	StockNone StockKind = iota
	StockUnique
	StockMultiple
)

func (k StockKind) String() string {
	switch k {
	case StockUnique:
		return "unique"
	case StockMultiple:
		return "multiple"
	default:
		return "none"
	}
}

// StockResult is the outcome of an inventory lookup for one product. It is
// resolved once from the raw items and is either empty, exactly one unique
// item, or one or more batch items.
type StockResult struct {
	kind  StockKind
	items []InventoryItem
}

// ResolveStock classifies the items found for a single product. A unique item
// next to any other item violates the inventory invariant and is rejected.
func ResolveStock(items []InventoryItem) (StockResult, error) {
	if len(items) == 0 {
		return StockResult{kind: StockNone}, nil
	}
	for _, it := range items {
		if it.Unique && len(items) > 1 {
			return StockResult{}, fmt.Errorf("%w: product %s has %d items", ErrInconsistentStock, it.ProductID, len(items))
		}
	}
	cp := make([]InventoryItem, len(items))
	copy(cp, items)
	if cp[0].Unique {
		return StockResult{kind: StockUnique, items: cp}, nil
	}
	return StockResult{kind: StockMultiple, items: cp}, nil
}

func (r StockResult) Kind() StockKind {
	return r.kind
}

func (r StockResult) IsEmpty() bool {
	return r.kind == StockNone
}

// Unique returns the unique item when the result holds one.
func (r StockResult) Unique() (InventoryItem, bool) {
	if r.kind != StockUnique {
		return InventoryItem{}, false
	}
	return r.items[0], true
}

func (r StockResult) Items() []InventoryItem {
	cp := make([]InventoryItem, len(r.items))
	copy(cp, r.items)
	return cp
}

// TotalQuantity sums the quantities of all contained items; None when empty.
func (r StockResult) TotalQuantity() (Quantity, error) {
	if len(r.items) == 0 {
		return None, nil
	}
	total := r.items[0].Quantity
	for _, it := range r.items[1:] {
		next, err := total.Add(it.Quantity)
		if err != nil {
			return Quantity{}, err
		}
		total = next
	}
	return total, nil
}

// Filter resolves the subset of items matching keep.
func (r StockResult) Filter(keep func(InventoryItem) bool) (StockResult, error) {
	var out []InventoryItem
	for _, it := range r.items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return ResolveStock(out)
}

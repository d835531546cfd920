package service

import "github.com/rl1809/salespoint-inventory/internal/core/domain"

// LineItemFilter decides whether an order line takes part in stock
// verification. Lines of products without stock, e.g. services, are excluded.
type LineItemFilter interface {
	Supports(line domain.OrderLine) bool
}

type LineItemFilterFunc func(line domain.OrderLine) bool

func (f LineItemFilterFunc) Supports(line domain.OrderLine) bool {
	return f(line)
}

// ShouldBeHandled is true without filters, otherwise when any filter supports
// the line.
func ShouldBeHandled(line domain.OrderLine, filters []LineItemFilter) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if f.Supports(line) {
			return true
		}
	}
	return false
}

// ExcludeProducts supports every line except those of the given products.
func ExcludeProducts(ids ...domain.ProductIdentifier) LineItemFilter {
	exempt := make(map[domain.ProductIdentifier]struct{}, len(ids))
	for _, id := range ids {
		exempt[id] = struct{}{}
	}
	return LineItemFilterFunc(func(line domain.OrderLine) bool {
		_, skip := exempt[line.ProductID]
		return !skip
	})
}

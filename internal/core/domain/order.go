package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidTransition = errors.New("invalid order status transition")

type OrderIdentifier string

func NewOrderIdentifier() OrderIdentifier {
	return OrderIdentifier(uuid.NewString())
}

type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

type OrderLine struct {
	ID          string            `json:"id"`
	ProductID   ProductIdentifier `json:"product_id"`
	ProductName string            `json:"product_name,omitempty"`
	Quantity    Quantity          `json:"quantity"`
	Price       Money             `json:"price"`
}

func NewOrderLine(productID ProductIdentifier, quantity Quantity) OrderLine {
	return OrderLine{
		ID:        uuid.NewString(),
		ProductID: productID,
		Quantity:  quantity,
	}
}

// Total is the unit price times the requested amount.
func (l OrderLine) Total() Money {
	return l.Price.Times(l.Quantity.Amount())
}

type Order struct {
	ID          OrderIdentifier `json:"id"`
	Status      OrderStatus     `json:"status"`
	Lines       []OrderLine     `json:"lines"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CancelledAt *time.Time      `json:"cancelled_at,omitempty"`
}

func NewOrder(lines ...OrderLine) Order {
	now := time.Now()
	return Order{
		ID:        NewOrderIdentifier(),
		Status:    OrderStatusOpen,
		Lines:     lines,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (o Order) IsCompleted() bool {
	return o.Status == OrderStatusCompleted
}

func (o Order) IsCancelled() bool {
	return o.Status == OrderStatusCancelled
}

// WasCompleted reports whether the order reached the completed state at some
// point, including orders cancelled afterwards.
func (o Order) WasCompleted() bool {
	return o.CompletedAt != nil
}

func (o Order) Total() (Money, error) {
	var total Money
	for _, l := range o.Lines {
		next, err := total.Add(l.Total())
		if err != nil {
			return Money{}, err
		}
		total = next
	}
	return total, nil
}

func (o *Order) MarkPaid(at time.Time) error {
	if o.Status != OrderStatusOpen {
		return o.transitionError(OrderStatusPaid)
	}
	o.Status = OrderStatusPaid
	o.PaidAt = &at
	o.UpdatedAt = at
	return nil
}

func (o *Order) MarkCompleted(at time.Time) error {
	if o.Status != OrderStatusPaid {
		return o.transitionError(OrderStatusCompleted)
	}
	o.Status = OrderStatusCompleted
	o.CompletedAt = &at
	o.UpdatedAt = at
	return nil
}

func (o *Order) MarkCancelled(at time.Time) error {
	if o.Status == OrderStatusCancelled {
		return o.transitionError(OrderStatusCancelled)
	}
	o.Status = OrderStatusCancelled
	o.CancelledAt = &at
	o.UpdatedAt = at
	return nil
}

func (o Order) transitionError(to OrderStatus) error {
	return fmt.Errorf("%w: order %s is %s, cannot become %s", ErrInvalidTransition, o.ID, o.Status, to)
}

type LifecycleEventKind string

const (
	OrderCompleted LifecycleEventKind = "order.completed"
	OrderCancelled LifecycleEventKind = "order.cancelled"
)

// OrderLifecycleEvent carries the full order as it was when the transition
// happened.
type OrderLifecycleEvent struct {
	EventID    string             `json:"event_id"`
	Kind       LifecycleEventKind `json:"kind"`
	Order      Order              `json:"order"`
	OccurredAt time.Time          `json:"occurred_at"`
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/salespoint-inventory/internal/core/domain"
	"github.com/rl1809/salespoint-inventory/internal/port"
)

type NewOrderLine struct {
	ProductID string          `json:"product_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

type NewOrder struct {
	Lines []NewOrderLine `json:"lines" validate:"required,min=1,dive"`
}

// OrderService owns the order lifecycle. Completing and cancelling an order
// reconcile inventory in the same transaction as the status change.
type OrderService struct {
	orders     port.OrderRepository
	products   port.ProductRepository
	tx         port.Transactor
	reconciler *Reconciler
	reports    port.ReportPublisher
	logger     *zap.Logger
}

func NewOrderService(orders port.OrderRepository, products port.ProductRepository, tx port.Transactor, reconciler *Reconciler, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		orders:     orders,
		products:   products,
		tx:         tx,
		reconciler: reconciler,
		logger:     logger,
	}
}

// WithReportPublisher makes Complete publish every completion report.
func (s *OrderService) WithReportPublisher(p port.ReportPublisher) *OrderService {
	s.reports = p
	return s
}

func (s *OrderService) Create(ctx context.Context, in NewOrder) (domain.Order, error) {
	if err := validateInput(in); err != nil {
		return domain.Order{}, err
	}

	lines := make([]domain.OrderLine, 0, len(in.Lines))
	for _, l := range in.Lines {
		product, err := s.products.FindByID(ctx, domain.ProductIdentifier(l.ProductID))
		if err != nil {
			return domain.Order{}, fmt.Errorf("product %s: %w", l.ProductID, err)
		}
		line := domain.NewOrderLine(product.ID, domain.NewQuantity(l.Amount, product.Metric))
		line.ProductName = product.Name
		line.Price = product.Price
		lines = append(lines, line)
	}

	order := domain.NewOrder(lines...)
	if _, err := order.Total(); err != nil {
		return domain.Order{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.orders.Save(ctx, order); err != nil {
		return domain.Order{}, fmt.Errorf("save order: %w", err)
	}

	s.logger.Info("order created",
		zap.String("order_id", string(order.ID)),
		zap.Int("lines", len(order.Lines)),
	)
	return order, nil
}

func (s *OrderService) Order(ctx context.Context, id domain.OrderIdentifier) (domain.Order, error) {
	return s.orders.FindByID(ctx, id)
}

func (s *OrderService) Pay(ctx context.Context, id domain.OrderIdentifier) (domain.Order, error) {
	var order domain.Order
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := o.MarkPaid(time.Now()); err != nil {
			return err
		}
		if err := s.orders.Save(ctx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logger.Info("order paid", zap.String("order_id", string(id)))
	return order, nil
}

// Complete verifies and decrements stock for every line and marks the order
// completed. When any line fails the transaction is rolled back, the order
// stays paid and the returned report lists every line's outcome.
func (s *OrderService) Complete(ctx context.Context, id domain.OrderIdentifier) (domain.Order, domain.CompletionReport, error) {
	var (
		order  domain.Order
		report domain.CompletionReport
	)
	ctx, hooks := withCommitHooks(ctx)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := o.MarkCompleted(time.Now()); err != nil {
			return err
		}
		report, err = s.reconciler.OnOrderCompleted(ctx, o)
		if err != nil {
			return err
		}
		if err := s.orders.Save(ctx, o); err != nil {
			return err
		}
		order = o
		return nil
	})

	if err == nil {
		hooks.run()
	}
	var failure *domain.CompletionFailure
	if err == nil || errors.As(err, &failure) {
		s.publish(ctx, report)
	}
	if err != nil {
		return domain.Order{}, report, err
	}

	s.logger.Info("order completed", zap.String("order_id", string(id)))
	return order, report, nil
}

// Cancel marks the order cancelled and puts back the stock it took if it had
// been completed.
func (s *OrderService) Cancel(ctx context.Context, id domain.OrderIdentifier) (domain.Order, error) {
	var order domain.Order
	ctx, hooks := withCommitHooks(ctx)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := o.MarkCancelled(time.Now()); err != nil {
			return err
		}
		if err := s.reconciler.OnOrderCancelled(ctx, o); err != nil {
			return err
		}
		if err := s.orders.Save(ctx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	hooks.run()

	s.logger.Info("order cancelled",
		zap.String("order_id", string(id)),
		zap.Bool("restocked", order.WasCompleted()),
	)
	return order, nil
}

func (s *OrderService) publish(ctx context.Context, report domain.CompletionReport) {
	if s.reports == nil || report.OrderID == "" {
		return
	}
	if err := s.reports.PublishReport(ctx, report); err != nil {
		s.logger.Error("failed to publish completion report",
			zap.String("order_id", string(report.OrderID)),
			zap.Error(err),
		)
	}
}

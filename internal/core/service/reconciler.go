package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/rl1809/salespoint-inventory/internal/core/domain"
	"github.com/rl1809/salespoint-inventory/internal/platform/metrics"
	"github.com/rl1809/salespoint-inventory/internal/port"
)

var ErrUnknownEvent = errors.New("unknown lifecycle event")

var tracer = otel.Tracer("github.com/rl1809/salespoint-inventory/internal/core/service")

// Reconciler verifies and moves stock for orders entering the completed or
// cancelled state. It must run inside the transaction of the transition so
// that a failed report leaves no stock changes behind.
type Reconciler struct {
	inventory port.InventoryRepository
	filters   []LineItemFilter
	logger    *zap.Logger
	metrics   *metrics.InventoryMetrics
}

func NewReconciler(inventory port.InventoryRepository, logger *zap.Logger, m *metrics.InventoryMetrics, filters ...LineItemFilter) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		inventory: inventory,
		filters:   filters,
		logger:    logger,
		metrics:   m,
	}
}

// Reconcile dispatches on the lifecycle event. The report is only populated
// for completions.
func (r *Reconciler) Reconcile(ctx context.Context, order domain.Order, kind domain.LifecycleEventKind) (domain.CompletionReport, error) {
	switch kind {
	case domain.OrderCompleted:
		return r.OnOrderCompleted(ctx, order)
	case domain.OrderCancelled:
		return domain.CompletionReport{OrderID: order.ID}, r.OnOrderCancelled(ctx, order)
	default:
		return domain.CompletionReport{}, fmt.Errorf("%w: %q", ErrUnknownEvent, kind)
	}
}

// OnOrderCompleted checks every line and decrements unique stock for lines
// that can be served. All lines are evaluated; a *domain.CompletionFailure
// holding the full report is returned when any of them failed.
func (r *Reconciler) OnOrderCompleted(ctx context.Context, order domain.Order) (report domain.CompletionReport, err error) {
	ctx, span := tracer.Start(ctx, "inventory.reconcile_completion")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", string(order.ID)),
		attribute.Int("order.lines", len(order.Lines)),
	)

	start := time.Now()
	defer func() {
		r.metrics.ObserveReconciliation(domain.OrderCompleted, err, time.Since(start))
	}()

	completions := make([]domain.LineCompletion, 0, len(order.Lines))
	for _, line := range order.Lines {
		c, err := r.verify(ctx, line)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "stock lookup failed")
			return domain.CompletionReport{}, err
		}
		completions = append(completions, c)
	}

	report = domain.NewCompletionReport(order, completions)
	observe := func() { r.metrics.ObserveReport(report) }
	span.SetAttributes(
		attribute.Int("report.succeeded", report.Count(domain.LineSucceeded)),
		attribute.Int("report.skipped", report.Count(domain.LineSkipped)),
		attribute.Int("report.failed", report.Count(domain.LineFailed)),
	)

	if err := report.Err(); err != nil {
		observe()
		span.SetStatus(codes.Error, "order completion failed")
		r.logger.Warn("order completion rejected",
			zap.String("order_id", string(order.ID)),
			zap.Int("failed_lines", len(report.Failures())),
			zap.Error(err),
		)
		return report, err
	}

	afterCommit(ctx, observe)
	span.SetStatus(codes.Ok, "stock verified")
	r.logger.Debug("order completion verified", zap.String("order_id", string(order.ID)))
	return report, nil
}

func (r *Reconciler) verify(ctx context.Context, line domain.OrderLine) (domain.LineCompletion, error) {
	if !ShouldBeHandled(line, r.filters) {
		return domain.LineSuccess(line), nil
	}

	stock, err := r.inventory.FindByProductIdentifier(ctx, line.ProductID)
	if err != nil {
		return domain.LineCompletion{}, fmt.Errorf("lookup stock for product %s: %w", line.ProductID, err)
	}

	switch stock.Kind() {
	case domain.StockUnique:
		item, _ := stock.Unique()
		return r.verifyUnique(ctx, item, line)
	case domain.StockMultiple:
		return domain.LineSkip(line), nil
	default:
		return domain.LineMissingInventory(line), nil
	}
}

func (r *Reconciler) verifyUnique(ctx context.Context, item domain.InventoryItem, line domain.OrderLine) (domain.LineCompletion, error) {
	if err := line.Quantity.CheckScale(); err != nil {
		return domain.LineError(line, err.Error(), err), nil
	}
	ok, err := item.HasSufficientQuantity(line.Quantity)
	if err != nil {
		return domain.LineError(line, err.Error(), err), nil
	}
	if !ok {
		return domain.LineInsufficientStock(line), nil
	}

	if err := item.DecreaseQuantity(line.Quantity); err != nil {
		return domain.LineError(line, err.Error(), err), nil
	}
	if _, err := r.inventory.Save(ctx, item); err != nil {
		return domain.LineCompletion{}, fmt.Errorf("decrease stock of %s: %w", item.ID, err)
	}

	return domain.LineSuccess(line), nil
}

// OnOrderCancelled puts the stock of a previously completed order back. Orders
// that never completed moved no stock and are ignored. A handled line whose
// product has no inventory item at all is a *domain.ConsistencyViolationError.
func (r *Reconciler) OnOrderCancelled(ctx context.Context, order domain.Order) (err error) {
	if !order.WasCompleted() {
		r.logger.Debug("cancelled order was never completed, nothing to restock",
			zap.String("order_id", string(order.ID)))
		return nil
	}

	ctx, span := tracer.Start(ctx, "inventory.reconcile_cancellation")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", string(order.ID)))

	start := time.Now()
	defer func() {
		r.metrics.ObserveReconciliation(domain.OrderCancelled, err, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "restock failed")
		}
	}()

	for _, line := range order.Lines {
		if !ShouldBeHandled(line, r.filters) {
			continue
		}
		if err := r.restock(ctx, order, line); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) restock(ctx context.Context, order domain.Order, line domain.OrderLine) error {
	stock, err := r.inventory.FindByProductIdentifier(ctx, line.ProductID)
	if err != nil {
		return fmt.Errorf("lookup stock for product %s: %w", line.ProductID, err)
	}

	switch stock.Kind() {
	case domain.StockUnique:
		item, _ := stock.Unique()
		if err := item.IncreaseQuantity(line.Quantity); err != nil {
			return err
		}
		if _, err := r.inventory.Save(ctx, item); err != nil {
			return fmt.Errorf("restock %s: %w", item.ID, err)
		}
		afterCommit(ctx, r.metrics.IncRestocks)
		return nil
	case domain.StockMultiple:
		return nil
	default:
		violation := &domain.ConsistencyViolationError{OrderID: order.ID, ProductID: line.ProductID}
		r.metrics.IncConsistencyViolations()
		r.logger.Error("inventory consistency violation",
			zap.String("order_id", string(order.ID)),
			zap.String("product_id", string(line.ProductID)),
			zap.Error(violation),
		)
		return violation
	}
}

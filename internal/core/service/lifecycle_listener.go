package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/salespoint-inventory/internal/core/domain"
	"github.com/rl1809/salespoint-inventory/internal/port"
)

var ErrDuplicateEvent = errors.New("duplicate lifecycle event")

// LifecycleListener reconciles inventory for lifecycle events published by an
// external order service. Each order transition is handled at most once.
type LifecycleListener struct {
	reconciler *Reconciler
	tx         port.Transactor
	cache      port.IdempotencyStore
	reports    port.ReportPublisher
	logger     *zap.Logger
}

func NewLifecycleListener(reconciler *Reconciler, tx port.Transactor, cache port.IdempotencyStore, reports port.ReportPublisher, logger *zap.Logger) *LifecycleListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleListener{
		reconciler: reconciler,
		tx:         tx,
		cache:      cache,
		reports:    reports,
		logger:     logger,
	}
}

func idempotencyKey(event domain.OrderLifecycleEvent) string {
	return fmt.Sprintf("lifecycle:%s:%s", event.Order.ID, event.Kind)
}

// Handle returns ErrDuplicateEvent when the transition was already handled.
// The idempotency key is only leased until the transaction commits and is
// then confirmed; on any other failure it is released so a redelivery can try
// again. Reports are published after the transaction; a failed publish is
// logged only since the stock change is already committed.
func (l *LifecycleListener) Handle(ctx context.Context, event domain.OrderLifecycleEvent) (err error) {
	key := idempotencyKey(event)

	ok, err := l.cache.SetIdempotency(ctx, key)
	if err != nil {
		return fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return ErrDuplicateEvent
	}
	defer func() {
		if err == nil {
			return
		}
		if relErr := l.cache.ReleaseIdempotency(context.WithoutCancel(ctx), key); relErr != nil {
			l.logger.Error("failed to release idempotency key", zap.String("key", key), zap.Error(relErr))
		}
	}()

	var report domain.CompletionReport
	txCtx, hooks := withCommitHooks(ctx)
	err = l.tx.WithinTransaction(txCtx, func(ctx context.Context) error {
		var rerr error
		report, rerr = l.reconciler.Reconcile(ctx, event.Order, event.Kind)
		return rerr
	})
	if err == nil {
		hooks.run()
		if cerr := l.cache.ConfirmIdempotency(context.WithoutCancel(ctx), key); cerr != nil {
			// Committed already; the lease still guards the key until it expires.
			l.logger.Error("failed to confirm idempotency key", zap.String("key", key), zap.Error(cerr))
		}
	}

	if event.Kind == domain.OrderCompleted && report.OrderID != "" && l.reports != nil {
		if pubErr := l.reports.PublishReport(ctx, report); pubErr != nil {
			l.logger.Error("failed to publish completion report",
				zap.String("order_id", string(report.OrderID)),
				zap.Error(pubErr),
			)
		}
	}
	if err != nil {
		l.logger.Warn("lifecycle event not reconciled",
			zap.String("event_id", event.EventID),
			zap.String("order_id", string(event.Order.ID)),
			zap.String("kind", string(event.Kind)),
			zap.Error(err),
		)
		return err
	}

	l.logger.Info("lifecycle event reconciled",
		zap.String("event_id", event.EventID),
		zap.String("order_id", string(event.Order.ID)),
		zap.String("kind", string(event.Kind)),
	)
	return nil
}

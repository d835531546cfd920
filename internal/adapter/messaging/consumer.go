package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/salespoint-inventory/internal/core/domain"
	"github.com/rl1809/salespoint-inventory/internal/core/service"
)

const (
	defaultWorkers     = 4
	defaultMaxAttempts = 3
)

var tracer = otel.Tracer("github.com/rl1809/salespoint-inventory/internal/adapter/messaging")

type LifecycleHandler interface {
	Handle(ctx context.Context, event domain.OrderLifecycleEvent) error
}

type ConsumerOptions struct {
	Workers      int
	MaxAttempts  int
	RetryBackoff time.Duration
}

// LifecycleConsumer feeds order lifecycle events from Kafka to a handler.
// Messages of one order always go to the same worker so a cancellation is
// never reconciled before the completion it undoes.
type LifecycleConsumer struct {
	reader  MessageReader
	handler LifecycleHandler
	opts    ConsumerOptions
	offsets *offsetTracker
	logger  *zap.Logger
}

func NewLifecycleConsumer(reader MessageReader, handler LifecycleHandler, opts ConsumerOptions, logger *zap.Logger) *LifecycleConsumer {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 200 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleConsumer{reader: reader, handler: handler, opts: opts, offsets: newOffsetTracker(), logger: logger}
}

// Run fetches until ctx is cancelled or the reader is closed, then waits for
// the workers to drain their queues.
func (c *LifecycleConsumer) Run(ctx context.Context) error {
	queues := make([]chan kafka.Message, c.opts.Workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan kafka.Message, 16)
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.workerLoop(ctx, id, queues[id])
		}(i)
	}
	c.logger.Info("lifecycle consumer started", zap.Int("workers", c.opts.Workers))

	defer func() {
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
		c.logger.Info("lifecycle consumer stopped")
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("fetch lifecycle message: %w", err)
		}

		c.offsets.track(msg)
		q := queues[xxhash.Sum64(msg.Key)%uint64(len(queues))]
		select {
		case q <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *LifecycleConsumer) workerLoop(ctx context.Context, id int, queue <-chan kafka.Message) {
	for msg := range queue {
		c.process(ctx, id, msg)
	}
}

func (c *LifecycleConsumer) process(ctx context.Context, worker int, msg kafka.Message) {
	msgCtx := extractTraceContext(ctx, msg.Headers)
	msgCtx, span := tracer.Start(msgCtx, "lifecycle.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.Int("messaging.kafka.partition", msg.Partition),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		),
	)
	defer span.End()

	var event domain.OrderLifecycleEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid payload")
		c.logger.Error("invalid lifecycle event, skipping",
			zap.Int("worker", worker),
			zap.Int64("offset", msg.Offset),
			zap.ByteString("raw_value", msg.Value),
			zap.Error(err),
		)
		c.done(ctx, msg)
		return
	}
	span.SetAttributes(
		attribute.String("order.id", string(event.Order.ID)),
		attribute.String("event.kind", string(event.Kind)),
	)

	err := c.handleWithRetry(msgCtx, event)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		// Never marked done, so neither it nor any later offset of its
		// partition is committed and it is redelivered after restart.
		c.logger.Warn("consumer stopping, lifecycle event not committed",
			zap.String("order_id", string(event.Order.ID)),
			zap.Error(err),
		)
		return
	case errors.Is(err, service.ErrDuplicateEvent):
		c.logger.Info("duplicate lifecycle event ignored",
			zap.String("event_id", event.EventID),
			zap.String("order_id", string(event.Order.ID)),
		)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconciliation failed")
		c.logger.Error("lifecycle event dropped",
			zap.Int("worker", worker),
			zap.String("event_id", event.EventID),
			zap.String("order_id", string(event.Order.ID)),
			zap.Error(err),
		)
	}
	c.done(ctx, msg)
}

// handleWithRetry retries failures that may be transient. Business outcomes
// are final.
func (c *LifecycleConsumer) handleWithRetry(ctx context.Context, event domain.OrderLifecycleEvent) error {
	var err error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		err = c.handler.Handle(ctx, event)
		if err == nil || isFinal(err) {
			return err
		}

		c.logger.Warn("lifecycle event failed, retrying",
			zap.String("order_id", string(event.Order.ID)),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-time.After(c.opts.RetryBackoff * time.Duration(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func isFinal(err error) bool {
	var failure *domain.CompletionFailure
	return errors.As(err, &failure) ||
		errors.Is(err, service.ErrDuplicateEvent) ||
		errors.Is(err, service.ErrUnknownEvent) ||
		errors.Is(err, domain.ErrInventoryConsistency) ||
		errors.Is(err, domain.ErrInconsistentStock) ||
		errors.Is(err, domain.ErrIncompatibleMetric)
}

// done marks msg handled and commits the highest offset of its partition
// below which every message has been handled.
func (c *LifecycleConsumer) done(ctx context.Context, msg kafka.Message) {
	c.offsets.markDone(msg, func(upTo kafka.Message) {
		if err := c.reader.CommitMessages(context.WithoutCancel(ctx), upTo); err != nil {
			c.logger.Error("failed to commit lifecycle message",
				zap.Int("partition", upTo.Partition),
				zap.Int64("offset", upTo.Offset),
				zap.Error(err),
			)
		}
	})
}

func (c *LifecycleConsumer) Close() error {
	return c.reader.Close()
}

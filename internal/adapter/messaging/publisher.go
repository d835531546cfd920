package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/rl1809/salespoint-inventory/internal/core/domain"
)

type reportMessage struct {
	OrderID     domain.OrderIdentifier  `json:"order_id"`
	Succeeded   bool                    `json:"succeeded"`
	Completions []domain.LineCompletion `json:"completions"`
	PublishedAt time.Time               `json:"published_at"`
}

// ReportPublisher writes completion reports keyed by order id.
type ReportPublisher struct {
	writer MessageWriter
	logger *zap.Logger
}

func NewReportPublisher(writer MessageWriter, logger *zap.Logger) *ReportPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportPublisher{writer: writer, logger: logger}
}

func (p *ReportPublisher) PublishReport(ctx context.Context, report domain.CompletionReport) error {
	payload, err := json.Marshal(reportMessage{
		OrderID:     report.OrderID,
		Succeeded:   report.Succeeded(),
		Completions: report.Completions,
		PublishedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal completion report: %w", err)
	}

	msg := kafka.Message{
		Key:     []byte(report.OrderID),
		Value:   payload,
		Headers: injectTraceContext(ctx),
		Time:    time.Now().UTC(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write completion report: %w", err)
	}

	p.logger.Debug("completion report published",
		zap.String("order_id", string(report.OrderID)),
		zap.Bool("succeeded", report.Succeeded()),
	)
	return nil
}

func (p *ReportPublisher) Close() error {
	return p.writer.Close()
}

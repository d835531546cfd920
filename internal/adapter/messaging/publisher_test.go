package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rl1809/salespoint-inventory/internal/core/domain"
)

func TestPublishReport(t *testing.T) {
	writer := &fakeWriter{}
	p := NewReportPublisher(writer, nil)

	order := testOrder("order-1")
	report := domain.NewCompletionReport(order, []domain.LineCompletion{
		domain.LineInsufficientStock(order.Lines[0]),
	})

	if err := p.PublishReport(context.Background(), report); err != nil {
		t.Fatalf("PublishReport failed: %v", err)
	}
	if len(writer.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(writer.messages))
	}

	msg := writer.messages[0]
	if string(msg.Key) != "order-1" {
		t.Errorf("expected key order-1, got %s", msg.Key)
	}

	var got reportMessage
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if got.OrderID != "order-1" || got.Succeeded {
		t.Errorf("unexpected payload: %+v", got)
	}
	if len(got.Completions) != 1 || got.Completions[0].Outcome != domain.LineFailed {
		t.Errorf("expected one failed completion, got %+v", got.Completions)
	}
	if got.Completions[0].Reason != domain.ReasonInsufficientStock {
		t.Errorf("unexpected reason: %s", got.Completions[0].Reason)
	}
}

func TestPublishReport_WriterError(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker down")}
	p := NewReportPublisher(writer, nil)

	report := domain.NewCompletionReport(testOrder("order-1"), nil)
	if err := p.PublishReport(context.Background(), report); err == nil {
		t.Error("expected error when the writer fails")
	}
}

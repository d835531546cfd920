package port

import (
	"context"

	"github.com/rl1809/salespoint-inventory/internal/core/domain"
)

type ReportPublisher interface {
	PublishReport(ctx context.Context, report domain.CompletionReport) error
}

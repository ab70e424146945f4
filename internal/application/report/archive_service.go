package report

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ContentTypeXLSX is the MIME type of rendered workbooks
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ValuationRenderer turns a valuation into a downloadable file
type ValuationRenderer interface {
	RenderStockValuation(v *StockValuationResponse) ([]byte, error)
}

// ArchiveStore keeps report files; Put returns the stored object key
type ArchiveStore interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// ArchiveService snapshots the stock valuation into the archive store. The
// scheduled valuation job runs it.
type ArchiveService struct {
	reports  *ReportService
	renderer ValuationRenderer
	store    ArchiveStore
	logger   *zap.Logger
}

func NewArchiveService(reports *ReportService, renderer ValuationRenderer, store ArchiveStore, logger *zap.Logger) *ArchiveService {
	return &ArchiveService{reports: reports, renderer: renderer, store: store, logger: logger}
}

// ValuationFileName names a snapshot by its generation time
func ValuationFileName(at time.Time) string {
	return fmt.Sprintf("stock-valuation-%s.xlsx", at.UTC().Format("20060102T150405Z"))
}

// ExportStockValuation renders the current valuation and returns the file
// bytes with its suggested name
func (s *ArchiveService) ExportStockValuation(ctx context.Context) ([]byte, string, error) {
	v, err := s.reports.StockValuation(ctx)
	if err != nil {
		return nil, "", err
	}
	data, err := s.renderer.RenderStockValuation(v)
	if err != nil {
		return nil, "", fmt.Errorf("render stock valuation: %w", err)
	}
	return data, ValuationFileName(v.GeneratedAt), nil
}

// ArchiveStockValuation renders the valuation and uploads it, returning the
// object key
func (s *ArchiveService) ArchiveStockValuation(ctx context.Context) (string, error) {
	if s.store == nil {
		return "", fmt.Errorf("%w: object storage is disabled", shared.ErrPreconditionViolation)
	}
	ctx, span := telemetry.StartSpan(ctx, "report.archive_stock_valuation")
	defer span.End()

	data, name, err := s.ExportStockValuation(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return "", err
	}
	key, err := s.store.Put(ctx, name, data, ContentTypeXLSX)
	if err != nil {
		telemetry.RecordError(span, err)
		return "", err
	}

	telemetry.SetAttributes(span, "archive.key", key, "archive.bytes", len(data))
	telemetry.SetOK(span)
	s.logger.Info("stock valuation archived", zap.String("key", key), zap.Int("bytes", len(data)))
	return key, nil
}

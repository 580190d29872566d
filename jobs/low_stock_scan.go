package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stocktrail/stocktrail/internal/ledger"
)

// LowStockLister reads stock records at or below a threshold.
type LowStockLister interface {
	LowStock(ctx context.Context, threshold int64) ([]ledger.StockRecord, error)
}

// GaugeSetter publishes the scan result to metrics.
type GaugeSetter interface {
	SetLowStockCount(count int)
}

// LowStockScanJob flags stock records that need replenishment.
type LowStockScanJob struct {
	repo    LowStockLister
	logger  *slog.Logger
	metrics GaugeSetter
}

// NewLowStockScanJob initialises the scan handler.
func NewLowStockScanJob(repo LowStockLister, logger *slog.Logger, metrics GaugeSetter) *LowStockScanJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &LowStockScanJob{repo: repo, logger: logger, metrics: metrics}
}

// Handle executes the low-stock scan.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.repo == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Threshold <= 0 {
		payload.Threshold = 5
	}

	start := time.Now()
	records, err := j.repo.LowStock(ctx, payload.Threshold)
	if err != nil {
		j.logger.Error("low stock scan failed", slog.Any("error", err))
		return err
	}

	for _, rec := range records {
		j.logger.Warn("low stock",
			slog.Int64("store_id", rec.StoreID),
			slog.Int64("product_id", rec.ProductID),
			slog.Int64("quantity", rec.Quantity),
		)
	}
	if j.metrics != nil {
		j.metrics.SetLowStockCount(len(records))
	}

	j.logger.Info("completed low stock scan",
		slog.Int64("threshold", payload.Threshold),
		slog.Int("flagged", len(records)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

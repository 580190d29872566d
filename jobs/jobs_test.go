package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/stocktrail/stocktrail/internal/ledger"
)

type fakeLister struct {
	records       []ledger.StockRecord
	err           error
	lastThreshold int64
}

func (f *fakeLister) LowStock(ctx context.Context, threshold int64) ([]ledger.StockRecord, error) {
	f.lastThreshold = threshold
	return f.records, f.err
}

type fakeGauge struct {
	last int
	set  bool
}

func (f *fakeGauge) SetLowStockCount(count int) {
	f.last = count
	f.set = true
}

func TestLowStockScanHandle(t *testing.T) {
	lister := &fakeLister{records: []ledger.StockRecord{
		{StoreID: 1, ProductID: 2, Quantity: 3},
		{StoreID: 1, ProductID: 5, Quantity: 0},
	}}
	gauge := &fakeGauge{}
	job := NewLowStockScanJob(lister, nil, gauge)

	task, err := NewLowStockScanTask(LowStockScanPayload{Threshold: 4})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, int64(4), lister.lastThreshold)
	require.True(t, gauge.set)
	require.Equal(t, 2, gauge.last)
}

func TestLowStockScanDefaultsThreshold(t *testing.T) {
	lister := &fakeLister{}
	job := NewLowStockScanJob(lister, nil, nil)

	task, err := NewLowStockScanTask(LowStockScanPayload{})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, int64(5), lister.lastThreshold)
}

func TestLowStockScanSkipsRetryOnBadPayload(t *testing.T) {
	job := NewLowStockScanJob(&fakeLister{}, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskLowStockScan, []byte("{broken")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestLowStockScanPropagatesRepoError(t *testing.T) {
	lister := &fakeLister{err: errors.New("connection reset")}
	job := NewLowStockScanJob(lister, nil, nil)

	task, err := NewLowStockScanTask(LowStockScanPayload{Threshold: 5})
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
}

type fakePruner struct {
	removed   int64
	err       error
	olderThan time.Duration
}

func (f *fakePruner) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.olderThan = olderThan
	return f.removed, f.err
}

func TestIdempotencyCleanupHandle(t *testing.T) {
	pruner := &fakePruner{removed: 12}
	job := NewIdempotencyCleanupJob(pruner, nil)

	task, err := NewIdempotencyCleanupTask(IdempotencyCleanupPayload{RetentionHours: 48})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 48*time.Hour, pruner.olderThan)
}

func TestIdempotencyCleanupDefaultsRetention(t *testing.T) {
	pruner := &fakePruner{}
	job := NewIdempotencyCleanupJob(pruner, nil)

	task, err := NewIdempotencyCleanupTask(IdempotencyCleanupPayload{})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 7*24*time.Hour, pruner.olderThan)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"queue":"default","pending":0}`, rec.Body.String())
}

func TestAdminTriggerWithoutClient(t *testing.T) {
	r := chi.NewRouter()
	NewAdminHandler(nil, nil).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/low-stock-scan", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

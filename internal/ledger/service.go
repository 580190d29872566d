package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/stocktrail/stocktrail/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListStock(ctx context.Context, storeID int64) ([]StockView, error)
	RecentHistory(ctx context.Context, storeID int64, limit int) ([]HistoryEntry, error)
	RevenueSummary(ctx context.Context, storeID int64, since int) (RevenueSummary, error)
}

// IdempotencyPort suppresses replays of requests carrying a request id.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Recorder counts applied transactions per outcome.
type Recorder interface {
	RecordTransaction(outcome string)
}

const (
	// DefaultHistoryLimit caps history reads when callers omit a limit.
	DefaultHistoryLimit = 50
	// MaxHistoryLimit is the hard ceiling for history reads.
	MaxHistoryLimit = 50

	idempotencyModule = "ledger"
)

// Service is the transaction engine. It applies signed quantity deltas to
// stock records and appends audit entries as a single all-or-nothing unit,
// delegating correctness under concurrency to the storage layer's
// conditional write.
type Service struct {
	repo         RepositoryPort
	idempotency  IdempotencyPort
	publisher    Publisher
	cache        *Cache
	metrics      Recorder
	historyLimit int
	flight       singleflight.Group
}

// NewService builds Service. Publisher, cache, idempotency and metrics are
// optional; a nil value disables the corresponding side channel.
func NewService(repo RepositoryPort, idem IdempotencyPort, publisher Publisher, cache *Cache, metrics Recorder) *Service {
	return &Service{
		repo:         repo,
		idempotency:  idem,
		publisher:    publisher,
		cache:        cache,
		metrics:      metrics,
		historyLimit: DefaultHistoryLimit,
	}
}

// SetDefaultHistoryLimit overrides the limit used when history callers omit
// one. Values outside (0, MaxHistoryLimit] are ignored.
func (s *Service) SetDefaultHistoryLimit(limit int) {
	if limit > 0 && limit <= MaxHistoryLimit {
		s.historyLimit = limit
	}
}

// Apply validates and applies one transaction request. On success exactly
// one stock record is mutated and exactly one audit entry appended, both
// durable before return. On any failure the storage is left untouched.
func (s *Service) Apply(ctx context.Context, req TransactionRequest) (Result, error) {
	if err := validateRequest(req); err != nil {
		s.record("invalid")
		return Result{}, err
	}

	var key string
	if req.RequestID != "" && s.idempotency != nil {
		key = fmt.Sprintf("tx:%s", req.RequestID)
		if err := s.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				s.record("duplicate")
				return Result{}, ErrDuplicateRequest
			}
			s.record("storage_failure")
			return Result{}, err
		}
	}

	var result Result
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		quantity, err := tx.ApplyDelta(ctx, req.StoreID, req.ProductID, req.Amount)
		if err != nil {
			return err
		}
		if _, err := tx.InsertAuditEntry(ctx, AuditEntry{
			StoreID:      req.StoreID,
			ProductID:    req.ProductID,
			ChangeAmount: req.Amount,
			Reason:       req.Reason,
		}); err != nil {
			return err
		}
		result = Result{StoreID: req.StoreID, ProductID: req.ProductID, QuantityAfter: quantity}
		return nil
	})
	if err != nil {
		// A rejected or failed unit must leave no trace, including the
		// idempotency key: the same request id stays usable after the
		// caller restocks or the storage recovers.
		if key != "" {
			_ = s.idempotency.Delete(ctx, key)
		}
		s.record(outcomeOf(err))
		return Result{}, err
	}

	s.record("applied")
	s.afterCommit(ctx, req, result)
	return result, nil
}

// ApplyBatch applies a multi-line checkout as one atomic unit: either every
// line's delta and audit entry commit together, or none do.
func (s *Service) ApplyBatch(ctx context.Context, reqs []TransactionRequest) ([]Result, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrInvalidRequest)
	}
	for _, req := range reqs {
		if err := validateRequest(req); err != nil {
			s.record("invalid")
			return nil, err
		}
	}

	results := make([]Result, 0, len(reqs))
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, req := range reqs {
			quantity, err := tx.ApplyDelta(ctx, req.StoreID, req.ProductID, req.Amount)
			if err != nil {
				return err
			}
			if _, err := tx.InsertAuditEntry(ctx, AuditEntry{
				StoreID:      req.StoreID,
				ProductID:    req.ProductID,
				ChangeAmount: req.Amount,
				Reason:       req.Reason,
			}); err != nil {
				return err
			}
			results = append(results, Result{StoreID: req.StoreID, ProductID: req.ProductID, QuantityAfter: quantity})
		}
		return nil
	})
	if err != nil {
		s.record(outcomeOf(err))
		return nil, err
	}

	s.record("applied_batch")
	for i, req := range reqs {
		s.afterCommit(ctx, req, results[i])
	}
	return results, nil
}

// CurrentStock returns the store's stock joined with product metadata. Reads
// go through the versioned cache when configured; concurrent misses for the
// same store collapse into a single database query.
func (s *Service) CurrentStock(ctx context.Context, storeID int64) ([]StockView, error) {
	if storeID == 0 {
		return nil, fmt.Errorf("%w: store required", ErrInvalidRequest)
	}
	if s.cache == nil {
		return s.repo.ListStock(ctx, storeID)
	}
	key, err := s.cache.BuildKey(ctx, "stock", fmt.Sprintf("%d", storeID))
	if err != nil {
		return s.repo.ListStock(ctx, storeID)
	}
	v, err, _ := s.flight.Do(key, func() (any, error) {
		var views []StockView
		err := s.cache.FetchJSON(ctx, key, &views, func(ctx context.Context) (any, error) {
			return s.repo.ListStock(ctx, storeID)
		})
		return views, err
	})
	if err != nil {
		return nil, err
	}
	return v.([]StockView), nil
}

// RecentHistory lists the latest audit entries of a store, newest first.
func (s *Service) RecentHistory(ctx context.Context, storeID int64, limit int) ([]HistoryEntry, error) {
	if storeID == 0 {
		return nil, fmt.Errorf("%w: store required", ErrInvalidRequest)
	}
	if limit <= 0 {
		limit = s.historyLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return s.repo.RecentHistory(ctx, storeID, limit)
}

// Revenue aggregates sales of the store over the trailing number of days.
func (s *Service) Revenue(ctx context.Context, storeID int64, days int) (RevenueSummary, error) {
	if storeID == 0 {
		return RevenueSummary{}, fmt.Errorf("%w: store required", ErrInvalidRequest)
	}
	if days <= 0 {
		days = 7
	}
	return s.repo.RevenueSummary(ctx, storeID, days)
}

func (s *Service) afterCommit(ctx context.Context, req TransactionRequest, result Result) {
	if s.cache != nil {
		_ = s.cache.Bump(ctx)
	}
	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, StockChangedEvent{
			StoreID:       req.StoreID,
			ProductID:     req.ProductID,
			ChangeAmount:  req.Amount,
			QuantityAfter: result.QuantityAfter,
			Reason:        req.Reason,
			OccurredAt:    time.Now().UTC(),
		})
	}
}

func (s *Service) record(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordTransaction(outcome)
	}
}

func validateRequest(req TransactionRequest) error {
	if req.StoreID == 0 || req.ProductID == 0 {
		return fmt.Errorf("%w: store and product required", ErrInvalidRequest)
	}
	if req.Amount == 0 {
		return fmt.Errorf("%w: amount must be non-zero", ErrInvalidRequest)
	}
	if req.RequestID != "" {
		if _, err := uuid.Parse(req.RequestID); err != nil {
			return fmt.Errorf("%w: malformed request id", ErrInvalidRequest)
		}
	}
	return nil
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrStockNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid"
	default:
		return "storage_failure"
	}
}

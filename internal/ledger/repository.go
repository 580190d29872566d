package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stocktrail/stocktrail/internal/platform/db"
)

// Repository persists stock records and audit entries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations available inside one atomic unit of
// work. The conditional delta and the audit append always travel together.
type TxRepository interface {
	ApplyDelta(ctx context.Context, storeID, productID, amount int64) (int64, error)
	InsertAuditEntry(ctx context.Context, entry AuditEntry) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a read-committed transaction. Any
// error from the callback rolls the whole unit back.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// ApplyDelta performs the single atomic conditional write: the quantity is
// adjusted only when the resulting value stays non-negative, guarded by the
// storage engine's own row-level concurrency control. Zero affected rows is
// refined into ErrStockNotFound or ErrInsufficientStock through a read-only
// probe that never participates in the write path.
func (r *txRepository) ApplyDelta(ctx context.Context, storeID, productID, amount int64) (int64, error) {
	var quantity int64
	err := r.tx.QueryRow(ctx, `UPDATE stock_records
SET quantity = quantity + $1, last_updated = NOW()
WHERE store_id = $2 AND product_id = $3 AND quantity + $1 >= 0
RETURNING quantity`, amount, storeID, productID).Scan(&quantity)
	if err == nil {
		return quantity, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("ledger: apply delta: %w", err)
	}
	var exists bool
	if probeErr := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stock_records WHERE store_id = $1 AND product_id = $2)`, storeID, productID).Scan(&exists); probeErr != nil {
		return 0, fmt.Errorf("ledger: probe stock record: %w", probeErr)
	}
	if !exists {
		return 0, ErrStockNotFound
	}
	return 0, ErrInsufficientStock
}

func (r *txRepository) InsertAuditEntry(ctx context.Context, entry AuditEntry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO audit_entries (store_id, product_id, change_amount, reason, created_at)
VALUES ($1, $2, $3, $4, NOW()) RETURNING id`, entry.StoreID, entry.ProductID, entry.ChangeAmount, entry.Reason).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ledger: insert audit entry: %w", err)
	}
	return id, nil
}

// ListStock returns the current stock of one store joined with product
// metadata.
func (r *Repository) ListStock(ctx context.Context, storeID int64) ([]StockView, error) {
	if r == nil {
		return nil, errors.New("ledger repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.sku, p.name, p.price, i.quantity, i.last_updated
FROM stock_records i
JOIN products p ON p.id = i.product_id
WHERE i.store_id = $1
ORDER BY p.name ASC`, storeID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list stock: %w", err)
	}
	defer rows.Close()
	views := []StockView{}
	for rows.Next() {
		var v StockView
		if err := rows.Scan(&v.ProductID, &v.SKU, &v.Name, &v.Price, &v.Quantity, &v.LastUpdated); err != nil {
			return nil, fmt.Errorf("ledger: scan stock row: %w", err)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: list stock rows: %w", err)
	}
	return views, nil
}

// RecentHistory returns the latest audit entries of one store, newest first.
func (r *Repository) RecentHistory(ctx context.Context, storeID int64, limit int) ([]HistoryEntry, error) {
	if r == nil {
		return nil, errors.New("ledger repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT l.id, l.product_id, p.name, p.price, l.change_amount, l.reason, l.created_at
FROM audit_entries l
JOIN products p ON p.id = l.product_id
WHERE l.store_id = $1
ORDER BY l.created_at DESC, l.id DESC
LIMIT $2`, storeID, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: recent history: %w", err)
	}
	defer rows.Close()
	entries := []HistoryEntry{}
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.ProductName, &e.Price, &e.ChangeAmount, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ledger: scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: history rows: %w", err)
	}
	return entries, nil
}

// RevenueSummary aggregates sales (negative deltas) of one store since the
// given cutoff.
func (r *Repository) RevenueSummary(ctx context.Context, storeID int64, since int) (RevenueSummary, error) {
	if r == nil {
		return RevenueSummary{}, errors.New("ledger repository not initialised")
	}
	summary := RevenueSummary{StoreID: storeID}
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(-l.change_amount * p.price), 0),
       COUNT(*),
       COALESCE(SUM(-l.change_amount), 0)
FROM audit_entries l
JOIN products p ON p.id = l.product_id
WHERE l.store_id = $1 AND l.change_amount < 0 AND l.created_at >= NOW() - make_interval(days => $2)`, storeID, since).
		Scan(&summary.Revenue, &summary.Orders, &summary.UnitsSold)
	if err != nil {
		return RevenueSummary{}, fmt.Errorf("ledger: revenue summary: %w", err)
	}
	return summary, nil
}

// LowStock lists stock records at or below the threshold across all stores.
func (r *Repository) LowStock(ctx context.Context, threshold int64) ([]StockRecord, error) {
	if r == nil {
		return nil, errors.New("ledger repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT store_id, product_id, quantity, last_updated
FROM stock_records
WHERE quantity <= $1
ORDER BY store_id, product_id`, threshold)
	if err != nil {
		return nil, fmt.Errorf("ledger: low stock: %w", err)
	}
	defer rows.Close()
	records := []StockRecord{}
	for rows.Next() {
		var rec StockRecord
		if err := rows.Scan(&rec.StoreID, &rec.ProductID, &rec.Quantity, &rec.LastUpdated); err != nil {
			return nil, fmt.Errorf("ledger: scan low stock row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: low stock rows: %w", err)
	}
	return records, nil
}

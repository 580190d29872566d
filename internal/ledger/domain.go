package ledger

import (
	"errors"
	"time"
)

// StockRecord is the durable quantity-on-hand entry for one (store, product)
// pair. It is mutated exclusively through the transaction engine.
type StockRecord struct {
	StoreID     int64
	ProductID   int64
	Quantity    int64
	LastUpdated time.Time
}

// AuditEntry is one immutable ledger row recording a single applied quantity
// change. Entries are append-only: never updated, never deleted.
type AuditEntry struct {
	ID           int64
	StoreID      int64
	ProductID    int64
	ChangeAmount int64
	Reason       string
	CreatedAt    time.Time
}

// TransactionRequest describes one requested stock delta. Amount is signed:
// negative for stock-out (sale), positive for stock-in (restock).
type TransactionRequest struct {
	StoreID   int64
	ProductID int64
	Amount    int64
	Reason    string
	RequestID string
}

// Result reports the outcome of a successfully applied transaction.
type Result struct {
	StoreID       int64
	ProductID     int64
	QuantityAfter int64
}

// StockView is a stock record joined with product metadata for read queries.
type StockView struct {
	ProductID   int64     `json:"product_id"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Quantity    int64     `json:"quantity"`
	LastUpdated time.Time `json:"last_updated"`
}

// HistoryEntry is an audit entry enriched with product name and price.
type HistoryEntry struct {
	ID           int64     `json:"id"`
	ProductID    int64     `json:"product_id"`
	ProductName  string    `json:"product_name"`
	Price        float64   `json:"price"`
	ChangeAmount int64     `json:"change_amount"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

// RevenueSummary aggregates sales over recent audit entries.
type RevenueSummary struct {
	StoreID   int64   `json:"store_id"`
	Revenue   float64 `json:"revenue"`
	Orders    int64   `json:"orders"`
	UnitsSold int64   `json:"units_sold"`
}

// ErrInvalidRequest indicates a malformed transaction request. Rejected
// before any storage access.
var ErrInvalidRequest = errors.New("ledger: invalid transaction request")

// ErrInsufficientStock triggered when applying the delta would drive the
// quantity negative.
var ErrInsufficientStock = errors.New("ledger: insufficient stock")

// ErrStockNotFound indicates the (store, product) pairing was never
// provisioned.
var ErrStockNotFound = errors.New("ledger: stock record not found")

// ErrDuplicateRequest indicates the request id was already processed.
var ErrDuplicateRequest = errors.New("ledger: duplicate request")

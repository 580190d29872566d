package ledger

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stocktrail/stocktrail/internal/platform/httpx"
)

// EngineService defines the business contract the transport layer calls into.
type EngineService interface {
	Apply(ctx context.Context, req TransactionRequest) (Result, error)
	ApplyBatch(ctx context.Context, reqs []TransactionRequest) ([]Result, error)
	CurrentStock(ctx context.Context, storeID int64) ([]StockView, error)
	RecentHistory(ctx context.Context, storeID int64, limit int) ([]HistoryEntry, error)
	Revenue(ctx context.Context, storeID int64, days int) (RevenueSummary, error)
}

// Handler wires HTTP endpoints for the ledger module.
type Handler struct {
	logger    *slog.Logger
	service   EngineService
	validator *validator.Validate
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service EngineService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/inventory/transaction", h.handleTransaction)
	r.Post("/inventory/checkout", h.handleCheckout)
	r.Get("/inventory", h.handleCurrentStock)
	r.Get("/logs", h.handleHistory)
	r.Get("/reports/revenue", h.handleRevenue)
}

type transactionPayload struct {
	StoreID   int64  `json:"store_id" validate:"required"`
	ProductID int64  `json:"product_id" validate:"required"`
	Amount    int64  `json:"amount" validate:"required"`
	Reason    string `json:"reason"`
	RequestID string `json:"request_id" validate:"omitempty,uuid"`
}

type checkoutLine struct {
	ProductID int64  `json:"product_id" validate:"required"`
	Amount    int64  `json:"amount" validate:"required"`
	Reason    string `json:"reason"`
}

type checkoutPayload struct {
	StoreID int64          `json:"store_id" validate:"required"`
	Lines   []checkoutLine `json:"lines" validate:"required,min=1,dive"`
}

type transactionResponse struct {
	Success       bool  `json:"success"`
	QuantityAfter int64 `json:"quantity_after"`
}

type checkoutResponse struct {
	Success bool     `json:"success"`
	Results []Result `json:"results"`
}

type stockResponse struct {
	StoreID int64       `json:"store_id"`
	Data    []StockView `json:"data"`
}

func (h *Handler) handleTransaction(w http.ResponseWriter, r *http.Request) {
	var payload transactionPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "store_id, product_id and a non-zero amount are required")
		return
	}

	result, err := h.service.Apply(r.Context(), TransactionRequest{
		StoreID:   payload.StoreID,
		ProductID: payload.ProductID,
		Amount:    payload.Amount,
		Reason:    payload.Reason,
		RequestID: payload.RequestID,
	})
	if err != nil {
		h.respondError(w, "apply transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, transactionResponse{Success: true, QuantityAfter: result.QuantityAfter})
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var payload checkoutPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "store_id and at least one line with a non-zero amount are required")
		return
	}

	reqs := make([]TransactionRequest, 0, len(payload.Lines))
	for _, line := range payload.Lines {
		reqs = append(reqs, TransactionRequest{
			StoreID:   payload.StoreID,
			ProductID: line.ProductID,
			Amount:    line.Amount,
			Reason:    line.Reason,
		})
	}
	results, err := h.service.ApplyBatch(r.Context(), reqs)
	if err != nil {
		h.respondError(w, "apply checkout batch", err)
		return
	}
	httpx.JSON(w, http.StatusOK, checkoutResponse{Success: true, Results: results})
}

func (h *Handler) handleCurrentStock(w http.ResponseWriter, r *http.Request) {
	storeID, err := queryInt64(r, "store_id")
	if err != nil || storeID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "store_id is required")
		return
	}
	views, err := h.service.CurrentStock(r.Context(), storeID)
	if err != nil {
		h.respondError(w, "load current stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stockResponse{StoreID: storeID, Data: views})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	storeID, err := queryInt64(r, "store_id")
	if err != nil || storeID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "store_id is required")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	entries, err := h.service.RecentHistory(r.Context(), storeID, limit)
	if err != nil {
		h.respondError(w, "load history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) handleRevenue(w http.ResponseWriter, r *http.Request) {
	storeID, err := queryInt64(r, "store_id")
	if err != nil || storeID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "store_id is required")
		return
	}
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "days must be a positive integer")
			return
		}
		days = parsed
	}
	summary, err := h.service.Revenue(r.Context(), storeID, days)
	if err != nil {
		h.respondError(w, "load revenue summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrStockNotFound):
		httpx.Problem(w, http.StatusConflict, "Transaction Rejected", "cannot complete: insufficient stock or unknown product")
	case errors.Is(err, ErrDuplicateRequest):
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", "this request was already processed")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "temporary storage failure, please try again")
	}
}

func queryInt64(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

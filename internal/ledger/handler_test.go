package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type stubEngine struct {
	applyResult  Result
	applyErr     error
	batchResults []Result
	batchErr     error
	stock        []StockView
	history      []HistoryEntry
	revenue      RevenueSummary

	lastRequest TransactionRequest
	lastBatch   []TransactionRequest
	lastLimit   int
	lastDays    int
}

func (s *stubEngine) Apply(ctx context.Context, req TransactionRequest) (Result, error) {
	s.lastRequest = req
	return s.applyResult, s.applyErr
}

func (s *stubEngine) ApplyBatch(ctx context.Context, reqs []TransactionRequest) ([]Result, error) {
	s.lastBatch = reqs
	return s.batchResults, s.batchErr
}

func (s *stubEngine) CurrentStock(ctx context.Context, storeID int64) ([]StockView, error) {
	return s.stock, nil
}

func (s *stubEngine) RecentHistory(ctx context.Context, storeID int64, limit int) ([]HistoryEntry, error) {
	s.lastLimit = limit
	return s.history, nil
}

func (s *stubEngine) Revenue(ctx context.Context, storeID int64, days int) (RevenueSummary, error) {
	s.lastDays = days
	return s.revenue, nil
}

func newTestRouter(engine EngineService) http.Handler {
	r := chi.NewRouter()
	NewHandler(nil, engine).MountRoutes(r)
	return r
}

func TestHandleTransactionOK(t *testing.T) {
	engine := &stubEngine{applyResult: Result{StoreID: 1, ProductID: 2, QuantityAfter: 9}}
	router := newTestRouter(engine)

	body := `{"store_id":1,"product_id":2,"amount":-1,"reason":"SALE"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/inventory/transaction", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp transactionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, int64(9), resp.QuantityAfter)
	require.Equal(t, int64(-1), engine.lastRequest.Amount)
	require.Equal(t, "SALE", engine.lastRequest.Reason)
}

func TestHandleTransactionValidation(t *testing.T) {
	router := newTestRouter(&stubEngine{})

	cases := map[string]string{
		"malformed json":  `{"store_id":`,
		"missing store":   `{"product_id":2,"amount":-1}`,
		"missing product": `{"store_id":1,"amount":-1}`,
		"zero amount":     `{"store_id":1,"product_id":2,"amount":0}`,
		"bad request id":  `{"store_id":1,"product_id":2,"amount":-1,"request_id":"nope"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/inventory/transaction", strings.NewReader(body)))
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleTransactionErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"insufficient stock", ErrInsufficientStock, http.StatusConflict},
		{"unknown product", ErrStockNotFound, http.StatusConflict},
		{"duplicate request", ErrDuplicateRequest, http.StatusConflict},
		{"invalid request", ErrInvalidRequest, http.StatusBadRequest},
		{"storage failure", errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&stubEngine{applyErr: tc.err})
			body := `{"store_id":1,"product_id":2,"amount":-1}`
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/inventory/transaction", strings.NewReader(body)))
			require.Equal(t, tc.wantStatus, rec.Code)
			require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestHandleTransactionHidesStorageDetail(t *testing.T) {
	router := newTestRouter(&stubEngine{applyErr: errors.New("pq: relation stock_records does not exist")})
	body := `{"store_id":1,"product_id":2,"amount":-1}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/inventory/transaction", strings.NewReader(body)))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "stock_records")
	require.Contains(t, rec.Body.String(), "temporary storage failure")
}

func TestHandleCheckout(t *testing.T) {
	engine := &stubEngine{batchResults: []Result{
		{StoreID: 1, ProductID: 2, QuantityAfter: 8},
		{StoreID: 1, ProductID: 3, QuantityAfter: 0},
	}}
	router := newTestRouter(engine)

	body := `{"store_id":1,"lines":[{"product_id":2,"amount":-2,"reason":"POS_SALE"},{"product_id":3,"amount":-1,"reason":"POS_SALE"}]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/inventory/checkout", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, engine.lastBatch, 2)
	require.Equal(t, int64(1), engine.lastBatch[1].StoreID)

	var resp checkoutResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Len(t, resp.Results, 2)
}

func TestHandleCheckoutEmptyLines(t *testing.T) {
	router := newTestRouter(&stubEngine{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/inventory/checkout", strings.NewReader(`{"store_id":1,"lines":[]}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCheckoutConflict(t *testing.T) {
	router := newTestRouter(&stubEngine{batchErr: ErrInsufficientStock})
	body := `{"store_id":1,"lines":[{"product_id":2,"amount":-5}]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/inventory/checkout", strings.NewReader(body)))
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleCurrentStock(t *testing.T) {
	engine := &stubEngine{stock: []StockView{{ProductID: 2, Name: "iPhone 15", Quantity: 7}}}
	router := newTestRouter(engine)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inventory?store_id=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp stockResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(1), resp.StoreID)
	require.Len(t, resp.Data, 1)
	require.Equal(t, int64(7), resp.Data[0].Quantity)
}

func TestHandleCurrentStockMissingStore(t *testing.T) {
	router := newTestRouter(&stubEngine{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inventory", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHistoryLimitParsing(t *testing.T) {
	engine := &stubEngine{}
	router := newTestRouter(engine)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs?store_id=1&limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 10, engine.lastLimit)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs?store_id=1&limit=abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRevenue(t *testing.T) {
	engine := &stubEngine{revenue: RevenueSummary{StoreID: 1, Revenue: 1500, Orders: 3, UnitsSold: 5}}
	router := newTestRouter(engine)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/revenue?store_id=1&days=30", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 30, engine.lastDays)

	var resp RevenueSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, float64(1500), resp.Revenue)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/revenue?store_id=1&days=0", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

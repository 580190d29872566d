package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stocktrail/stocktrail/internal/platform/httpx"
	"github.com/stocktrail/stocktrail/internal/shared"
)

// Handler wires HTTP endpoints for catalog master data.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stores", h.handleStores)
	r.Get("/products", h.handleProducts)
	r.Get("/products/{id}", h.handleProduct)
	r.Post("/stock", h.handleProvision)
}

type provisionPayload struct {
	StoreID   int64 `json:"store_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

func (h *Handler) handleStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.service.Stores(r.Context())
	if err != nil {
		h.respondError(w, "list stores", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stores)
}

func (h *Handler) handleProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{Search: q.Get("search")}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "active must be a boolean")
			return
		}
		filters.IsActive = &active
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "limit must be a non-negative integer")
			return
		}
		filters.Limit = limit
	}

	products, err := h.service.Products(r.Context(), filters)
	if err != nil {
		h.respondError(w, "list products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) handleProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product id must be a positive integer")
		return
	}
	product, err := h.service.Product(r.Context(), id)
	if err != nil {
		h.respondError(w, "load product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) handleProvision(w http.ResponseWriter, r *http.Request) {
	var payload provisionPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if payload.StoreID == 0 || payload.ProductID == 0 || payload.Quantity < 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "store_id, product_id and a non-negative quantity are required")
		return
	}
	if err := h.service.Provision(r.Context(), payload.StoreID, payload.ProductID, payload.Quantity); err != nil {
		h.respondError(w, "provision stock", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]bool{"success": true})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", shared.UserSafeMessage(err))
}

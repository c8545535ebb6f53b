package payment

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/domain"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/httpapi"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/platform/observability"

	"go.uber.org/zap"
)

// HealthName is the service name reported by GET /health.
const HealthName = "payment"

var errQuantityFormat = errors.New("invalid quantity format")

// API serves the order endpoints.
type API struct {
	svc    *Service
	logger observability.Logger
}

// NewAPI creates the order HTTP API.
func NewAPI(svc *Service, logger observability.Logger) *API {
	return &API{svc: svc, logger: logger}
}

// Register adds the order routes to mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders", a.createOrder)
	mux.HandleFunc("GET /orders/{id}", a.getOrder)
}

func (a *API) createOrder(w http.ResponseWriter, r *http.Request) {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	productID, quantity, err := parseOrderRequest(body)
	if err != nil {
		a.writeError(w, err)
		return
	}

	order, err := a.svc.CreateOrder(r.Context(), productID, quantity)
	if err != nil {
		a.writeError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, order)
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := a.svc.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			httpapi.WriteError(w, http.StatusNotFound, "Order not found")
			return
		}
		a.logger.Error("Failed to fetch order", zap.Error(err))
		httpapi.WriteError(w, http.StatusInternalServerError, "Error fetching order")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, order)
}

// parseOrderRequest accepts {"id": "...", "quantity": n} where quantity may
// also be a numeric string.
func parseOrderRequest(body map[string]json.RawMessage) (string, int, error) {
	rawID, okID := body["id"]
	rawQty, okQty := body["quantity"]
	if !okID || !okQty || isNull(rawID) || isNull(rawQty) {
		return "", 0, ErrMissingFields
	}

	var productID string
	if err := json.Unmarshal(rawID, &productID); err != nil {
		return "", 0, ErrMissingFields
	}
	if strings.TrimSpace(productID) == "" {
		return "", 0, ErrMissingFields
	}

	quantity, err := parseQuantity(rawQty)
	if err != nil {
		return "", 0, err
	}
	return productID, quantity, nil
}

func parseQuantity(raw json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, errQuantityFormat
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errQuantityFormat
	}
	return n, nil
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	var stockErr *InsufficientStockError
	switch {
	case errors.Is(err, ErrMissingFields):
		httpapi.WriteError(w, http.StatusBadRequest, "Missing required fields: id and quantity")
	case errors.Is(err, errQuantityFormat):
		httpapi.WriteError(w, http.StatusBadRequest, "Invalid quantity format")
	case errors.Is(err, ErrInvalidQuantity):
		httpapi.WriteError(w, http.StatusBadRequest, "Quantity must be greater than 0")
	case errors.Is(err, ErrProductNotFound):
		httpapi.WriteError(w, http.StatusNotFound, "Product not found")
	case errors.As(err, &stockErr):
		httpapi.WriteError(w, http.StatusBadRequest, stockErr.Error())
	case errors.Is(err, ErrInventoryUnavailable):
		a.logger.Warn("Inventory service unavailable", zap.Error(err))
		httpapi.WriteError(w, http.StatusServiceUnavailable, "Inventory service unavailable")
	case errors.Is(err, ErrEventStreamUnavailable):
		a.logger.Error("Event stream unavailable", zap.Error(err))
		httpapi.WriteError(w, http.StatusServiceUnavailable, "Event stream unavailable")
	default:
		a.logger.Error("Failed to create order", zap.Error(err))
		httpapi.WriteError(w, http.StatusInternalServerError, "Error creating order: "+err.Error())
	}
}

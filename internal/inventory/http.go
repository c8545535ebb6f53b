package inventory

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/domain"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/httpapi"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/platform/observability"

	"go.uber.org/zap"
)

// HealthName is the service name reported by GET /health.
const HealthName = "inventory"

type productRequest struct {
	Name     *string  `json:"name"`
	Price    *float64 `json:"price"`
	Quantity *int     `json:"quantity"`
}

func (r productRequest) input() (ProductInput, bool) {
	if r.Name == nil || r.Price == nil || r.Quantity == nil {
		return ProductInput{}, false
	}
	return ProductInput{Name: *r.Name, Price: *r.Price, Quantity: *r.Quantity}, true
}

// API serves the product endpoints.
type API struct {
	svc    *Service
	logger observability.Logger
}

// NewAPI creates the product HTTP API.
func NewAPI(svc *Service, logger observability.Logger) *API {
	return &API{svc: svc, logger: logger}
}

// Register adds the product routes to mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /products", a.listProducts)
	mux.HandleFunc("POST /products", a.createProduct)
	mux.HandleFunc("GET /products/{id}", a.getProduct)
	mux.HandleFunc("PUT /products/{id}", a.updateProduct)
	mux.HandleFunc("DELETE /products/{id}", a.deleteProduct)
}

func (a *API) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.svc.List(r.Context())
	if err != nil {
		a.logger.Error("Failed to list products", zap.Error(err))
		httpapi.WriteError(w, http.StatusInternalServerError, "Error fetching products")
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	httpapi.WriteJSON(w, http.StatusOK, products)
}

func (a *API) createProduct(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeProduct(w, r)
	if !ok {
		return
	}
	p, err := a.svc.Create(r.Context(), in)
	if err != nil {
		a.writeError(w, err, "Error creating product")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, p)
}

func (a *API) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := a.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, err, "Error fetching product")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, p)
}

func (a *API) updateProduct(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeProduct(w, r)
	if !ok {
		return
	}
	p, err := a.svc.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		a.writeError(w, err, "Error updating product")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, p)
}

func (a *API) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		a.writeError(w, err, "Error deleting product")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}

func decodeProduct(w http.ResponseWriter, r *http.Request) (ProductInput, bool) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return ProductInput{}, false
	}
	in, ok := req.input()
	if !ok {
		httpapi.WriteError(w, http.StatusBadRequest, "Missing required fields: name, price and quantity")
		return ProductInput{}, false
	}
	return in, true
}

func (a *API) writeError(w http.ResponseWriter, err error, fallback string) {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		httpapi.WriteError(w, http.StatusNotFound, "Product not found")
	case errors.As(err, &verr):
		httpapi.WriteError(w, http.StatusBadRequest, verr.Error())
	default:
		a.logger.Error(fallback, zap.Error(err))
		httpapi.WriteError(w, http.StatusInternalServerError, fallback+": "+err.Error())
	}
}

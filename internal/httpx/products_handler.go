package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductStore is satisfied by *postgres.CatalogRepo.
type ProductStore interface {
	Get(ctx context.Context, productID string) (*catalog.Product, error)
	List(ctx context.Context, f catalog.Filter) ([]catalog.Product, error)
	Create(ctx context.Context, p *catalog.Product) error
	Update(ctx context.Context, p *catalog.Product) error
	Delete(ctx context.Context, productID string) error
}

type ProductsHandler struct {
	Products ProductStore
	Log      *zap.Logger
}

func (h *ProductsHandler) Register(r chi.Router, auth *Auth) {
	r.Get("/products", h.list(func(r *http.Request) catalog.Filter {
		return catalog.Filter{Search: r.URL.Query().Get("search")}
	}))
	r.Get("/products/new-arrivals", h.list(func(*http.Request) catalog.Filter {
		return catalog.Filter{NewArrivals: true}
	}))
	r.Get("/products/discounts", h.list(func(*http.Request) catalog.Filter {
		return catalog.Filter{DiscountOnly: true}
	}))
	r.Get("/products/{id}", h.getProduct)
	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate, auth.RequireAdmin)
		r.Post("/products", h.createProduct)
		r.Put("/products/{id}", h.updateProduct)
		r.Delete("/products/{id}", h.deleteProduct)
	})
}

func (h *ProductsHandler) fail(w http.ResponseWriter, err error) {
	log := h.Log
	if log == nil {
		log = zap.NewNop()
	}
	writeOrderError(w, log, err)
}

func (h *ProductsHandler) list(filter func(*http.Request) catalog.Filter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := filter(r)
		f.Category = r.URL.Query().Get("category")

		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		ps, err := h.Products.List(ctx, f)
		if err != nil {
			h.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ps)
	}
}

func productID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if uuid.Validate(id) != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return "", false
	}
	return id, true
}

func (h *ProductsHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Products.Get(ctx, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Products.Create(ctx, &p); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"insertedId": p.ID, "product": p})
}

func (h *ProductsHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	var p catalog.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	p.ID = id

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Products.Update(ctx, &p); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	err := h.Products.Delete(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}

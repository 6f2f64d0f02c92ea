package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// OrderEngine is satisfied by *orders.Manager.
type OrderEngine interface {
	PlaceOrder(ctx context.Context, req orders.PlaceRequest) (*orders.Order, error)
	ChangeStatus(ctx context.Context, orderID string, to orders.Status) (*orders.Order, error)
}

type OrderStore interface {
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	List(ctx context.Context) ([]orders.Order, error)
	Delete(ctx context.Context, orderID string) error
}

type OrderCache interface {
	Get(ctx context.Context, orderID string) (*orders.Order, bool)
	Put(ctx context.Context, o *orders.Order) error
	Invalidate(ctx context.Context, orderID string) error
}

type IdempotencyStore interface {
	Begin(ctx context.Context, key string) (orderID string, started bool, err error)
	Complete(ctx context.Context, key, orderID string) error
	Release(ctx context.Context, key string) error
}

type OrdersHandler struct {
	Engine OrderEngine
	Orders OrderStore
	Log    *zap.Logger

	// optional
	Cache OrderCache
	Idem  IdempotencyStore

	Timeout time.Duration
}

type PlaceOrderResp struct {
	Success    bool          `json:"success"`
	OrderID    string        `json:"orderId"`
	Order      *orders.Order `json:"order,omitempty"`
	Idempotent bool          `json:"idempotent"`
}

type changeStatusReq struct {
	Status orders.Status `json:"status"`
}

type legacyStatusReq struct {
	OrderStatus orders.Status `json:"orderStatus"`
}

func (h *OrdersHandler) Register(r chi.Router, auth *Auth) {
	r.Post("/orders", h.placeOrder)
	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate, auth.RequireAdmin)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Patch("/orders/{id}", h.changeStatus)
		r.Patch("/api/orders/{id}", h.changeStatusLegacy)
		r.Delete("/orders/{id}", h.deleteOrder)
	})
}

func (h *OrdersHandler) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	t := h.Timeout
	if t <= 0 {
		t = 5 * time.Second
	}
	return context.WithTimeout(r.Context(), t)
}

func (h *OrdersHandler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.PlaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" && h.Idem != nil {
		orderID, started, err := h.Idem.Begin(ctx, key)
		if err != nil {
			// redis down: DB tetap jadi kebenaran, lanjut tanpa idempotency
			h.log().Warn("idempotency unavailable", zap.Error(err))
			key = ""
		} else if !started {
			h.replay(ctx, w, orderID)
			return
		}
	}

	o, err := h.Engine.PlaceOrder(ctx, req)
	if err != nil {
		if key != "" && h.Idem != nil {
			_ = h.Idem.Release(context.WithoutCancel(ctx), key)
		}
		writeOrderError(w, h.log(), err)
		return
	}
	if key != "" && h.Idem != nil {
		h.completeKey(context.WithoutCancel(ctx), key, o.ID)
	}
	h.cachePut(ctx, o)
	writeJSON(w, http.StatusCreated, PlaceOrderResp{Success: true, OrderID: o.ID, Order: o})
}

// completeKey records the order under key. When that fails the pending marker
// is dropped, otherwise retries would see "in progress" until the TTL expires.
func (h *OrdersHandler) completeKey(ctx context.Context, key, orderID string) {
	err := h.Idem.Complete(ctx, key, orderID)
	if err == nil {
		return
	}
	h.log().Warn("idempotency complete failed", zap.String("order_id", orderID), zap.Error(err))
	if rerr := h.Idem.Release(ctx, key); rerr != nil {
		h.log().Error("idempotency key stuck pending",
			zap.String("order_id", orderID), zap.Error(rerr))
	}
}

func (h *OrdersHandler) replay(ctx context.Context, w http.ResponseWriter, orderID string) {
	if orderID == "" || orderID == redisx.IdemPending {
		writeError(w, http.StatusConflict, "request with this idempotency key is in progress")
		return
	}
	resp := PlaceOrderResp{Success: true, OrderID: orderID, Idempotent: true}
	if o, err := h.Orders.Get(ctx, orderID); err == nil {
		resp.Order = o
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	all, err := h.Orders.List(ctx)
	if err != nil {
		writeOrderError(w, h.log(), err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := h.ctx(r)
	defer cancel()

	// 1) coba cache
	if h.Cache != nil {
		if o, ok := h.Cache.Get(ctx, id); ok {
			writeJSON(w, http.StatusOK, o)
			return
		}
	}
	// 2) fallback DB
	o, err := h.Orders.Get(ctx, id)
	if err != nil {
		writeOrderError(w, h.log(), err)
		return
	}
	h.cachePut(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req changeStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	h.applyStatus(w, r, req.Status)
}

// changeStatusLegacy serves older admin clients that send orderStatus.
func (h *OrdersHandler) changeStatusLegacy(w http.ResponseWriter, r *http.Request) {
	var req legacyStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	h.applyStatus(w, r, req.OrderStatus)
}

func (h *OrdersHandler) applyStatus(w http.ResponseWriter, r *http.Request, to orders.Status) {
	if to == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}
	id := chi.URLParam(r, "id")
	ctx, cancel := h.ctx(r)
	defer cancel()

	o, err := h.Engine.ChangeStatus(ctx, id, to)
	if err != nil {
		writeOrderError(w, h.log(), err)
		return
	}
	h.cachePut(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := h.ctx(r)
	defer cancel()

	if err := h.Orders.Delete(ctx, id); err != nil {
		writeOrderError(w, h.log(), err)
		return
	}
	if h.Cache != nil {
		_ = h.Cache.Invalidate(ctx, id)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deletedCount": 1})
}

func (h *OrdersHandler) cachePut(ctx context.Context, o *orders.Order) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Put(ctx, o); err != nil {
		h.log().Debug("order cache put failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

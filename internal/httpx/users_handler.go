package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront/internal/users"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UserStore is satisfied by *postgres.UserRepo.
type UserStore interface {
	UserFinder
	Upsert(ctx context.Context, u *users.User, now time.Time) (created bool, err error)
	List(ctx context.Context) ([]users.User, error)
	UpdateRole(ctx context.Context, id string, role users.Role) error
}

type UsersHandler struct {
	Users UserStore
	Log   *zap.Logger
	Now   func() time.Time
}

type roleReq struct {
	Role users.Role `json:"role"`
}

func (h *UsersHandler) Register(r chi.Router, auth *Auth) {
	r.Post("/users", h.upsertUser)
	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.With(auth.RequireSelf).Get("/role/users", h.getRole)
		r.With(auth.RequireAdmin).Get("/users", h.listUsers)
		r.With(auth.RequireAdmin).Patch("/users/{id}/role", h.updateRole)
	})
}

func (h *UsersHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *UsersHandler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

func (h *UsersHandler) internal(w http.ResponseWriter, err error) {
	h.log().Error("user request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// upsertUser registers a sign-in. New users always start as customers.
func (h *UsersHandler) upsertUser(w http.ResponseWriter, r *http.Request) {
	var u users.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	u.Role = users.RoleCustomer

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	created, err := h.Users.Upsert(ctx, &u, h.now())
	if errors.Is(err, users.ErrEmailRequired) {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}
	if err != nil {
		h.internal(w, err)
		return
	}
	if !created {
		writeJSON(w, http.StatusOK, map[string]any{"message": "User already exists", "inserted": false})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "User created", "inserted": true, "insertedId": u.ID})
}

func (h *UsersHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	all, err := h.Users.List(ctx)
	if err != nil {
		h.internal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *UsersHandler) getRole(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, r.URL.Query().Get("email"))
	if errors.Is(err, users.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		h.internal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]users.Role{"role": u.Role})
}

func (h *UsersHandler) updateRole(w http.ResponseWriter, r *http.Request) {
	var req roleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if !req.Role.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid role value")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	err := h.Users.UpdateRole(ctx, chi.URLParam(r, "id"), req.Role)
	switch {
	case errors.Is(err, users.ErrNotFound), errors.Is(err, users.ErrRoleUnchanged):
		writeError(w, http.StatusNotFound, "User not found or role unchanged")
		return
	case errors.Is(err, users.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, "Invalid role value")
		return
	case err != nil:
		h.internal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "User role updated to " + string(req.Role), "modifiedCount": 1})
}

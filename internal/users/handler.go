// Package users serves the admin user-management endpoints and stores users in Postgres.
package users

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/domain"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/httpjson"
)

type Store interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Update(ctx context.Context, u *domain.User) error
	DeleteNonAdmin(ctx context.Context, id string) error
}

type Handler struct {
	store  Store
	resp   *httpjson.Responder
	logger *slog.Logger
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		resp:   httpjson.NewResponder(logger),
		logger: logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.List(r.Context())
	if err != nil {
		h.resp.Error(w, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, users)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.resp.Error(w, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, user)
}

type updateUserRequest struct {
	Name      *string      `json:"name"`
	Email     *string      `json:"email" validate:"omitempty,email"`
	Role      *domain.Role `json:"role" validate:"omitempty,oneof=user admin"`
	IsBlocked *bool        `json:"isBlocked"`
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.resp.Error(w, err)
		return
	}

	user, err := h.store.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.resp.Error(w, err)
		return
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil && *req.Email != "" {
		user.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.IsBlocked != nil {
		user.IsBlocked = *req.IsBlocked
	}
	user.UpdatedAt = time.Now().UTC()

	if err := h.store.Update(r.Context(), user); err != nil {
		h.resp.Error(w, err)
		return
	}

	h.logger.Info("user updated", "user_id", user.ID, "role", user.Role, "blocked", user.IsBlocked)
	h.resp.JSON(w, http.StatusOK, user)
}

// HandleDelete removes a user. Admin accounts cannot be deleted.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.store.DeleteNonAdmin(r.Context(), id); err != nil {
		h.resp.Error(w, err)
		return
	}

	h.logger.Info("user deleted", "user_id", id)
	h.resp.Message(w, http.StatusOK, "User removed")
}

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/domain"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/httpjson"
)

// UserStore is the persistence the auth handlers need. Create and
// UpdateProfile must report a duplicate email as domain.ErrEmailTaken.
// UpdateProfile leaves role and the blocked flag untouched.
type UserStore interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateProfile(ctx context.Context, u *domain.User) (*domain.User, error)
}

type Handler struct {
	users        UserStore
	tokens       *TokenIssuer
	cookieSecure bool
	resp         *httpjson.Responder
	logger       *slog.Logger
}

func NewHandler(users UserStore, tokens *TokenIssuer, cookieSecure bool, logger *slog.Logger) *Handler {
	return &Handler{
		users:        users,
		tokens:       tokens,
		cookieSecure: cookieSecure,
		resp:         httpjson.NewResponder(logger),
		logger:       logger,
	}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.resp.Error(w, err)
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		h.resp.Error(w, err)
		return
	}

	now := time.Now().UTC()
	user := &domain.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		h.resp.Error(w, err)
		return
	}

	if _, err := h.startSession(w, user); err != nil {
		h.resp.Error(w, err)
		return
	}

	h.logger.Info("user registered", "user_id", user.ID)
	h.resp.JSON(w, http.StatusCreated, user.Profile())
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.resp.Error(w, err)
		return
	}

	user, err := h.users.GetByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			err = domain.ErrInvalidCredentials
		}
		h.resp.Error(w, err)
		return
	}
	if !CheckPassword(user.PasswordHash, req.Password) {
		h.resp.Error(w, domain.ErrInvalidCredentials)
		return
	}
	if user.IsBlocked {
		h.resp.Error(w, domain.ErrUserBlocked)
		return
	}

	token, err := h.startSession(w, user)
	if err != nil {
		h.resp.Error(w, err)
		return
	}

	profile := user.Profile()
	profile.Token = token

	h.logger.Info("user logged in", "user_id", user.ID)
	h.resp.JSON(w, http.StatusOK, profile)
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	h.resp.Message(w, http.StatusOK, "Logged out successfully")
}

func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		h.resp.Error(w, errNoToken)
		return
	}
	h.resp.JSON(w, http.StatusOK, user.Profile())
}

type updateProfileRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password"`
}

func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	current, ok := UserFrom(r.Context())
	if !ok {
		h.resp.Error(w, errNoToken)
		return
	}

	var req updateProfileRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.resp.Error(w, err)
		return
	}

	user := *current
	if name := strings.TrimSpace(req.Name); name != "" {
		user.Name = name
	}
	if req.Email != "" {
		user.Email = normalizeEmail(req.Email)
	}
	if req.Password != "" {
		hash, err := HashPassword(req.Password)
		if err != nil {
			h.resp.Error(w, err)
			return
		}
		user.PasswordHash = hash
	}
	user.UpdatedAt = time.Now().UTC()

	updated, err := h.users.UpdateProfile(r.Context(), &user)
	if err != nil {
		h.resp.Error(w, err)
		return
	}

	h.logger.Info("profile updated", "user_id", updated.ID)
	h.resp.JSON(w, http.StatusOK, updated.Profile())
}

func (h *Handler) startSession(w http.ResponseWriter, user *domain.User) (string, error) {
	token, expiresAt, err := h.tokens.Issue(user.ID)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	return token, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/domain"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/httpjson"
)

const CookieName = "jwt"

var (
	errNoToken      = &domain.Error{Kind: domain.ErrUnauthorized, Message: "Not authorized, no token"}
	errTokenFailed  = &domain.Error{Kind: domain.ErrUnauthorized, Message: "Not authorized, token failed"}
	errUserNotFound = &domain.Error{Kind: domain.ErrUnauthorized, Message: "Not authorized, user not found"}
	errNotAdmin     = &domain.Error{Kind: domain.ErrForbidden, Message: "Not authorized as an admin"}
)

type UserFinder interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

type userKey struct{}

func WithUser(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

func UserFrom(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(userKey{}).(*domain.User)
	return u, ok && u != nil
}

// Gate resolves the session token on a request and enforces role checks.
type Gate struct {
	tokens *TokenIssuer
	users  UserFinder
	resp   *httpjson.Responder
}

func NewGate(tokens *TokenIssuer, users UserFinder, resp *httpjson.Responder) *Gate {
	return &Gate{tokens: tokens, users: users, resp: resp}
}

// Protect requires a valid session token from the Authorization header or the
// session cookie and attaches the resolved user to the request context.
func (g *Gate) Protect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := g.authenticate(r)
		if err != nil {
			g.resp.Error(w, err)
			return
		}
		next(w, r.WithContext(WithUser(r.Context(), user)))
	}
}

// Admin rejects callers without the admin role. It must be wrapped by Protect.
func (g *Gate) Admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFrom(r.Context())
		if !ok || !user.IsAdmin() {
			g.resp.Error(w, errNotAdmin)
			return
		}
		next(w, r)
	}
}

// ProtectAdmin is Protect followed by Admin.
func (g *Gate) ProtectAdmin(next http.HandlerFunc) http.HandlerFunc {
	return g.Protect(g.Admin(next))
}

func (g *Gate) authenticate(r *http.Request) (*domain.User, error) {
	token := tokenFromRequest(r)
	if token == "" {
		return nil, errNoToken
	}

	userID, err := g.tokens.Parse(token)
	if err != nil {
		return nil, errTokenFailed
	}

	user, err := g.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errUserNotFound
		}
		return nil, err
	}
	if user.IsBlocked {
		return nil, domain.ErrUserBlocked
	}
	return user, nil
}

func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

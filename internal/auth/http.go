package auth

import (
	"context"
	"net/http"
	"strings"

	"serverPortal/internal/apperr"
	"serverPortal/models"
)

// Principal is the authenticated caller as currently stored, not as claimed
// by the token.
type Principal struct {
	ID       int64
	Username string
	Email    string
	Role     models.Role
}

func (p *Principal) IsAdmin() bool { return p != nil && p.Role == models.RoleAdmin }

type principalKey struct{}

// WithPrincipal stores the principal in context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext retrieves the principal from context (if any).
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// ParseBearer extracts the token from an "Authorization: Bearer <token>" value.
func ParseBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", apperr.Unauthorized("auth.token_required")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", apperr.Unauthorized("auth.token_required")
	}
	tok := strings.TrimSpace(parts[1])
	if tok == "" {
		return "", apperr.Unauthorized("auth.token_required")
	}
	return tok, nil
}

// Require is the single capability check: the principal must exist and hold
// at least the given role.
func Require(p *Principal, role models.Role) error {
	if p == nil {
		return apperr.Unauthorized("auth.token_required")
	}
	if p.Role.Rank() < role.Rank() {
		return apperr.Forbidden("auth.forbidden")
	}
	return nil
}

// UserLookup resolves the account a token refers to.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// FailFunc writes an error response. The HTTP layer supplies it so that auth
// failures render like every other API error.
type FailFunc func(w http.ResponseWriter, r *http.Request, err error)

// Authenticator turns bearer tokens into principals.
type Authenticator struct {
	issuer *Issuer
	users  UserLookup
	fail   FailFunc
}

func NewAuthenticator(issuer *Issuer, users UserLookup, fail FailFunc) *Authenticator {
	if fail == nil {
		fail = func(w http.ResponseWriter, _ *http.Request, err error) {
			ae := apperr.From(err)
			http.Error(w, ae.MessageID, ae.Kind.HTTPStatus())
		}
	}
	return &Authenticator{issuer: issuer, users: users, fail: fail}
}

// Authenticate resolves the caller on every request. A valid token whose
// user was deleted is rejected, and the role comes from the user row.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.principal(r)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func (a *Authenticator) principal(r *http.Request) (*Principal, error) {
	tok, err := ParseBearer(r.Header.Get("Authorization"))
	if err != nil {
		return nil, err
	}
	claims, err := a.issuer.Parse(tok)
	if err != nil {
		return nil, err
	}
	u, err := a.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if u == nil {
		return nil, apperr.Unauthorized("auth.account_missing")
	}
	return &Principal{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}, nil
}

// RequireRole is the middleware form of Require. It must run after Authenticate.
func (a *Authenticator) RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := FromContext(r.Context())
			if err := Require(p, role); err != nil {
				a.fail(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

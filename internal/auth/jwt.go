package auth

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"serverPortal/internal/apperr"
	"serverPortal/models"
)

// DefaultTokenTTL is used when the issuer is built with a non-positive TTL.
const DefaultTokenTTL = 7 * 24 * time.Hour

// Claims is the token payload: the user id and the role at issue time.
// The role is informational; authorization always re-reads the user row.
type Claims struct {
	UserID int64  `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens with one shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for u.
func (i *Issuer) Issue(u *models.User) (string, error) {
	if u == nil || u.ID == 0 {
		return "", errors.New("cannot issue token for unsaved user")
	}
	now := i.now()
	claims := Claims{
		UserID: u.ID,
		Role:   string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Parse verifies signature, algorithm and expiry. Every failure is an
// Unauthorized error carrying the cause.
func (i *Issuer) Parse(tokenStr string) (*Claims, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return nil, apperr.Unauthorized("auth.token_required")
	}
	var c Claims
	tok, err := jwt.ParseWithClaims(tokenStr, &c, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !tok.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return nil, &apperr.Error{Kind: apperr.KindUnauthorized, MessageID: "auth.token_invalid", Err: err}
	}
	if c.UserID <= 0 {
		return nil, &apperr.Error{Kind: apperr.KindUnauthorized, MessageID: "auth.token_invalid", Err: errors.New("invalid claims")}
	}
	return &c, nil
}

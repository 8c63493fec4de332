package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"

	"serverPortal/internal/db"
	"serverPortal/models"
)

// OpenInMemoryDB opens an in-memory SQLite database and applies migrations.
// The DB is closed through t.Cleanup.
func OpenInMemoryDB(t *testing.T, name string) *bun.DB {
	t.Helper()
	// Shared cache keeps the database addressable by name for the lifetime of the pool.
	d, err := db.Open(db.TypeSQLite, "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// InsertUser stores a user with the given role and password and returns it.
// Hashing uses the minimum bcrypt cost to keep tests fast.
func InsertUser(t *testing.T, d *bun.DB, username string, role models.Role, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := d.NewInsert().Model(u).Exec(context.Background()); err != nil {
		t.Fatalf("insert user %s: %v", username, err)
	}
	return u
}

// GenerateJWTHS256 returns a signed token carrying the claims the API expects.
func GenerateJWTHS256(t *testing.T, secret string, userID int64, role models.Role, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := jwt.MapClaims{
		"userId": userID,
		"role":   string(role),
		"iat":    now.Unix(),
		"exp":    now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// NewRequest builds a request with an optional JSON body and bearer token.
func NewRequest(t *testing.T, method, target string, body any, token string) *http.Request {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// DecodeJSON unmarshals a recorded response body into a generic map.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

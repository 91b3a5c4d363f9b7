package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/chatkb/backend/internal/apperr"
)

type Claims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// ErrorWriter renders an auth failure; the API package supplies its
// standard JSON error shape.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

type JWTMiddleware struct {
	secret     []byte
	writeError ErrorWriter
}

func NewJWTMiddleware(secret string, writeError ErrorWriter) *JWTMiddleware {
	return &JWTMiddleware{
		secret:     []byte(secret),
		writeError: writeError,
	}
}

// Authenticate requires a valid HMAC-signed bearer token and puts the
// caller's identity on the request context.
func (m *JWTMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractBearerToken(r)
		if tokenStr == "" {
			m.writeError(w, r, apperr.NewAuthError("missing authorization token"))
			return
		}

		claims, err := m.parse(tokenStr)
		if err != nil {
			m.writeError(w, r, err)
			return
		}

		ctx := withClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *JWTMiddleware) parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperr.NewAuthError("invalid token")
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(time.Now()) {
		return nil, apperr.NewAuthError("token expired")
	}
	if claims.Sub == "" {
		return nil, apperr.NewAuthError("token has no subject")
	}
	return claims, nil
}

type ctxKey string

const claimsKey ctxKey = "claims"

func withClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

// UserID returns the authenticated subject, or "" outside an
// authenticated request.
func UserID(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.Sub
	}
	return ""
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// Package middleware provides HTTP middleware shared across transport
// surfaces: bearer-token authentication and role gating for the admin and
// oracle-router capabilities.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
)

// Roles understood by the role gate.
const (
	RoleRegistryOwner = "registry_owner"
	RoleOracleRouter  = "oracle_router"
)

// Claims are the token claims the service issues to operators and the oracle
// router. Subject carries the caller's wallet address.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

// Validator verifies HS256 bearer tokens.
type Validator struct {
	signingKey []byte
}

func NewValidator(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

// ValidateToken parses and verifies a token string.
func (v *Validator) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.signingKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return claims, nil
}

// IssueToken mints a token for the given caller and roles. Used by tests and
// the operator CLI flow.
func (v *Validator) IssueToken(caller common.Address, roles ...string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: caller.Hex()},
		Roles:            roles,
	})
	return token.SignedString(v.signingKey)
}

type contextKeyCaller struct{}
type contextKeyRoles struct{}

// Caller retrieves the authenticated wallet address from the context.
func Caller(ctx context.Context) common.Address {
	addr, _ := ctx.Value(contextKeyCaller{}).(common.Address)
	return addr
}

// HasRole reports whether the authenticated caller holds the role.
func HasRole(ctx context.Context, role string) bool {
	roles, _ := ctx.Value(contextKeyRoles{}).([]string)
	return slices.Contains(roles, role)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller address and roles in the request context.
func RequireAuth(validator *Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access, missing bearer token", "path", r.URL.Path)
				writeUnauthorized(w, "missing or malformed Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access, invalid token", "path", r.URL.Path, "error", err)
				writeUnauthorized(w, "invalid or expired token")
				return
			}
			if !common.IsHexAddress(claims.Subject) {
				logger.WarnContext(ctx, "unauthorized access, malformed subject", "path", r.URL.Path)
				writeUnauthorized(w, "token subject is not a wallet address")
				return
			}

			ctx = context.WithValue(ctx, contextKeyCaller{}, common.HexToAddress(claims.Subject))
			ctx = context.WithValue(ctx, contextKeyRoles{}, claims.Roles)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a route on a role carried by the token. Must run after
// RequireAuth.
func RequireRole(role string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if !HasRole(ctx, role) {
				logger.WarnContext(ctx, "forbidden, missing role", "path", r.URL.Path, "role", role, "caller", Caller(ctx).Hex())
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"caller lacks required role"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}

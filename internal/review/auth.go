package review

import (
	"context"
	"net/http"
	"strings"
)

// Identity headers forwarded by the Gateway.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

// RoleAdmin is the only role allowed to review imports.
const RoleAdmin = "admin"

// Operator is the authenticated admin behind a request.
type Operator struct {
	ID   string
	Role string
}

type operatorKey struct{}

// WithOperator returns a copy of ctx carrying op.
func WithOperator(ctx context.Context, op Operator) context.Context {
	return context.WithValue(ctx, operatorKey{}, op)
}

// OperatorFrom returns the operator stored by RequireAdmin.
func OperatorFrom(ctx context.Context) (Operator, bool) {
	op, ok := ctx.Value(operatorKey{}).(Operator)
	return op, ok
}

// RequireAdmin rejects requests without a forwarded identity (401) or with
// a non-admin role (403) and stores the operator in the request context.
func RequireAdmin(resp Responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(HeaderUserID))
			if id == "" {
				resp.Error(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}
			role := strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole)))
			if role != RoleAdmin {
				resp.Error(w, r, http.StatusForbidden, "Access denied")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), Operator{ID: id, Role: role})))
		})
	}
}

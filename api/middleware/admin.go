package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/dextasynergyservices/bookprinta-sub000/api/responses"
	pkgerrors "github.com/dextasynergyservices/bookprinta-sub000/pkg/errors"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/logger"
)

const adminIDHeader = "X-Admin-Id"

type adminIDKey struct{}

// RequireAdmin expects the upstream gateway to have authenticated the admin
// and forwarded their id. Requests without a parseable id are rejected.
func RequireAdmin(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(adminIDHeader)
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin context missing"))
				return
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid admin id"))
				return
			}
			ctx := context.WithValue(r.Context(), adminIDKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminIDFromContext returns the forwarded admin id, or uuid.Nil when the
// request did not pass through RequireAdmin.
func AdminIDFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(adminIDKey{}).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dextasynergyservices/bookprinta-sub000/api/responses"
	"github.com/dextasynergyservices/bookprinta-sub000/internal/notifications"
	pkgerrors "github.com/dextasynergyservices/bookprinta-sub000/pkg/errors"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/logger"
)

// ListUnreadNotifications returns the admin's unread in-app notifications.
func ListUnreadNotifications(repo notifications.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications repository unavailable"))
			return
		}

		limit := 0
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			value, err := strconv.Atoi(raw)
			if err != nil || value <= 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer"))
				return
			}
			limit = value
		}

		rows, err := repo.ListUnread(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list notifications"))
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// MarkNotificationRead marks one in-app notification as read.
func MarkNotificationRead(repo notifications.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications repository unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification id"))
			return
		}

		if err := repo.MarkRead(r.Context(), id.String()); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark notification read"))
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

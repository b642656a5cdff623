package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dextasynergyservices/bookprinta-sub000/api/responses"
	"github.com/dextasynergyservices/bookprinta-sub000/api/validators"
	"github.com/dextasynergyservices/bookprinta-sub000/internal/gateways"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/db/models"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
	pkgerrors "github.com/dextasynergyservices/bookprinta-sub000/pkg/errors"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/logger"
)

// ListGateways returns the gateways a buyer can pay through right now.
func ListGateways(svc gateways.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateways service unavailable"))
			return
		}

		views, err := svc.ListAvailable(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

type upsertGatewayRequest struct {
	DisplayName  string               `json:"displayName" validate:"required"`
	IsEnabled    bool                 `json:"isEnabled"`
	IsTestMode   bool                 `json:"isTestMode"`
	Priority     int                  `json:"priority" validate:"min=0"`
	BankAccounts []models.BankAccount `json:"bankAccounts"`
	Instructions *string              `json:"instructions"`
}

// UpsertGateway creates or replaces the admin-managed row for one provider.
func UpsertGateway(svc gateways.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateways service unavailable"))
			return
		}

		provider, err := enums.ParsePaymentProvider(strings.TrimSpace(chi.URLParam(r, "provider")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid provider"))
			return
		}

		var payload upsertGatewayRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		gateway, err := svc.Upsert(r.Context(), gateways.UpsertInput{
			Provider:     provider,
			DisplayName:  payload.DisplayName,
			IsEnabled:    payload.IsEnabled,
			IsTestMode:   payload.IsTestMode,
			Priority:     payload.Priority,
			BankAccounts: payload.BankAccounts,
			Instructions: payload.Instructions,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, gateway)
	}
}

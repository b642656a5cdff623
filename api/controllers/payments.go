package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dextasynergyservices/bookprinta-sub000/api/responses"
	"github.com/dextasynergyservices/bookprinta-sub000/api/validators"
	"github.com/dextasynergyservices/bookprinta-sub000/internal/payments"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
	pkgerrors "github.com/dextasynergyservices/bookprinta-sub000/pkg/errors"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/logger"
)

type initializePaymentRequest struct {
	Provider string          `json:"provider" validate:"required"`
	Type     string          `json:"type"`
	Email    string          `json:"email" validate:"required,email"`
	Amount   decimal.Decimal `json:"amount" validate:"required"`
	Currency string          `json:"currency"`
	OrderID  *string         `json:"orderId"`
	UserID   *string         `json:"userId"`
	Metadata map[string]any  `json:"metadata"`
}

func (req initializePaymentRequest) toInput() (payments.InitializeInput, error) {
	provider, err := enums.ParsePaymentProvider(strings.TrimSpace(req.Provider))
	if err != nil {
		return payments.InitializeInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid provider")
	}

	paymentType := enums.PaymentTypeInitial
	if strings.TrimSpace(req.Type) != "" {
		paymentType, err = enums.ParsePaymentType(strings.TrimSpace(req.Type))
		if err != nil {
			return payments.InitializeInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment type")
		}
	}

	input := payments.InitializeInput{
		Provider: provider,
		Type:     paymentType,
		Email:    req.Email,
		Amount:   req.Amount,
		Currency: req.Currency,
		Metadata: req.Metadata,
	}

	if req.OrderID != nil && *req.OrderID != "" {
		id, err := uuid.Parse(*req.OrderID)
		if err != nil {
			return payments.InitializeInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
		}
		input.OrderID = &id
	}
	if req.UserID != nil && *req.UserID != "" {
		id, err := uuid.Parse(*req.UserID)
		if err != nil {
			return payments.InitializeInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
		}
		input.UserID = &id
	}
	return input, nil
}

// InitializePayment starts a checkout attempt against an online gateway.
func InitializePayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var payload initializePaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out, err := svc.Initialize(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// VerifyPayment answers the gateway callback page for one reference.
func VerifyPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		reference := strings.TrimSpace(chi.URLParam(r, "reference"))
		if reference == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "reference is required"))
			return
		}

		out, err := svc.Verify(r.Context(), reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

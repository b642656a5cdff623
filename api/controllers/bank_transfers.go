package controllers

import (
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dextasynergyservices/bookprinta-sub000/api/middleware"
	"github.com/dextasynergyservices/bookprinta-sub000/api/responses"
	"github.com/dextasynergyservices/bookprinta-sub000/api/validators"
	"github.com/dextasynergyservices/bookprinta-sub000/internal/payments"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
	pkgerrors "github.com/dextasynergyservices/bookprinta-sub000/pkg/errors"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/logger"
)

const maxReceiptFormBytes = 25 << 20

type bankTransferRequest struct {
	Email    string         `json:"email" validate:"required,email"`
	Name     string         `json:"name"`
	Phone    string         `json:"phone"`
	Amount   string         `json:"amount" validate:"required"`
	Currency string         `json:"currency"`
	Type     string         `json:"type"`
	OrderID  *string        `json:"orderId"`
	UserID   *string        `json:"userId"`
	Metadata map[string]any `json:"metadata"`

	// Receipt is a data URL or bare base64 payload; multipart submissions
	// carry the file instead.
	Receipt         string `json:"receipt"`
	ReceiptFilename string `json:"receiptFilename"`
}

func (req bankTransferRequest) toInput() (payments.BankTransferInput, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return payments.BankTransferInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount")
	}

	paymentType := enums.PaymentTypeInitial
	if strings.TrimSpace(req.Type) != "" {
		paymentType, err = enums.ParsePaymentType(strings.TrimSpace(req.Type))
		if err != nil {
			return payments.BankTransferInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment type")
		}
	}

	input := payments.BankTransferInput{
		Email:           req.Email,
		Name:            req.Name,
		Phone:           req.Phone,
		Amount:          amount,
		Currency:        req.Currency,
		Type:            paymentType,
		Metadata:        req.Metadata,
		ReceiptFilename: req.ReceiptFilename,
	}

	if req.OrderID != nil && *req.OrderID != "" {
		id, err := uuid.Parse(*req.OrderID)
		if err != nil {
			return payments.BankTransferInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
		}
		input.OrderID = &id
	}
	if req.UserID != nil && *req.UserID != "" {
		id, err := uuid.Parse(*req.UserID)
		if err != nil {
			return payments.BankTransferInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
		}
		input.UserID = &id
	}

	if req.Receipt != "" {
		data, err := decodeReceiptPayload(req.Receipt)
		if err != nil {
			return payments.BankTransferInput{}, err
		}
		input.ReceiptData = data
	}
	return input, nil
}

// decodeReceiptPayload accepts a data URL or a bare base64 string.
func decodeReceiptPayload(raw string) ([]byte, error) {
	encoded := raw
	if strings.HasPrefix(raw, "data:") {
		_, after, found := strings.Cut(raw, ",")
		if !found {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "malformed receipt data url")
		}
		encoded = after
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid receipt encoding")
	}
	return data, nil
}

// SubmitBankTransfer records a buyer's claim that an offline transfer was
// made. It accepts multipart form submissions with a receipt file, or JSON
// with the receipt inlined.
func SubmitBankTransfer(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var (
			input payments.BankTransferInput
			err   error
		)
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			input, err = bankTransferFromMultipart(r)
		} else {
			var payload bankTransferRequest
			if err = validators.DecodeJSONBody(r, &payload); err == nil {
				input, err = payload.toInput()
			}
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.SubmitBankTransfer(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, payment)
	}
}

func bankTransferFromMultipart(r *http.Request) (payments.BankTransferInput, error) {
	if err := r.ParseMultipartForm(maxReceiptFormBytes); err != nil {
		return payments.BankTransferInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form")
	}

	req := bankTransferRequest{
		Email:    r.FormValue("email"),
		Name:     r.FormValue("name"),
		Phone:    r.FormValue("phone"),
		Amount:   r.FormValue("amount"),
		Currency: r.FormValue("currency"),
		Type:     r.FormValue("type"),
	}
	if v := strings.TrimSpace(r.FormValue("orderId")); v != "" {
		req.OrderID = &v
	}
	if v := strings.TrimSpace(r.FormValue("userId")); v != "" {
		req.UserID = &v
	}

	input, err := req.toInput()
	if err != nil {
		return payments.BankTransferInput{}, err
	}

	file, header, err := r.FormFile("receipt")
	if err == http.ErrMissingFile {
		return input, nil
	}
	if err != nil {
		return payments.BankTransferInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid receipt file")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return payments.BankTransferInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read receipt file")
	}
	input.ReceiptData = data
	input.ReceiptFilename = header.Filename
	return input, nil
}

// ListBankTransfers returns bank transfer payments for the admin review
// queue, optionally filtered by status.
func ListBankTransfers(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var status *enums.PaymentStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParsePaymentStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			status = &parsed
		}

		rows, err := svc.ListBankTransfers(r.Context(), status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

type bankTransferDecisionRequest struct {
	Note *string `json:"note"`
}

// DecideBankTransfer approves or rejects an awaiting transfer on behalf of
// the admin forwarded by the gateway.
func DecideBankTransfer(svc payments.Service, logg *logger.Logger, approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		adminID := middleware.AdminIDFromContext(r.Context())
		if adminID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin context missing"))
			return
		}

		paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment id"))
			return
		}

		input := payments.DecisionInput{PaymentID: paymentID, AdminID: adminID}
		if r.ContentLength > 0 {
			var payload bankTransferDecisionRequest
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Note = payload.Note
		}

		decide := svc.RejectBankTransfer
		if approve {
			decide = svc.ApproveBankTransfer
		}
		payment, err := decide(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

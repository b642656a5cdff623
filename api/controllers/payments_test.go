package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/dextasynergyservices/bookprinta-sub000/internal/payments"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/db/models"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
	pkgerrors "github.com/dextasynergyservices/bookprinta-sub000/pkg/errors"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/logger"
)

type stubPaymentsService struct {
	initializeInput  *payments.InitializeInput
	initializeOutput *payments.InitializeOutput
	initializeErr    error

	verifyReference string
	verifyOutput    *payments.VerifyOutput
	verifyErr       error

	submitInput  *payments.BankTransferInput
	submitResult *models.Payment
	submitErr    error

	listStatus *enums.PaymentStatus
	listResult []models.Payment

	decisions []payments.DecisionInput
	approved  []bool
	decideOut *models.Payment
	decideErr error
}

func (s *stubPaymentsService) Initialize(_ context.Context, input payments.InitializeInput) (*payments.InitializeOutput, error) {
	s.initializeInput = &input
	return s.initializeOutput, s.initializeErr
}

func (s *stubPaymentsService) HandleWebhook(context.Context, enums.PaymentProvider, payments.WebhookEvent) error {
	return nil
}

func (s *stubPaymentsService) Verify(_ context.Context, reference string) (*payments.VerifyOutput, error) {
	s.verifyReference = reference
	return s.verifyOutput, s.verifyErr
}

func (s *stubPaymentsService) SubmitBankTransfer(_ context.Context, input payments.BankTransferInput) (*models.Payment, error) {
	s.submitInput = &input
	return s.submitResult, s.submitErr
}

func (s *stubPaymentsService) ListBankTransfers(_ context.Context, status *enums.PaymentStatus) ([]models.Payment, error) {
	s.listStatus = status
	return s.listResult, nil
}

func (s *stubPaymentsService) ApproveBankTransfer(_ context.Context, input payments.DecisionInput) (*models.Payment, error) {
	s.decisions = append(s.decisions, input)
	s.approved = append(s.approved, true)
	return s.decideOut, s.decideErr
}

func (s *stubPaymentsService) RejectBankTransfer(_ context.Context, input payments.DecisionInput) (*models.Payment, error) {
	s.decisions = append(s.decisions, input)
	s.approved = append(s.approved, false)
	return s.decideOut, s.decideErr
}

var _ payments.Service = (*stubPaymentsService)(nil)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestInitializePayment_ForwardsInput(t *testing.T) {
	svc := &stubPaymentsService{
		initializeOutput: &payments.InitializeOutput{
			Provider:         enums.PaymentProviderPaystack,
			Reference:        "ps_ref1",
			AuthorizationURL: "https://checkout.paystack.com/ref1",
		},
	}
	handler := InitializePayment(svc, testLogger())

	body := []byte(`{
		"provider": "paystack",
		"email": "buyer@example.com",
		"amount": 5500.50,
		"metadata": {"packageName": "Standard"}
	}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/initialize", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.initializeInput == nil {
		t.Fatal("expected service invocation")
	}
	if svc.initializeInput.Provider != enums.PaymentProviderPaystack {
		t.Fatalf("unexpected provider %s", svc.initializeInput.Provider)
	}
	if svc.initializeInput.Type != enums.PaymentTypeInitial {
		t.Fatalf("type should default to initial, got %s", svc.initializeInput.Type)
	}
	if !svc.initializeInput.Amount.Equal(decimal.NewFromFloat(5500.50)) {
		t.Fatalf("unexpected amount %s", svc.initializeInput.Amount)
	}

	var envelope struct {
		Data payments.InitializeOutput `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Reference != "ps_ref1" {
		t.Fatalf("unexpected reference %q", envelope.Data.Reference)
	}
}

func TestInitializePayment_UnknownProviderRejected(t *testing.T) {
	svc := &stubPaymentsService{}
	handler := InitializePayment(svc, testLogger())

	body := []byte(`{"provider":"cowries","email":"buyer@example.com","amount":100}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/initialize", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if svc.initializeInput != nil {
		t.Fatal("service should not run for unknown provider")
	}
}

func TestInitializePayment_MissingEmailRejected(t *testing.T) {
	handler := InitializePayment(&stubPaymentsService{}, testLogger())

	body := []byte(`{"provider":"paystack","amount":100}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/initialize", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestVerifyPayment_RoutesReference(t *testing.T) {
	svc := &stubPaymentsService{
		verifyOutput: &payments.VerifyOutput{
			Reference: "ps_ref2",
			Provider:  enums.PaymentProviderPaystack,
			Status:    enums.PaymentStatusSuccess,
			Processed: true,
		},
	}
	r := chi.NewRouter()
	r.Get("/api/v1/payments/verify/{reference}", VerifyPayment(svc, testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/verify/ps_ref2", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.verifyReference != "ps_ref2" {
		t.Fatalf("unexpected reference %q", svc.verifyReference)
	}
}

func TestVerifyPayment_NotFoundPropagates(t *testing.T) {
	svc := &stubPaymentsService{
		verifyErr: pkgerrors.New(pkgerrors.CodeNotFound, "no payment found for reference"),
	}
	r := chi.NewRouter()
	r.Get("/api/v1/payments/verify/{reference}", VerifyPayment(svc, testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/verify/ps_missing", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeNotFound) {
		t.Fatalf("unexpected error code %q", envelope.Error.Code)
	}
	if envelope.Error.Message != "no payment found for reference" {
		t.Fatalf("unexpected message %q", envelope.Error.Message)
	}
}

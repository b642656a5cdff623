package gateways

import (
	"context"
	"encoding/json"
	"testing"

	"gorm.io/gorm"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/db/models"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
	pkgerrors "github.com/dextasynergyservices/bookprinta-sub000/pkg/errors"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/providers"
)

type stubRepo struct {
	rows []models.PaymentGateway
	err  error

	upserted *models.PaymentGateway
}

func (r *stubRepo) WithTx(*gorm.DB) Repository { return r }

func (r *stubRepo) FindByProvider(_ context.Context, provider enums.PaymentProvider) (*models.PaymentGateway, error) {
	if r.err != nil {
		return nil, r.err
	}
	for i := range r.rows {
		if r.rows[i].Provider == provider {
			return &r.rows[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubRepo) ListAll(context.Context) ([]models.PaymentGateway, error) {
	return r.rows, r.err
}

func (r *stubRepo) Upsert(_ context.Context, gateway *models.PaymentGateway) (*models.PaymentGateway, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.upserted = gateway
	return gateway, nil
}

type stubAdapter struct {
	provider  enums.PaymentProvider
	available bool
}

func (a stubAdapter) Provider() enums.PaymentProvider { return a.provider }
func (a stubAdapter) Available() bool                 { return a.available }
func (a stubAdapter) Initialize(context.Context, providers.InitializeParams) (*providers.InitializeResult, error) {
	return nil, nil
}
func (a stubAdapter) Verify(context.Context, string) (*providers.VerifyResult, error) {
	return nil, nil
}
func (a stubAdapter) VerifyWebhookSignature([]byte, string) bool { return false }
func (a stubAdapter) RecognizesReference(string) bool            { return false }

func enabledRow(provider enums.PaymentProvider, priority int) models.PaymentGateway {
	return models.PaymentGateway{
		Provider:    provider,
		DisplayName: string(provider),
		IsEnabled:   true,
		Priority:    priority,
	}
}

func TestListAvailableFiltersDisabledAndUnavailable(t *testing.T) {
	disabled := enabledRow(enums.PaymentProviderOPay, 3)
	disabled.IsEnabled = false

	repo := &stubRepo{rows: []models.PaymentGateway{
		enabledRow(enums.PaymentProviderPaystack, 1),
		enabledRow(enums.PaymentProviderFlutterwave, 2),
		disabled,
		enabledRow(enums.PaymentProviderBankTransfer, 4),
	}}
	adapters := AdapterSet{
		enums.PaymentProviderPaystack: stubAdapter{provider: enums.PaymentProviderPaystack, available: true},
		// Flutterwave is enabled in the DB but has no working credentials.
		enums.PaymentProviderFlutterwave: stubAdapter{provider: enums.PaymentProviderFlutterwave, available: false},
	}

	svc, err := NewService(repo, adapters)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	views, err := svc.ListAvailable(context.Background())
	if err != nil {
		t.Fatalf("list available: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 gateways, got %d", len(views))
	}
	if views[0].Provider != enums.PaymentProviderPaystack {
		t.Fatalf("expected paystack first, got %s", views[0].Provider)
	}
	// Bank transfer needs no adapter.
	if views[1].Provider != enums.PaymentProviderBankTransfer {
		t.Fatalf("expected bank_transfer second, got %s", views[1].Provider)
	}
}

func TestListAvailableExposesBankAccounts(t *testing.T) {
	accounts, _ := json.Marshal([]models.BankAccount{
		{BankName: "GTBank", AccountName: "Bookprinta Ltd", AccountNumber: "0123456789"},
	})
	row := enabledRow(enums.PaymentProviderBankTransfer, 1)
	row.BankAccounts = accounts

	svc, err := NewService(&stubRepo{rows: []models.PaymentGateway{row}}, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	views, err := svc.ListAvailable(context.Background())
	if err != nil {
		t.Fatalf("list available: %v", err)
	}
	if len(views) != 1 || len(views[0].BankAccounts) != 1 {
		t.Fatalf("expected bank account details, got %+v", views)
	}
	if views[0].BankAccounts[0].AccountNumber != "0123456789" {
		t.Fatalf("unexpected account number %s", views[0].BankAccounts[0].AccountNumber)
	}
}

func TestEnsureEnabled(t *testing.T) {
	repo := &stubRepo{rows: []models.PaymentGateway{
		enabledRow(enums.PaymentProviderPaystack, 1),
	}}
	adapters := AdapterSet{
		enums.PaymentProviderPaystack: stubAdapter{provider: enums.PaymentProviderPaystack, available: true},
	}
	svc, err := NewService(repo, adapters)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if _, err := svc.EnsureEnabled(context.Background(), enums.PaymentProviderPaystack); err != nil {
		t.Fatalf("ensure enabled: %v", err)
	}

	_, err = svc.EnsureEnabled(context.Background(), enums.PaymentProviderOPay)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for missing row, got %v", err)
	}
}

func TestEnsureEnabledRejectsMissingCredentials(t *testing.T) {
	repo := &stubRepo{rows: []models.PaymentGateway{
		enabledRow(enums.PaymentProviderFlutterwave, 1),
	}}
	adapters := AdapterSet{
		enums.PaymentProviderFlutterwave: stubAdapter{provider: enums.PaymentProviderFlutterwave, available: false},
	}
	svc, err := NewService(repo, adapters)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.EnsureEnabled(context.Background(), enums.PaymentProviderFlutterwave)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestUpsertValidation(t *testing.T) {
	svc, err := NewService(&stubRepo{}, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Upsert(context.Background(), UpsertInput{Provider: "cash", DisplayName: "Cash"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = svc.Upsert(context.Background(), UpsertInput{Provider: enums.PaymentProviderPaystack})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for missing name, got %v", err)
	}
}

func TestUpsertEncodesBankAccounts(t *testing.T) {
	repo := &stubRepo{}
	svc, err := NewService(repo, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Upsert(context.Background(), UpsertInput{
		Provider:    enums.PaymentProviderBankTransfer,
		DisplayName: "Bank Transfer",
		IsEnabled:   true,
		BankAccounts: []models.BankAccount{
			{BankName: "GTBank", AccountName: "Bookprinta Ltd", AccountNumber: "0123456789"},
		},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if repo.upserted == nil || len(repo.upserted.BankAccounts) == 0 {
		t.Fatal("expected encoded bank accounts on the stored row")
	}
}

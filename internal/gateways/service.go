package gateways

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/db/models"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
	pkgerrors "github.com/dextasynergyservices/bookprinta-sub000/pkg/errors"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/providers"
)

// AdapterSet resolves the online adapter for a provider. Bank transfer has no
// adapter and always resolves to nil.
type AdapterSet map[enums.PaymentProvider]providers.Adapter

// AdapterFor returns the adapter registered for the provider, or nil.
func (s AdapterSet) AdapterFor(provider enums.PaymentProvider) providers.Adapter {
	if s == nil {
		return nil
	}
	return s[provider]
}

// Service exposes gateway availability to checkout and the admin back office.
type Service interface {
	ListAvailable(ctx context.Context) ([]GatewayView, error)
	EnsureEnabled(ctx context.Context, provider enums.PaymentProvider) (*models.PaymentGateway, error)
	AdapterFor(provider enums.PaymentProvider) providers.Adapter
	Upsert(ctx context.Context, input UpsertInput) (*models.PaymentGateway, error)
}

type service struct {
	repo     Repository
	adapters AdapterSet
}

// NewService builds the gateway registry service.
func NewService(repo Repository, adapters AdapterSet) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("gateways repository required")
	}
	return &service{repo: repo, adapters: adapters}, nil
}

// ListAvailable returns gateways a buyer may pay through right now: enabled
// rows whose adapter (when the provider is online) has working credentials.
// Ordering follows admin priority, then row age.
func (s *service) ListAvailable(ctx context.Context) ([]GatewayView, error) {
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list gateways")
	}

	views := make([]GatewayView, 0, len(rows))
	for _, row := range rows {
		if !row.IsEnabled {
			continue
		}
		if row.Provider.IsOnline() {
			adapter := s.adapters.AdapterFor(row.Provider)
			if adapter == nil || !adapter.Available() {
				continue
			}
		}
		views = append(views, viewOf(row))
	}
	return views, nil
}

// EnsureEnabled loads the gateway row and rejects providers a buyer cannot
// currently pay through.
func (s *service) EnsureEnabled(ctx context.Context, provider enums.PaymentProvider) (*models.PaymentGateway, error) {
	gateway, err := s.repo.FindByProvider(ctx, provider)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("payment gateway %s is not configured", provider))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load gateway")
	}
	if !gateway.IsEnabled {
		return nil, pkgerrors.New(pkgerrors.CodeUnavailable, fmt.Sprintf("payment gateway %s is disabled", provider))
	}
	if provider.IsOnline() {
		adapter := s.adapters.AdapterFor(provider)
		if adapter == nil || !adapter.Available() {
			return nil, pkgerrors.New(pkgerrors.CodeUnavailable, fmt.Sprintf("payment gateway %s has no working credentials", provider))
		}
	}
	return gateway, nil
}

func (s *service) AdapterFor(provider enums.PaymentProvider) providers.Adapter {
	return s.adapters.AdapterFor(provider)
}

// Upsert creates or updates the availability row for a provider.
func (s *service) Upsert(ctx context.Context, input UpsertInput) (*models.PaymentGateway, error) {
	if !input.Provider.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment provider %q", input.Provider))
	}
	if input.DisplayName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "display name is required")
	}

	gateway := &models.PaymentGateway{
		Provider:     input.Provider,
		DisplayName:  input.DisplayName,
		IsEnabled:    input.IsEnabled,
		IsTestMode:   input.IsTestMode,
		Priority:     input.Priority,
		Instructions: input.Instructions,
	}
	if input.Provider == enums.PaymentProviderBankTransfer && len(input.BankAccounts) > 0 {
		encoded, err := json.Marshal(input.BankAccounts)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode bank accounts")
		}
		gateway.BankAccounts = encoded
	}

	saved, err := s.repo.Upsert(ctx, gateway)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert gateway")
	}
	return saved, nil
}

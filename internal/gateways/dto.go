package gateways

import (
	"encoding/json"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/db/models"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
)

// GatewayView is the checkout-facing projection of an available gateway.
// Secrets and admin-only fields never appear here.
type GatewayView struct {
	Provider     enums.PaymentProvider `json:"provider"`
	DisplayName  string                `json:"displayName"`
	IsTestMode   bool                  `json:"isTestMode"`
	Priority     int                   `json:"priority"`
	BankAccounts []models.BankAccount  `json:"bankAccounts,omitempty"`
	Instructions *string               `json:"instructions,omitempty"`
}

// UpsertInput carries the admin-editable gateway fields.
type UpsertInput struct {
	Provider     enums.PaymentProvider
	DisplayName  string
	IsEnabled    bool
	IsTestMode   bool
	Priority     int
	BankAccounts []models.BankAccount
	Instructions *string
}

func viewOf(gateway models.PaymentGateway) GatewayView {
	view := GatewayView{
		Provider:    gateway.Provider,
		DisplayName: gateway.DisplayName,
		IsTestMode:  gateway.IsTestMode,
		Priority:    gateway.Priority,
	}
	if gateway.Provider == enums.PaymentProviderBankTransfer {
		view.Instructions = gateway.Instructions
		if len(gateway.BankAccounts) > 0 {
			// Malformed rows render without account details rather than failing
			// the whole listing.
			var accounts []models.BankAccount
			if err := json.Unmarshal(gateway.BankAccounts, &accounts); err == nil {
				view.BankAccounts = accounts
			}
		}
	}
	return view
}

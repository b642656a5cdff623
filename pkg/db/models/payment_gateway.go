package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
)

// PaymentGateway is the admin-managed availability record for one provider.
// At most one row exists per provider.
type PaymentGateway struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	Provider    enums.PaymentProvider `gorm:"column:provider;type:text;not null;uniqueIndex"`
	DisplayName string                `gorm:"column:display_name;not null"`
	IsEnabled   bool                  `gorm:"column:is_enabled;not null;default:false"`
	IsTestMode  bool                  `gorm:"column:is_test_mode;not null;default:true"`
	Priority    int                   `gorm:"column:priority;not null;default:100"`

	// Bank transfer only.
	BankAccounts json.RawMessage `gorm:"column:bank_accounts;type:jsonb"`
	Instructions *string         `gorm:"column:instructions"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (g *PaymentGateway) BeforeCreate(*gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// BankAccount is one entry of the structured bank account list shown for
// bank transfer checkout.
type BankAccount struct {
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
}

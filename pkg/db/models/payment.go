package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
)

// Payment is the ledger entry for one payment attempt. ProviderRef is globally
// unique and ProcessedAt moves null -> non-null exactly once; together they are
// the at-most-once application gate.
type Payment struct {
	ID       uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	Provider enums.PaymentProvider `gorm:"column:provider;type:text;not null;index"`
	Type     enums.PaymentType     `gorm:"column:type;type:text;not null;default:'initial'"`
	Status   enums.PaymentStatus   `gorm:"column:status;type:text;not null;default:'pending'"`

	Amount   decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency string          `gorm:"column:currency;not null;default:'NGN'"`

	ProviderRef string     `gorm:"column:provider_ref;not null;uniqueIndex"`
	ProcessedAt *time.Time `gorm:"column:processed_at"`

	UserID  *uuid.UUID `gorm:"column:user_id;type:uuid;index"`
	OrderID *uuid.UUID `gorm:"column:order_id;type:uuid;index"`

	PayerEmail *string `gorm:"column:payer_email"`
	PayerName  *string `gorm:"column:payer_name"`
	PayerPhone *string `gorm:"column:payer_phone"`

	Metadata        json.RawMessage `gorm:"column:metadata;type:jsonb"`
	GatewayResponse json.RawMessage `gorm:"column:gateway_response;type:jsonb"`

	// Bank transfer only.
	ReceiptURL *string    `gorm:"column:receipt_url"`
	ApprovedAt *time.Time `gorm:"column:approved_at"`
	ApprovedBy *uuid.UUID `gorm:"column:approved_by;type:uuid"`
	AdminNote  *string    `gorm:"column:admin_note"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// IsProcessed reports whether the payment has already been applied.
func (p *Payment) IsProcessed() bool {
	return p != nil && p.ProcessedAt != nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderAddon snapshots one resolved addon line on an order. Name and price
// are copied from the catalog at materialization time; per-word addons also
// snapshot the formatting word count from checkout metadata.
type OrderAddon struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	AddonID uuid.UUID `gorm:"column:addon_id;type:uuid;not null"`

	Name      string          `gorm:"column:name;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	WordCount *int            `gorm:"column:word_count"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (a *OrderAddon) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

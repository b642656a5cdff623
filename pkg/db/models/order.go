package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
)

// Order is created atomically with its Book and OrderAddon rows the first time
// a guest-checkout payment is applied.
type Order struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber string    `gorm:"column:order_number;not null;uniqueIndex"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	PackageID   uuid.UUID `gorm:"column:package_id;type:uuid;not null"`

	BookSize          enums.BookSize   `gorm:"column:book_size;type:text;not null;default:'a5'"`
	PaperType         enums.PaperType  `gorm:"column:paper_type;type:text;not null;default:'white'"`
	Lamination        enums.Lamination `gorm:"column:lamination;type:text;not null;default:'gloss'"`
	IncludeCover      bool             `gorm:"column:include_cover;not null;default:true"`
	IncludeFormatting bool             `gorm:"column:include_formatting;not null;default:true"`

	TotalAmount decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency    string          `gorm:"column:currency;not null;default:'NGN'"`

	Addons []OrderAddon `gorm:"foreignKey:OrderID"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
)

// Book is the production record behind an order, created in the
// payment_received status once the order is materialized.
type Book struct {
	ID      uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	OrderID uuid.UUID        `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	UserID  uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index"`
	Title   *string          `gorm:"column:title"`
	Status  enums.BookStatus `gorm:"column:status;type:text;not null;default:'payment_received'"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *Book) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

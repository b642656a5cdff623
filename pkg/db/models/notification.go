package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
)

// Notification is an in-app notification row shown in the admin back office.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	Kind      enums.NotificationKind `gorm:"column:kind;type:text;not null"`
	Title     string                 `gorm:"column:title;not null"`
	Body      string                 `gorm:"column:body;not null"`
	PaymentID *uuid.UUID             `gorm:"column:payment_id;type:uuid;index"`
	ReadAt    *time.Time             `gorm:"column:read_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

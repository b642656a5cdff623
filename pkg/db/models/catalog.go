package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Package is one purchasable publishing package. Checkout metadata references
// packages by id first, then by slug or tier.
type Package struct {
	ID       uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Slug     string          `gorm:"column:slug;not null;uniqueIndex"`
	Tier     string          `gorm:"column:tier;not null"`
	Name     string          `gorm:"column:name;not null"`
	Price    decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	IsActive bool            `gorm:"column:is_active;not null;default:true"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Package) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Addon is one catalog addon resolvable from checkout metadata by id or slug.
type Addon struct {
	ID       uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Slug     string          `gorm:"column:slug;not null;uniqueIndex"`
	Name     string          `gorm:"column:name;not null"`
	Price    decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	PerWord  bool            `gorm:"column:per_word;not null;default:false"`
	IsActive bool            `gorm:"column:is_active;not null;default:true"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Addon) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

package gateways

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/db/models"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a gateways repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByProvider(ctx context.Context, provider enums.PaymentProvider) (*models.PaymentGateway, error) {
	var gateway models.PaymentGateway
	err := r.db.WithContext(ctx).
		Where("provider = ?", provider).
		First(&gateway).Error
	if err != nil {
		return nil, err
	}
	return &gateway, nil
}

func (r *repository) ListAll(ctx context.Context) ([]models.PaymentGateway, error) {
	var rows []models.PaymentGateway
	err := r.db.WithContext(ctx).
		Order("priority ASC").
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Upsert(ctx context.Context, gateway *models.PaymentGateway) (*models.PaymentGateway, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "provider"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"display_name", "is_enabled", "is_test_mode", "priority",
				"bank_accounts", "instructions", "updated_at",
			}),
		}).
		Create(gateway).Error
	if err != nil {
		return nil, err
	}
	return r.FindByProvider(ctx, gateway.Provider)
}

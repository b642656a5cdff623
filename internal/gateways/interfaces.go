package gateways

import (
	"context"

	"gorm.io/gorm"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/db/models"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
)

// Repository defines persistence operations for gateway availability rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByProvider(ctx context.Context, provider enums.PaymentProvider) (*models.PaymentGateway, error)
	ListAll(ctx context.Context) ([]models.PaymentGateway, error)
	Upsert(ctx context.Context, gateway *models.PaymentGateway) (*models.PaymentGateway, error)
}

package payments

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/db/models"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByProviderRef(ctx context.Context, reference string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("provider_ref = ?", reference).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) Save(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

func (r *repository) MarkProcessed(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, processedAt time.Time, gatewayResponse, metadata json.RawMessage) (bool, error) {
	updates := map[string]any{
		"status":       status,
		"processed_at": processedAt,
		"updated_at":   processedAt,
	}
	if len(gatewayResponse) > 0 {
		updates["gateway_response"] = gatewayResponse
	}
	if len(metadata) > 0 {
		updates["metadata"] = metadata
	}

	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND processed_at IS NULL", id).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) DecideBankTransfer(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, decidedAt time.Time, adminID uuid.UUID, note *string) (bool, error) {
	updates := map[string]any{
		"status":       status,
		"processed_at": decidedAt,
		"approved_at":  decidedAt,
		"approved_by":  adminID,
		"updated_at":   decidedAt,
	}
	if note != nil {
		updates["admin_note"] = *note
	}

	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ? AND processed_at IS NULL", id, enums.PaymentStatusAwaitingApproval).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ListBankTransfers(ctx context.Context, status *enums.PaymentStatus) ([]models.Payment, error) {
	query := r.db.WithContext(ctx).
		Where("provider = ?", enums.PaymentProviderBankTransfer)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var rows []models.Payment
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

package notifications

import (
	"context"

	"gorm.io/gorm"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/db/models"
)

// Repository persists in-app notification rows.
type Repository interface {
	CreateNotification(ctx context.Context, row *models.Notification) error
	ListUnread(ctx context.Context, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a notifications repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateNotification(ctx context.Context, row *models.Notification) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) ListUnread(ctx context.Context, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Notification
	err := r.db.WithContext(ctx).
		Where("read_at IS NULL").
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) MarkRead(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}

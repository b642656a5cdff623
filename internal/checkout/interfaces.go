package checkout

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/db/models"
)

// Repository defines the persistence operations the materializer needs.
// All writes run inside the transaction the orchestrator opened, threaded in
// through WithTx.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error

	FindPackageByID(ctx context.Context, id uuid.UUID) (*models.Package, error)
	FindPackageBySlug(ctx context.Context, slug string) (*models.Package, error)
	FindPackageByTier(ctx context.Context, tier string) (*models.Package, error)

	FindAddonByID(ctx context.Context, id uuid.UUID) (*models.Addon, error)
	FindAddonBySlug(ctx context.Context, slug string) (*models.Addon, error)

	OrderNumberExists(ctx context.Context, orderNumber string) (bool, error)
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateOrderAddons(ctx context.Context, addons []models.OrderAddon) error
	CreateBook(ctx context.Context, book *models.Book) (*models.Book, error)
}

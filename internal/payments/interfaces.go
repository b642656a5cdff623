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

// Repository defines persistence for the payment ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreatePayment(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByProviderRef(ctx context.Context, reference string) (*models.Payment, error)
	Save(ctx context.Context, payment *models.Payment) error

	// MarkProcessed flips status and processed_at in one conditional update
	// guarded on processed_at IS NULL. It reports whether this caller won.
	// Metadata, when non-empty, replaces the stored metadata in the same
	// update so the materializer sees what the winner resolved.
	MarkProcessed(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, processedAt time.Time, gatewayResponse, metadata json.RawMessage) (bool, error)

	// DecideBankTransfer resolves an awaiting_approval payment in one
	// conditional update. It reports whether this caller won the decision.
	DecideBankTransfer(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, decidedAt time.Time, adminID uuid.UUID, note *string) (bool, error)

	ListBankTransfers(ctx context.Context, status *enums.PaymentStatus) ([]models.Payment, error)
}

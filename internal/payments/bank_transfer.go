package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/cloudinary"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/db/models"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
	pkgerrors "github.com/dextasynergyservices/bookprinta-sub000/pkg/errors"
)

const receiptFolder = "bank-transfer-receipts"

// SubmitBankTransfer records a buyer's claim that an offline transfer was
// made. The payment lands in awaiting_approval and stays there until an
// admin decides it.
func (s *service) SubmitBankTransfer(ctx context.Context, input BankTransferInput) (*models.Payment, error) {
	if input.Email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payer email is required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	paymentType := input.Type
	if paymentType == "" {
		paymentType = enums.PaymentTypeInitial
	}
	if !paymentType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment type %q", paymentType))
	}
	if paymentType.RequiresExistingOrder() && input.OrderID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s payments require an order", paymentType))
	}

	if _, err := s.gateways.EnsureEnabled(ctx, enums.PaymentProviderBankTransfer); err != nil {
		return nil, err
	}

	receiptURL, err := s.storeReceipt(ctx, input)
	if err != nil {
		return nil, err
	}

	reference, err := s.newRef(enums.PaymentProviderBankTransfer)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint payment reference")
	}

	payment := &models.Payment{
		Provider:    enums.PaymentProviderBankTransfer,
		Type:        paymentType,
		Status:      enums.PaymentStatusAwaitingApproval,
		Amount:      input.Amount,
		Currency:    s.currencyOrDefault(input.Currency),
		ProviderRef: reference,
		OrderID:     input.OrderID,
		UserID:      input.UserID,
		ReceiptURL:  receiptURL,
		Metadata:    encodeMetadata(input.Metadata),
	}
	payment.PayerEmail = &input.Email
	if input.Name != "" {
		payment.PayerName = &input.Name
	}
	if input.Phone != "" {
		payment.PayerPhone = &input.Phone
	}

	if _, err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create bank transfer payment")
	}

	s.logInfo(ctx, reference, enums.PaymentProviderBankTransfer, "bank transfer submitted for approval")
	s.notifier.DispatchBankTransferSubmitted(ctx, payment)
	return payment, nil
}

// storeReceipt scans and uploads the attached receipt, if any.
func (s *service) storeReceipt(ctx context.Context, input BankTransferInput) (*string, error) {
	if len(input.ReceiptData) == 0 {
		return nil, nil
	}
	if s.receipts == nil || !s.receipts.Available() {
		return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "receipt storage is not configured")
	}
	if !s.receipts.IsWithinSizeLimit(int64(len(input.ReceiptData))) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt exceeds the upload size limit")
	}
	if mime := cloudinary.DetectMimeType(input.ReceiptData); !cloudinary.IsAllowedMimeType(mime) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("receipt type %s is not accepted", mime))
	}

	if s.scanner != nil {
		scan, err := s.scanner.ScanBuffer(ctx, input.ReceiptData)
		if err != nil {
			if s.scanner.Enforcing() {
				return nil, err
			}
			if s.logger != nil {
				s.logger.Error(ctx, "receipt scan failed, accepting unscanned upload", err)
			}
		} else if !scan.Clean {
			if s.scanner.Enforcing() {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt failed the malware scan")
			}
			if s.logger != nil {
				s.logger.Warn(ctx, fmt.Sprintf("infected receipt accepted in log-only mode: %s", scan.Signature))
			}
		}
	}

	uploaded, err := s.receipts.Upload(ctx, input.ReceiptData, input.ReceiptFilename, receiptFolder)
	if err != nil {
		return nil, err
	}
	return &uploaded.SecureURL, nil
}

// ListBankTransfers returns bank transfer payments for the back office,
// newest first, optionally filtered by status.
func (s *service) ListBankTransfers(ctx context.Context, status *enums.PaymentStatus) ([]models.Payment, error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment status %q", *status))
	}
	rows, err := s.repo.ListBankTransfers(ctx, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list bank transfers")
	}
	return rows, nil
}

// ApproveBankTransfer confirms a transfer and materializes its checkout in
// the same transaction. Only one decision ever wins; later attempts get a
// state conflict.
func (s *service) ApproveBankTransfer(ctx context.Context, input DecisionInput) (*models.Payment, error) {
	outcome, err := s.decideBankTransfer(ctx, input, enums.PaymentStatusSuccess)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncBankTransferDecision("approved")
	}
	s.notifier.DispatchBankTransferDecision(ctx, outcome.payment, true)
	if outcome.checkout != nil && outcome.checkout.SignupToken != "" && outcome.checkout.User != nil {
		s.notifier.SendSignupLink(ctx, outcome.checkout.User.Email, outcome.checkout.User.Name, outcome.checkout.SignupURL)
	}
	return outcome.payment, nil
}

// RejectBankTransfer marks a transfer as failed. The note is mandatory so
// the payer is never told "rejected" without a reason on file. Nothing is
// materialized.
func (s *service) RejectBankTransfer(ctx context.Context, input DecisionInput) (*models.Payment, error) {
	if input.Note == nil || strings.TrimSpace(*input.Note) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejecting a bank transfer requires an admin note")
	}

	outcome, err := s.decideBankTransfer(ctx, input, enums.PaymentStatusFailed)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncBankTransferDecision("rejected")
	}
	s.notifier.DispatchBankTransferDecision(ctx, outcome.payment, false)
	return outcome.payment, nil
}

func (s *service) decideBankTransfer(ctx context.Context, input DecisionInput, target enums.PaymentStatus) (*applyOutcome, error) {
	outcome := &applyOutcome{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		payment, err := repo.FindByID(ctx, input.PaymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "bank transfer payment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
		}
		if payment.Provider != enums.PaymentProviderBankTransfer {
			return pkgerrors.New(pkgerrors.CodeNotFound, "bank transfer payment not found")
		}

		now := s.now()
		won, err := repo.DecideBankTransfer(ctx, payment.ID, target, now, input.AdminID, input.Note)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decide bank transfer")
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment is no longer awaiting approval")
		}

		payment.Status = target
		payment.ProcessedAt = &now
		payment.ApprovedAt = &now
		payment.ApprovedBy = &input.AdminID
		if input.Note != nil {
			payment.AdminNote = input.Note
		}

		if target == enums.PaymentStatusSuccess {
			checkoutResult, err := s.checkout.Materialize(ctx, tx, payment)
			if err != nil {
				return err
			}
			outcome.checkout = checkoutResult
			if checkoutResult != nil {
				if err := repo.Save(ctx, payment); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "link payment to order")
				}
			}
		}

		outcome.payment = payment
		outcome.applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logInfo(ctx, outcome.payment.ProviderRef, enums.PaymentProviderBankTransfer,
		fmt.Sprintf("bank transfer decided with status %s", target))
	return outcome, nil
}

package notifications

import (
	"context"
	"fmt"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/config"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/db/models"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/logger"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/sendgrid"
)

// EmailSender delivers one transactional mail.
type EmailSender interface {
	Send(ctx context.Context, msg sendgrid.Message) error
}

// TextSender delivers one WhatsApp text message.
type TextSender interface {
	SendText(ctx context.Context, to, body string) error
}

// Service fans payment events out to the channels the back office watches.
// Every channel is best-effort: a failed send is logged and never surfaces
// to the payment flow that triggered it.
type Service interface {
	SendSignupLink(ctx context.Context, email, name, signupURL string)
	DispatchBankTransferSubmitted(ctx context.Context, payment *models.Payment)
	DispatchBankTransferDecision(ctx context.Context, payment *models.Payment, approved bool)
	DispatchPaymentReceived(ctx context.Context, payment *models.Payment, order *models.Order)
}

// Params collects the dispatcher dependencies. Email and Text may be nil
// when the corresponding channel is not configured.
type Params struct {
	Repo   Repository
	Email  EmailSender
	Text   TextSender
	Admin  config.AdminConfig
	Logger *logger.Logger
}

type service struct {
	repo   Repository
	email  EmailSender
	text   TextSender
	admin  config.AdminConfig
	logger *logger.Logger
}

// NewService builds the notification dispatcher.
func NewService(params Params) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return &service{
		repo:   params.Repo,
		email:  params.Email,
		text:   params.Text,
		admin:  params.Admin,
		logger: params.Logger,
	}, nil
}

// SendSignupLink mails a guest buyer the link that turns their materialized
// account into a real one.
func (s *service) SendSignupLink(ctx context.Context, email, name, signupURL string) {
	if signupURL == "" {
		return
	}
	s.sendEmail(ctx, sendgrid.Message{
		To:      email,
		Subject: "Finish setting up your Bookprinta account",
		TextBody: fmt.Sprintf(
			"Hello %s,\n\nYour payment was received. Finish setting up your account here:\n%s\n\nThe link expires in 24 hours.",
			name, signupURL,
		),
	}, "signup link email failed")
}

// DispatchBankTransferSubmitted notifies every admin channel that a transfer
// claim is waiting for review, and acknowledges the buyer.
func (s *service) DispatchBankTransferSubmitted(ctx context.Context, payment *models.Payment) {
	if payment == nil {
		return
	}

	title := "Bank transfer awaiting approval"
	body := fmt.Sprintf("Reference %s for %s %s is awaiting approval.", payment.ProviderRef, payment.Currency, payment.Amount.StringFixed(2))

	s.createRow(ctx, enums.NotificationKindBankTransferSubmitted, title, body, payment)

	s.sendEmail(ctx, sendgrid.Message{
		To:       s.admin.NotifyEmail,
		Subject:  title,
		TextBody: body + "\nReview it in the back office.",
	}, "admin bank transfer email failed")

	s.sendText(ctx, s.admin.NotifyWhatsApp, body, "admin bank transfer whatsapp failed")

	if payment.PayerEmail != nil && *payment.PayerEmail != "" {
		s.sendEmail(ctx, sendgrid.Message{
			To:      *payment.PayerEmail,
			Subject: "We received your bank transfer details",
			TextBody: fmt.Sprintf(
				"Thanks! We received your transfer details for reference %s. We will confirm the payment shortly.",
				payment.ProviderRef,
			),
		}, "buyer bank transfer acknowledgment failed")
	}
}

// DispatchBankTransferDecision records the approve/reject outcome and tells
// the buyer.
func (s *service) DispatchBankTransferDecision(ctx context.Context, payment *models.Payment, approved bool) {
	if payment == nil {
		return
	}

	kind := enums.NotificationKindBankTransferApproved
	title := "Bank transfer approved"
	buyerSubject := "Your payment is confirmed"
	buyerBody := fmt.Sprintf("Your bank transfer (reference %s) has been confirmed. Your order is on its way into production.", payment.ProviderRef)
	if !approved {
		kind = enums.NotificationKindBankTransferRejected
		title = "Bank transfer rejected"
		buyerSubject = "We could not confirm your payment"
		buyerBody = fmt.Sprintf("We could not confirm your bank transfer (reference %s). Reply to this email if you believe this is a mistake.", payment.ProviderRef)
		if payment.AdminNote != nil && *payment.AdminNote != "" {
			buyerBody += "\nNote from our team: " + *payment.AdminNote
		}
	}

	s.createRow(ctx, kind, title, fmt.Sprintf("Reference %s: %s", payment.ProviderRef, title), payment)

	if payment.PayerEmail != nil && *payment.PayerEmail != "" {
		s.sendEmail(ctx, sendgrid.Message{
			To:       *payment.PayerEmail,
			Subject:  buyerSubject,
			TextBody: buyerBody,
		}, "buyer decision email failed")
	}
}

// DispatchPaymentReceived records a successful online payment for the back
// office feed.
func (s *service) DispatchPaymentReceived(ctx context.Context, payment *models.Payment, order *models.Order) {
	if payment == nil {
		return
	}

	body := fmt.Sprintf("Payment %s %s received via %s (reference %s).",
		payment.Currency, payment.Amount.StringFixed(2), payment.Provider, payment.ProviderRef)
	if order != nil {
		body += " Order " + order.OrderNumber + "."
	}
	s.createRow(ctx, enums.NotificationKindPaymentReceived, "Payment received", body, payment)
}

func (s *service) createRow(ctx context.Context, kind enums.NotificationKind, title, body string, payment *models.Payment) {
	row := &models.Notification{
		Kind:      kind,
		Title:     title,
		Body:      body,
		PaymentID: &payment.ID,
	}
	if err := s.repo.CreateNotification(ctx, row); err != nil {
		s.logFailure(ctx, "in-app notification insert failed", err)
	}
}

func (s *service) sendEmail(ctx context.Context, msg sendgrid.Message, failure string) {
	if s.email == nil || msg.To == "" {
		return
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logFailure(ctx, failure, err)
	}
}

func (s *service) sendText(ctx context.Context, to, body, failure string) {
	if s.text == nil || to == "" {
		return
	}
	if err := s.text.SendText(ctx, to, body); err != nil {
		s.logFailure(ctx, failure, err)
	}
}

func (s *service) logFailure(ctx context.Context, msg string, err error) {
	if s.logger == nil {
		return
	}
	s.logger.Error(ctx, msg, err)
}

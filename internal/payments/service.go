package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/dextasynergyservices/bookprinta-sub000/internal/checkout"
	"github.com/dextasynergyservices/bookprinta-sub000/internal/notifications"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/clamav"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/cloudinary"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/config"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/db"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/db/models"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
	pkgerrors "github.com/dextasynergyservices/bookprinta-sub000/pkg/errors"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/logger"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/metrics"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/providers"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/redis"
)

// metadataStashTTL bounds how long guest-checkout metadata waits for its
// webhook. Anything older than a day will not materialize anyway.
const metadataStashTTL = 24 * time.Hour

const metadataStashPrefix = "bp:checkout_meta:"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// GatewayRegistry is the slice of the gateway service the orchestrator uses.
type GatewayRegistry interface {
	EnsureEnabled(ctx context.Context, provider enums.PaymentProvider) (*models.PaymentGateway, error)
	AdapterFor(provider enums.PaymentProvider) providers.Adapter
}

// ReceiptStore persists bank transfer receipts.
type ReceiptStore interface {
	Available() bool
	IsWithinSizeLimit(size int64) bool
	Upload(ctx context.Context, data []byte, filename, folder string) (*cloudinary.UploadResult, error)
}

// ReceiptScanner checks receipt uploads for malware.
type ReceiptScanner interface {
	Enforcing() bool
	ScanBuffer(ctx context.Context, data []byte) (*clamav.ScanResult, error)
}

type kvStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

// Service orchestrates the payment lifecycle across gateways, the ledger,
// checkout materialization and notifications.
type Service interface {
	Initialize(ctx context.Context, input InitializeInput) (*InitializeOutput, error)
	HandleWebhook(ctx context.Context, provider enums.PaymentProvider, event WebhookEvent) error
	Verify(ctx context.Context, reference string) (*VerifyOutput, error)

	SubmitBankTransfer(ctx context.Context, input BankTransferInput) (*models.Payment, error)
	ListBankTransfers(ctx context.Context, status *enums.PaymentStatus) ([]models.Payment, error)
	ApproveBankTransfer(ctx context.Context, input DecisionInput) (*models.Payment, error)
	RejectBankTransfer(ctx context.Context, input DecisionInput) (*models.Payment, error)
}

// Params collects the orchestrator dependencies. Cache, Receipts, Scanner
// and Metrics are optional; Now and NewReference default and exist for tests.
type Params struct {
	Repo     Repository
	Tx       txRunner
	Gateways GatewayRegistry
	Checkout checkout.Service
	Notifier notifications.Service

	Metrics *metrics.PaymentMetrics
	Dedup   redis.DedupStore
	Cache   kvStore

	Receipts ReceiptStore
	Scanner  ReceiptScanner

	Config   config.CheckoutConfig
	DedupTTL time.Duration
	Logger   *logger.Logger

	Now          func() time.Time
	NewReference func(provider enums.PaymentProvider) (string, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	gateways GatewayRegistry
	checkout checkout.Service
	notifier notifications.Service

	metrics *metrics.PaymentMetrics
	dedup   *dedupGuard
	cache   kvStore

	receipts ReceiptStore
	scanner  ReceiptScanner

	cfg    config.CheckoutConfig
	logger *logger.Logger

	now    func() time.Time
	newRef func(provider enums.PaymentProvider) (string, error)
}

// NewService builds the payment orchestrator.
func NewService(params Params) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Gateways == nil {
		return nil, fmt.Errorf("gateway registry required")
	}
	if params.Checkout == nil {
		return nil, fmt.Errorf("checkout materializer required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notification dispatcher required")
	}

	svc := &service{
		repo:     params.Repo,
		tx:       params.Tx,
		gateways: params.Gateways,
		checkout: params.Checkout,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		dedup:    newDedupGuard(params.Dedup, params.DedupTTL, params.Logger),
		cache:    params.Cache,
		receipts: params.Receipts,
		scanner:  params.Scanner,
		cfg:      params.Config,
		logger:   params.Logger,
		now:      params.Now,
		newRef:   params.NewReference,
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.newRef == nil {
		svc.newRef = NewReference
	}
	return svc, nil
}

// Initialize opens a checkout session with an online gateway. Guest initial
// payments create no ledger row yet; the row appears when the payment is
// applied. Follow-up payment types write a pending row up front so the
// checkout page can show it.
func (s *service) Initialize(ctx context.Context, input InitializeInput) (*InitializeOutput, error) {
	if !input.Provider.IsOnline() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bank transfers are submitted through the bank transfer flow")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment type %q", input.Type))
	}
	if input.Email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payer email is required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if input.Type.RequiresExistingOrder() && input.OrderID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s payments require an order", input.Type))
	}

	if _, err := s.gateways.EnsureEnabled(ctx, input.Provider); err != nil {
		return nil, err
	}
	adapter := s.gateways.AdapterFor(input.Provider)

	currency := s.currencyOrDefault(input.Currency)
	reference, err := s.newRef(input.Provider)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint payment reference")
	}

	if input.Type.RequiresExistingOrder() {
		payment := &models.Payment{
			Provider:    input.Provider,
			Type:        input.Type,
			Status:      enums.PaymentStatusPending,
			Amount:      input.Amount,
			Currency:    currency,
			ProviderRef: reference,
			OrderID:     input.OrderID,
			UserID:      input.UserID,
		}
		if input.Email != "" {
			payment.PayerEmail = &input.Email
		}
		if encoded := encodeMetadata(input.Metadata); encoded != nil {
			payment.Metadata = encoded
		}
		if _, err := s.repo.CreatePayment(ctx, payment); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create pending payment")
		}
	} else {
		s.stashMetadata(ctx, reference, input.Metadata)
	}

	result, err := adapter.Initialize(ctx, providers.InitializeParams{
		Email:       input.Email,
		Amount:      input.Amount,
		Currency:    currency,
		Reference:   reference,
		CallbackURL: s.callbackURL(reference),
		Metadata:    input.Metadata,
	})
	if err != nil {
		return nil, err
	}

	s.logInfo(ctx, reference, input.Provider, "checkout session initialized")
	return &InitializeOutput{
		Provider:         input.Provider,
		Reference:        reference,
		AuthorizationURL: result.AuthorizationURL,
		AccessCode:       result.AccessCode,
	}, nil
}

// HandleWebhook processes one signature-checked delivery. The charge is
// always re-verified against the provider before anything is applied, so a
// forged or stale payload cannot flip the ledger.
func (s *service) HandleWebhook(ctx context.Context, provider enums.PaymentProvider, event WebhookEvent) error {
	if event.Reference == "" {
		s.countWebhook(provider, "invalid")
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook event carries no reference")
	}

	if s.dedup.seen(ctx, provider.String(), event.EventID) {
		s.countWebhook(provider, "duplicate")
		return nil
	}

	adapter := s.gateways.AdapterFor(provider)
	if adapter == nil || !adapter.Available() {
		s.dedup.release(ctx, provider.String(), event.EventID)
		s.countWebhook(provider, "unavailable")
		return pkgerrors.New(pkgerrors.CodeUnavailable, fmt.Sprintf("no adapter available for %s", provider))
	}

	result, err := adapter.Verify(ctx, event.Reference)
	if err != nil {
		s.dedup.release(ctx, provider.String(), event.EventID)
		s.countWebhook(provider, "verify_failed")
		return err
	}

	if !result.Verified && !isTerminalProviderStatus(result.Status) {
		// The charge is still in flight at the provider. Failing it now
		// would lock the row against the real outcome, so drop the
		// delivery and let a later callback or verify settle it. The
		// claim is released because some gateways reuse the event id
		// across the pending and final callbacks.
		s.dedup.release(ctx, provider.String(), event.EventID)
		s.countWebhook(provider, "ignored")
		s.logInfo(ctx, event.Reference, provider,
			fmt.Sprintf("webhook ignored, charge still %s at provider", result.Status))
		return nil
	}

	outcome, err := s.applyProviderPayment(ctx, provider, event.Reference, result)
	if err != nil {
		s.dedup.release(ctx, provider.String(), event.EventID)
		s.countWebhook(provider, "error")
		return err
	}
	if outcome.applied {
		s.countWebhook(provider, "applied")
	} else {
		s.countWebhook(provider, "duplicate")
	}
	return nil
}

// Verify resolves a reference from the callback page. Known processed
// references answer from the ledger without touching the provider.
func (s *service) Verify(ctx context.Context, reference string) (*VerifyOutput, error) {
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}

	payment, err := s.repo.FindByProviderRef(ctx, reference)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
	}

	if payment != nil && payment.IsProcessed() {
		return &VerifyOutput{
			Reference: reference,
			Provider:  payment.Provider,
			Status:    payment.Status,
			Processed: true,
		}, nil
	}

	if payment != nil && payment.Provider == enums.PaymentProviderBankTransfer {
		// Nothing to verify online; the admin decision moves it forward.
		return &VerifyOutput{
			Reference: reference,
			Provider:  payment.Provider,
			Status:    payment.Status,
		}, nil
	}

	provider, result, err := s.verifyAgainstProvider(ctx, payment, reference)
	if err != nil {
		return nil, err
	}

	if !result.Verified && !isTerminalProviderStatus(result.Status) {
		status := enums.PaymentStatusPending
		if payment != nil {
			status = payment.Status
		}
		return &VerifyOutput{
			Reference:       reference,
			Provider:        provider,
			Status:          status,
			AwaitingWebhook: true,
		}, nil
	}

	outcome, err := s.applyProviderPayment(ctx, provider, reference, result)
	if err != nil {
		return nil, err
	}

	output := &VerifyOutput{
		Reference: reference,
		Provider:  provider,
		Status:    outcome.payment.Status,
		Processed: outcome.payment.IsProcessed(),
	}
	if outcome.checkout != nil {
		if outcome.checkout.Order != nil {
			output.OrderNumber = outcome.checkout.Order.OrderNumber
		}
		output.SignupURL = outcome.checkout.SignupURL
	}
	return output, nil
}

// verifyAgainstProvider finds which gateway knows the reference: the ledger
// hint first, then prefix recognition, then each online provider in fixed
// order. A reference nobody recognizes is NotFound.
func (s *service) verifyAgainstProvider(ctx context.Context, payment *models.Payment, reference string) (enums.PaymentProvider, *providers.VerifyResult, error) {
	if payment != nil {
		adapter := s.gateways.AdapterFor(payment.Provider)
		if adapter == nil || !adapter.Available() {
			return "", nil, pkgerrors.New(pkgerrors.CodeUnavailable, fmt.Sprintf("no adapter available for %s", payment.Provider))
		}
		result, err := adapter.Verify(ctx, reference)
		if err != nil {
			return "", nil, err
		}
		return payment.Provider, result, nil
	}

	tried := map[enums.PaymentProvider]bool{}
	for _, provider := range enums.OnlinePaymentProviders() {
		adapter := s.gateways.AdapterFor(provider)
		if adapter == nil || !adapter.Available() || !adapter.RecognizesReference(reference) {
			continue
		}
		tried[provider] = true
		result, err := adapter.Verify(ctx, reference)
		if err == nil {
			return provider, result, nil
		}
		if code := pkgerrors.As(err); code == nil || code.Code() != pkgerrors.CodeNotFound {
			return "", nil, err
		}
	}

	for _, provider := range enums.OnlinePaymentProviders() {
		if tried[provider] {
			continue
		}
		adapter := s.gateways.AdapterFor(provider)
		if adapter == nil || !adapter.Available() {
			continue
		}
		result, err := adapter.Verify(ctx, reference)
		if err == nil {
			return provider, result, nil
		}
		if code := pkgerrors.As(err); code == nil || code.Code() != pkgerrors.CodeNotFound {
			return "", nil, err
		}
	}

	return "", nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no payment found for reference %s", reference))
}

type applyOutcome struct {
	payment  *models.Payment
	applied  bool
	checkout *checkout.Result
}

// applyProviderPayment is the idempotent core. The conditional processed_at
// update decides exactly one winner per reference; everything the winner
// creates rides the same transaction.
func (s *service) applyProviderPayment(ctx context.Context, provider enums.PaymentProvider, reference string, result *providers.VerifyResult) (*applyOutcome, error) {
	target := enums.PaymentStatusFailed
	if result.Verified {
		target = enums.PaymentStatusSuccess
	}

	outcome := &applyOutcome{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		payment, err := s.findOrCreateLedgerRow(ctx, repo, provider, reference, result)
		if err != nil {
			return err
		}
		if payment.IsProcessed() {
			outcome.payment = payment
			return nil
		}
		if !payment.Status.CanTransitionTo(target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("payment %s cannot move from %s to %s", reference, payment.Status, target))
		}

		now := s.now()
		merged := mergeMetadata(payment.Metadata, result.Metadata)
		won, err := repo.MarkProcessed(ctx, payment.ID, target, now, result.Raw, merged)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark payment processed")
		}
		if !won {
			reloaded, err := repo.FindByID(ctx, payment.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload payment")
			}
			outcome.payment = reloaded
			return nil
		}

		payment.Status = target
		payment.ProcessedAt = &now
		payment.GatewayResponse = result.Raw
		if len(merged) > 0 {
			payment.Metadata = merged
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

	if outcome.applied {
		s.dropStashedMetadata(ctx, reference)
		if s.metrics != nil {
			s.metrics.IncApplied(provider.String(), outcome.payment.Type.String())
		}
		s.logInfo(ctx, reference, provider, fmt.Sprintf("payment applied with status %s", outcome.payment.Status))
		s.afterApply(ctx, outcome)
	}
	return outcome, nil
}

// findOrCreateLedgerRow loads the ledger row for a reference, creating it
// for guest initial payments. A unique violation on create means a racing
// delivery inserted it first; that row wins.
func (s *service) findOrCreateLedgerRow(ctx context.Context, repo Repository, provider enums.PaymentProvider, reference string, result *providers.VerifyResult) (*models.Payment, error) {
	payment, err := repo.FindByProviderRef(ctx, reference)
	if err == nil {
		return payment, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
	}

	payment = &models.Payment{
		Provider:    provider,
		Type:        enums.PaymentTypeInitial,
		Status:      enums.PaymentStatusPending,
		Amount:      result.Amount,
		Currency:    s.currencyOrDefault(result.Currency),
		ProviderRef: reference,
		Metadata:    s.checkoutMetadata(ctx, reference, result),
	}
	if result.PayerEmail != "" {
		email := strings.ToLower(result.PayerEmail)
		payment.PayerEmail = &email
	}

	if _, err := repo.CreatePayment(ctx, payment); err != nil {
		if db.IsUniqueViolation(err, "provider_ref") {
			existing, err := repo.FindByProviderRef(ctx, reference)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload racing payment")
			}
			return existing, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create payment")
	}
	return payment, nil
}

// mergeMetadata overlays the provider's metadata echo on top of what the
// row already carries. Provider keys win; a JSON-invalid side falls back to
// whichever side parses.
func mergeMetadata(existing, incoming json.RawMessage) json.RawMessage {
	if len(incoming) == 0 || string(incoming) == "null" {
		return existing
	}
	if len(existing) == 0 || string(existing) == "null" {
		return incoming
	}

	var base, overlay map[string]any
	if err := json.Unmarshal(existing, &base); err != nil {
		return incoming
	}
	if err := json.Unmarshal(incoming, &overlay); err != nil {
		return existing
	}
	for k, v := range overlay {
		base[k] = v
	}
	merged, err := json.Marshal(base)
	if err != nil {
		return incoming
	}
	return merged
}

// checkoutMetadata prefers the gateway's metadata echo and falls back to the
// stash written at initialize for gateways that do not echo.
func (s *service) checkoutMetadata(ctx context.Context, reference string, result *providers.VerifyResult) json.RawMessage {
	if len(result.Metadata) > 0 && string(result.Metadata) != "null" {
		return result.Metadata
	}
	if s.cache == nil {
		return nil
	}
	stashed, err := s.cache.Get(ctx, metadataStashPrefix+reference)
	if err != nil || stashed == "" {
		return nil
	}
	return json.RawMessage(stashed)
}

func (s *service) stashMetadata(ctx context.Context, reference string, metadata map[string]any) {
	if s.cache == nil || len(metadata) == 0 {
		return
	}
	encoded := encodeMetadata(metadata)
	if encoded == nil {
		return
	}
	if _, err := s.cache.SetNX(ctx, metadataStashPrefix+reference, string(encoded), metadataStashTTL); err != nil && s.logger != nil {
		s.logger.Warn(ctx, "stashing checkout metadata failed")
	}
}

func (s *service) dropStashedMetadata(ctx context.Context, reference string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, metadataStashPrefix+reference)
}

// afterApply runs the best-effort side effects of a successful apply.
func (s *service) afterApply(ctx context.Context, outcome *applyOutcome) {
	if outcome.payment.Status != enums.PaymentStatusSuccess {
		return
	}
	var order *models.Order
	if outcome.checkout != nil {
		order = outcome.checkout.Order
		if outcome.checkout.SignupToken != "" && outcome.checkout.User != nil {
			s.notifier.SendSignupLink(ctx, outcome.checkout.User.Email, outcome.checkout.User.Name, outcome.checkout.SignupURL)
		}
	}
	s.notifier.DispatchPaymentReceived(ctx, outcome.payment, order)
}

func (s *service) currencyOrDefault(currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = strings.ToUpper(s.cfg.DefaultCurrency)
	}
	if currency == "" {
		currency = "NGN"
	}
	return currency
}

func (s *service) callbackURL(reference string) string {
	base := strings.TrimRight(s.cfg.CallbackBaseURL, "/")
	if base == "" {
		return ""
	}
	return fmt.Sprintf("%s?reference=%s", base, reference)
}

func (s *service) countWebhook(provider enums.PaymentProvider, outcome string) {
	if s.metrics != nil {
		s.metrics.IncWebhookEvent(provider.String(), outcome)
	}
}

func (s *service) logInfo(ctx context.Context, reference string, provider enums.PaymentProvider, msg string) {
	if s.logger == nil {
		return
	}
	ctx = s.logger.WithReference(ctx, reference)
	ctx = s.logger.WithProvider(ctx, provider.String())
	s.logger.Info(ctx, msg)
}

// isTerminalProviderStatus reports whether the gateway considers the charge
// finished. Anything else is still in flight and left for the webhook.
func isTerminalProviderStatus(status string) bool {
	switch strings.ToLower(status) {
	case "success", "successful", "failed", "abandoned", "cancelled", "close", "fail", "reversed":
		return true
	}
	return false
}

func encodeMetadata(metadata map[string]any) json.RawMessage {
	if len(metadata) == 0 {
		return nil
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return nil
	}
	return encoded
}

package payments

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dextasynergyservices/bookprinta-sub000/internal/checkout"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/config"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/db"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/db/models"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
	pkgerrors "github.com/dextasynergyservices/bookprinta-sub000/pkg/errors"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/providers"
)

type fakeAdapter struct {
	provider  enums.PaymentProvider
	available bool
	prefix    string

	initResult *providers.InitializeResult
	initErr    error
	initCalls  []providers.InitializeParams

	verifyResults map[string]*providers.VerifyResult
	verifyErr     error
}

func (a *fakeAdapter) Provider() enums.PaymentProvider { return a.provider }
func (a *fakeAdapter) Available() bool                 { return a.available }

func (a *fakeAdapter) Initialize(_ context.Context, params providers.InitializeParams) (*providers.InitializeResult, error) {
	a.initCalls = append(a.initCalls, params)
	if a.initErr != nil {
		return nil, a.initErr
	}
	if a.initResult != nil {
		return a.initResult, nil
	}
	return &providers.InitializeResult{
		AuthorizationURL: "https://pay.example.com/" + params.Reference,
		Reference:        params.Reference,
	}, nil
}

func (a *fakeAdapter) Verify(_ context.Context, reference string) (*providers.VerifyResult, error) {
	if a.verifyErr != nil {
		return nil, a.verifyErr
	}
	if result, ok := a.verifyResults[reference]; ok {
		return result, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown reference")
}

func (a *fakeAdapter) VerifyWebhookSignature([]byte, string) bool { return true }

func (a *fakeAdapter) RecognizesReference(reference string) bool {
	return a.prefix != "" && len(reference) > len(a.prefix) && reference[:len(a.prefix)+1] == a.prefix+"_"
}

type fakeRegistry struct {
	adapters map[enums.PaymentProvider]*fakeAdapter
	gateways map[enums.PaymentProvider]*models.PaymentGateway
}

func (r *fakeRegistry) EnsureEnabled(_ context.Context, provider enums.PaymentProvider) (*models.PaymentGateway, error) {
	if gw, ok := r.gateways[provider]; ok {
		return gw, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "gateway not configured")
}

func (r *fakeRegistry) AdapterFor(provider enums.PaymentProvider) providers.Adapter {
	if adapter, ok := r.adapters[provider]; ok {
		return adapter
	}
	return nil
}

type recordingNotifier struct {
	signupLinks []string
	received    int
	decisions   []bool
	submitted   int
}

func (n *recordingNotifier) SendSignupLink(_ context.Context, _, _, url string) {
	n.signupLinks = append(n.signupLinks, url)
}

func (n *recordingNotifier) DispatchBankTransferSubmitted(context.Context, *models.Payment) {
	n.submitted++
}

func (n *recordingNotifier) DispatchBankTransferDecision(_ context.Context, _ *models.Payment, approved bool) {
	n.decisions = append(n.decisions, approved)
}

func (n *recordingNotifier) DispatchPaymentReceived(context.Context, *models.Payment, *models.Order) {
	n.received++
}

// memoryDedup backs the webhook dedup guard in tests the way redis does in
// production: one claim per key, released on Del.
type memoryDedup struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemoryDedup() *memoryDedup { return &memoryDedup{keys: map[string]bool{}} }

func (m *memoryDedup) Get(context.Context, string) (string, error) { return "", nil }

func (m *memoryDedup) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryDedup) DedupKey(scope, id string) string {
	return "bp:webhook_dedup:" + scope + ":" + id
}

func (m *memoryDedup) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

type fixture struct {
	conn     *gorm.DB
	svc      Service
	registry *fakeRegistry
	notifier *recordingNotifier
	paystack *fakeAdapter
	dedup    *memoryDedup
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = conn.AutoMigrate(
		&models.User{}, &models.Package{}, &models.Addon{}, &models.Order{},
		&models.OrderAddon{}, &models.Book{}, &models.Payment{}, &models.PaymentGateway{},
	)
	if err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}

	checkoutSvc, err := checkout.NewService(checkout.Params{
		Repo: checkout.NewRepository(conn),
		Config: config.CheckoutConfig{
			SignupBaseURL:   "https://bookprinta.com/signup/finish",
			SignupTokenTTL:  24 * time.Hour,
			DefaultCurrency: "NGN",
		},
	})
	if err != nil {
		t.Fatalf("checkout service: %v", err)
	}

	paystack := &fakeAdapter{
		provider:      enums.PaymentProviderPaystack,
		available:     true,
		prefix:        "ps",
		verifyResults: map[string]*providers.VerifyResult{},
	}
	registry := &fakeRegistry{
		adapters: map[enums.PaymentProvider]*fakeAdapter{
			enums.PaymentProviderPaystack: paystack,
		},
		gateways: map[enums.PaymentProvider]*models.PaymentGateway{
			enums.PaymentProviderPaystack:     {Provider: enums.PaymentProviderPaystack, IsEnabled: true},
			enums.PaymentProviderBankTransfer: {Provider: enums.PaymentProviderBankTransfer, IsEnabled: true},
		},
	}
	notifier := &recordingNotifier{}
	dedup := newMemoryDedup()

	svc, err := NewService(Params{
		Repo:     NewRepository(conn),
		Tx:       db.FromConn(conn),
		Gateways: registry,
		Checkout: checkoutSvc,
		Notifier: notifier,
		Dedup:    dedup,
		Config: config.CheckoutConfig{
			CallbackBaseURL: "https://bookprinta.com/checkout/callback",
			DefaultCurrency: "NGN",
		},
	})
	if err != nil {
		t.Fatalf("payments service: %v", err)
	}

	return &fixture{conn: conn, svc: svc, registry: registry, notifier: notifier, paystack: paystack, dedup: dedup}
}

func (f *fixture) seedPackage(t *testing.T) *models.Package {
	t.Helper()
	pkg := &models.Package{Slug: "standard", Tier: "standard", Name: "Standard", Price: decimal.RequireFromString("150000"), IsActive: true}
	if err := f.conn.Create(pkg).Error; err != nil {
		t.Fatalf("seed package: %v", err)
	}
	return pkg
}

func successVerify(metadata map[string]any) *providers.VerifyResult {
	encoded, _ := json.Marshal(metadata)
	return &providers.VerifyResult{
		Verified:   true,
		Status:     "success",
		Amount:     decimal.RequireFromString("150000"),
		Currency:   "NGN",
		PayerEmail: "buyer@example.com",
		Metadata:   encoded,
		Raw:        json.RawMessage(`{"status":true}`),
	}
}

func guestMetadata() map[string]any {
	return map[string]any{
		"customer":    map[string]any{"email": "buyer@example.com", "name": "Ada"},
		"packageSlug": "standard",
	}
}

func TestWebhookAppliesGuestCheckoutExactlyOnce(t *testing.T) {
	f := newFixture(t)
	f.seedPackage(t)

	ref := "ps_m1abc_0001"
	f.paystack.verifyResults[ref] = successVerify(guestMetadata())

	event := WebhookEvent{EventID: "evt_1", Kind: "charge.success", Reference: ref}
	if err := f.svc.HandleWebhook(context.Background(), enums.PaymentProviderPaystack, event); err != nil {
		t.Fatalf("first webhook: %v", err)
	}

	// Second delivery of the same charge must be a no-op.
	if err := f.svc.HandleWebhook(context.Background(), enums.PaymentProviderPaystack, WebhookEvent{
		EventID: "evt_2", Kind: "charge.success", Reference: ref,
	}); err != nil {
		t.Fatalf("duplicate webhook: %v", err)
	}

	var payments []models.Payment
	if err := f.conn.Find(&payments).Error; err != nil {
		t.Fatalf("load payments: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("expected 1 ledger row, got %d", len(payments))
	}
	if payments[0].Status != enums.PaymentStatusSuccess || payments[0].ProcessedAt == nil {
		t.Fatalf("unexpected payment state %+v", payments[0])
	}

	var orders, books, users int64
	f.conn.Model(&models.Order{}).Count(&orders)
	f.conn.Model(&models.Book{}).Count(&books)
	f.conn.Model(&models.User{}).Count(&users)
	if orders != 1 || books != 1 || users != 1 {
		t.Fatalf("expected one materialized graph, got orders=%d books=%d users=%d", orders, books, users)
	}
	if f.notifier.received != 1 || len(f.notifier.signupLinks) != 1 {
		t.Fatalf("expected one payment-received plus one signup link, got %d/%d", f.notifier.received, len(f.notifier.signupLinks))
	}
}

func TestVerifyThenWebhookRace(t *testing.T) {
	f := newFixture(t)
	f.seedPackage(t)

	ref := "ps_m1abc_0002"
	f.paystack.verifyResults[ref] = successVerify(guestMetadata())

	out, err := f.svc.Verify(context.Background(), ref)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !out.Processed || out.Status != enums.PaymentStatusSuccess {
		t.Fatalf("expected processed success, got %+v", out)
	}
	if out.SignupURL == "" || out.OrderNumber == "" {
		t.Fatalf("verify should surface order number and signup link, got %+v", out)
	}

	// Webhook lands after verify already applied the payment.
	if err := f.svc.HandleWebhook(context.Background(), enums.PaymentProviderPaystack, WebhookEvent{
		EventID: "evt_late", Kind: "charge.success", Reference: ref,
	}); err != nil {
		t.Fatalf("late webhook: %v", err)
	}

	var orders int64
	f.conn.Model(&models.Order{}).Count(&orders)
	if orders != 1 {
		t.Fatalf("race produced %d orders", orders)
	}
}

func TestVerifyCachedAfterProcessing(t *testing.T) {
	f := newFixture(t)
	f.seedPackage(t)

	ref := "ps_m1abc_0003"
	f.paystack.verifyResults[ref] = successVerify(guestMetadata())

	if _, err := f.svc.Verify(context.Background(), ref); err != nil {
		t.Fatalf("verify: %v", err)
	}

	// Remove the provider-side record; the ledger must answer alone.
	delete(f.paystack.verifyResults, ref)
	out, err := f.svc.Verify(context.Background(), ref)
	if err != nil {
		t.Fatalf("cached verify: %v", err)
	}
	if !out.Processed || out.Status != enums.PaymentStatusSuccess {
		t.Fatalf("expected cached success, got %+v", out)
	}
}

func TestVerifyUnknownReferenceIsNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Verify(context.Background(), "ps_nope_0000")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestVerifyPendingChargeAwaitsWebhook(t *testing.T) {
	f := newFixture(t)

	ref := "ps_m1abc_0004"
	f.paystack.verifyResults[ref] = &providers.VerifyResult{
		Verified: false,
		Status:   "ongoing",
		Amount:   decimal.RequireFromString("150000"),
		Currency: "NGN",
	}

	out, err := f.svc.Verify(context.Background(), ref)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !out.AwaitingWebhook || out.Processed {
		t.Fatalf("expected awaiting webhook, got %+v", out)
	}

	var payments int64
	f.conn.Model(&models.Payment{}).Count(&payments)
	if payments != 0 {
		t.Fatal("in-flight charges must not create ledger rows")
	}
}

func TestFailedChargeNeverFlipsBackToSuccess(t *testing.T) {
	f := newFixture(t)
	f.seedPackage(t)

	ref := "ps_m1abc_0005"
	f.paystack.verifyResults[ref] = &providers.VerifyResult{
		Verified: false,
		Status:   "failed",
		Amount:   decimal.RequireFromString("150000"),
		Currency: "NGN",
		Raw:      json.RawMessage(`{"status":false}`),
	}

	out, err := f.svc.Verify(context.Background(), ref)
	if err != nil {
		t.Fatalf("verify failed charge: %v", err)
	}
	if out.Status != enums.PaymentStatusFailed || !out.Processed {
		t.Fatalf("expected processed failure, got %+v", out)
	}

	// A later (bogus) success for the same reference must not re-open it.
	f.paystack.verifyResults[ref] = successVerify(guestMetadata())
	out, err = f.svc.Verify(context.Background(), ref)
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if out.Status != enums.PaymentStatusFailed {
		t.Fatalf("failed payment flipped to %s", out.Status)
	}

	var orders int64
	f.conn.Model(&models.Order{}).Count(&orders)
	if orders != 0 {
		t.Fatal("failed payments must not materialize orders")
	}
}

func TestInitializeExtraPagesMintsDistinctReferences(t *testing.T) {
	f := newFixture(t)
	orderID := uuid.New()

	input := InitializeInput{
		Provider: enums.PaymentProviderPaystack,
		Type:     enums.PaymentTypeExtraPages,
		Email:    "buyer@example.com",
		Amount:   decimal.RequireFromString("20000"),
		OrderID:  &orderID,
	}

	first, err := f.svc.Initialize(context.Background(), input)
	if err != nil {
		t.Fatalf("first initialize: %v", err)
	}
	second, err := f.svc.Initialize(context.Background(), input)
	if err != nil {
		t.Fatalf("second initialize: %v", err)
	}
	if first.Reference == second.Reference {
		t.Fatalf("repeated initialize reused reference %s", first.Reference)
	}

	// Each attempt leaves its own pending row.
	var payments []models.Payment
	if err := f.conn.Find(&payments).Error; err != nil {
		t.Fatalf("load payments: %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("expected 2 pending rows, got %d", len(payments))
	}
	for _, p := range payments {
		if p.Status != enums.PaymentStatusPending || p.Type != enums.PaymentTypeExtraPages {
			t.Fatalf("unexpected row %+v", p)
		}
		if p.Currency != "NGN" {
			t.Fatalf("expected default NGN currency, got %s", p.Currency)
		}
	}
}

func TestInitializeGuestInitialCreatesNoRow(t *testing.T) {
	f := newFixture(t)

	out, err := f.svc.Initialize(context.Background(), InitializeInput{
		Provider: enums.PaymentProviderPaystack,
		Type:     enums.PaymentTypeInitial,
		Email:    "buyer@example.com",
		Amount:   decimal.RequireFromString("150000"),
		Metadata: guestMetadata(),
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if out.AuthorizationURL == "" {
		t.Fatal("expected an authorization url")
	}

	var payments int64
	f.conn.Model(&models.Payment{}).Count(&payments)
	if payments != 0 {
		t.Fatal("guest initial payments must not create ledger rows at initialize")
	}

	// The adapter was handed the callback with the minted reference.
	if len(f.paystack.initCalls) != 1 {
		t.Fatalf("expected 1 adapter call, got %d", len(f.paystack.initCalls))
	}
	call := f.paystack.initCalls[0]
	if call.Currency != "NGN" {
		t.Fatalf("expected NGN default, got %s", call.Currency)
	}
	if call.CallbackURL != "https://bookprinta.com/checkout/callback?reference="+call.Reference {
		t.Fatalf("unexpected callback %s", call.CallbackURL)
	}
}

func TestInitializeRejectsBankTransfer(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Initialize(context.Background(), InitializeInput{
		Provider: enums.PaymentProviderBankTransfer,
		Type:     enums.PaymentTypeInitial,
		Email:    "buyer@example.com",
		Amount:   decimal.RequireFromString("150000"),
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApplyRollsBackWhenMaterializationFails(t *testing.T) {
	f := newFixture(t)
	f.seedPackage(t)

	// Exhaust order numbers: the only candidate always collides.
	checkoutSvc, err := checkout.NewService(checkout.Params{
		Repo: checkout.NewRepository(f.conn),
		Config: config.CheckoutConfig{
			SignupBaseURL:  "https://bookprinta.com/signup/finish",
			SignupTokenTTL: 24 * time.Hour,
		},
		OrderNumberSuffix: func() (string, error) { return "ZZZZZZ", nil },
	})
	if err != nil {
		t.Fatalf("checkout service: %v", err)
	}
	svc, err := NewService(Params{
		Repo:     NewRepository(f.conn),
		Tx:       db.FromConn(f.conn),
		Gateways: f.registry,
		Checkout: checkoutSvc,
		Notifier: f.notifier,
		Config:   config.CheckoutConfig{DefaultCurrency: "NGN"},
	})
	if err != nil {
		t.Fatalf("payments service: %v", err)
	}

	user := &models.User{Email: "other@example.com", Name: "Other", Locale: "en"}
	if err := f.conn.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	var pkg models.Package
	if err := f.conn.First(&pkg).Error; err != nil {
		t.Fatalf("load package: %v", err)
	}
	colliding := &models.Order{
		OrderNumber: "BP-" + time.Now().Format("2006") + "-ZZZZZZ",
		UserID:      user.ID, PackageID: pkg.ID,
		TotalAmount: decimal.Zero,
		BookSize:    enums.DefaultBookSize, PaperType: enums.DefaultPaperType, Lamination: enums.DefaultLamination,
	}
	if err := f.conn.Create(colliding).Error; err != nil {
		t.Fatalf("seed colliding order: %v", err)
	}

	ref := "ps_m1abc_0006"
	f.paystack.verifyResults[ref] = successVerify(guestMetadata())

	_, err = svc.Verify(context.Background(), ref)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}

	// Everything rolled back, including the ledger row: the webhook can
	// retry the whole application later.
	var payments int64
	f.conn.Model(&models.Payment{}).Count(&payments)
	if payments != 0 {
		t.Fatalf("expected rollback of ledger row, got %d rows", payments)
	}
	var books int64
	f.conn.Model(&models.Book{}).Count(&books)
	if books != 0 {
		t.Fatal("expected no books after rollback")
	}
}

func TestWebhookIgnoresChargeStillPendingAtProvider(t *testing.T) {
	f := newFixture(t)
	f.seedPackage(t)

	ref := "ps_m1abc_0008"
	f.paystack.verifyResults[ref] = &providers.VerifyResult{
		Verified: false,
		Status:   "pending",
		Amount:   decimal.RequireFromString("150000"),
		Currency: "NGN",
		Raw:      json.RawMessage(`{"status":"pending"}`),
	}

	// Some gateways fire the same event id for the pending and the final
	// callback of a charge.
	eventID := "transaction-status:" + ref
	err := f.svc.HandleWebhook(context.Background(), enums.PaymentProviderPaystack, WebhookEvent{
		EventID: eventID, Kind: "transaction-status", Reference: ref,
	})
	if err != nil {
		t.Fatalf("pending webhook: %v", err)
	}

	var payments int64
	f.conn.Model(&models.Payment{}).Count(&payments)
	if payments != 0 {
		t.Fatalf("in-flight charge must not touch the ledger, got %d rows", payments)
	}

	// The final delivery reuses the event id and must still apply.
	f.paystack.verifyResults[ref] = successVerify(guestMetadata())
	err = f.svc.HandleWebhook(context.Background(), enums.PaymentProviderPaystack, WebhookEvent{
		EventID: eventID, Kind: "transaction-status", Reference: ref,
	})
	if err != nil {
		t.Fatalf("final webhook: %v", err)
	}

	var payment models.Payment
	if err := f.conn.Where("provider_ref = ?", ref).First(&payment).Error; err != nil {
		t.Fatalf("load payment: %v", err)
	}
	if payment.Status != enums.PaymentStatusSuccess || payment.ProcessedAt == nil {
		t.Fatalf("expected processed success, got %+v", payment)
	}
	var orders int64
	f.conn.Model(&models.Order{}).Count(&orders)
	if orders != 1 {
		t.Fatalf("expected one materialized order, got %d", orders)
	}
}

func TestWebhookMergesProviderMetadataIntoRow(t *testing.T) {
	f := newFixture(t)
	f.seedPackage(t)

	ref := "ps_m1abc_0009"
	seeded := &models.Payment{
		Provider:    enums.PaymentProviderPaystack,
		Type:        enums.PaymentTypeInitial,
		Status:      enums.PaymentStatusPending,
		Amount:      decimal.RequireFromString("150000"),
		Currency:    "NGN",
		ProviderRef: ref,
		Metadata:    json.RawMessage(`{"source":"web","packageSlug":"premium"}`),
	}
	if err := f.conn.Create(seeded).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}

	f.paystack.verifyResults[ref] = successVerify(guestMetadata())

	err := f.svc.HandleWebhook(context.Background(), enums.PaymentProviderPaystack, WebhookEvent{
		EventID: "evt_merge_1", Kind: "charge.success", Reference: ref,
	})
	if err != nil {
		t.Fatalf("webhook: %v", err)
	}

	var payment models.Payment
	if err := f.conn.Where("provider_ref = ?", ref).First(&payment).Error; err != nil {
		t.Fatalf("load payment: %v", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(payment.Metadata, &meta); err != nil {
		t.Fatalf("unmarshal metadata: %v", err)
	}
	if meta["source"] != "web" {
		t.Fatalf("pre-existing metadata key lost: %+v", meta)
	}
	if meta["packageSlug"] != "standard" {
		t.Fatalf("provider metadata must win on conflict: %+v", meta)
	}
	if _, ok := meta["customer"]; !ok {
		t.Fatalf("provider metadata key missing: %+v", meta)
	}
}

func TestMergeMetadataFallsBackOnInvalidJSON(t *testing.T) {
	existing := json.RawMessage(`{"a":1}`)
	incoming := json.RawMessage(`{"b":2}`)

	if got := mergeMetadata(nil, incoming); string(got) != `{"b":2}` {
		t.Fatalf("empty existing: %s", got)
	}
	if got := mergeMetadata(existing, json.RawMessage("null")); string(got) != `{"a":1}` {
		t.Fatalf("null incoming: %s", got)
	}
	if got := mergeMetadata(json.RawMessage(`{broken`), incoming); string(got) != `{"b":2}` {
		t.Fatalf("broken existing: %s", got)
	}
	if got := mergeMetadata(existing, json.RawMessage(`{broken`)); string(got) != `{"a":1}` {
		t.Fatalf("broken incoming: %s", got)
	}
}

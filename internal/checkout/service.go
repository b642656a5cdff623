package checkout

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dextasynergyservices/bookprinta-sub000/pkg/config"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/db/models"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/enums"
	pkgerrors "github.com/dextasynergyservices/bookprinta-sub000/pkg/errors"
	"github.com/dextasynergyservices/bookprinta-sub000/pkg/logger"
)

const (
	orderNumberAttempts = 5
	suffixLength        = 6
	suffixAlphabet      = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var errOrderNumberTaken = errors.New("order number already taken")

// Result holds the entities one materialization produced. SignupToken is set
// only when a claimable account was created or refreshed in this run.
type Result struct {
	User        *models.User
	Order       *models.Order
	Book        *models.Book
	SignupToken string
	SignupURL   string
}

// Service materializes the user, order, addons and book behind a paid
// guest checkout. It runs entirely inside the transaction that applies the
// payment, so a failure here rolls the whole application back.
type Service interface {
	Materialize(ctx context.Context, tx *gorm.DB, payment *models.Payment) (*Result, error)
}

// Params collects the service dependencies. Now and OrderNumberSuffix have
// working defaults and exist for tests.
type Params struct {
	Repo   Repository
	Config config.CheckoutConfig
	Logger *logger.Logger

	Now               func() time.Time
	OrderNumberSuffix func() (string, error)
}

type service struct {
	repo   Repository
	cfg    config.CheckoutConfig
	logger *logger.Logger

	now    func() time.Time
	suffix func() (string, error)
}

// NewService builds the checkout materializer.
func NewService(params Params) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	svc := &service{
		repo:   params.Repo,
		cfg:    params.Config,
		logger: params.Logger,
		now:    params.Now,
		suffix: params.OrderNumberSuffix,
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.suffix == nil {
		svc.suffix = randomSuffix
	}
	return svc, nil
}

// Materialize turns one applied initial payment into its backing entities.
// Payments that cannot be materialized (no email, unresolvable package) are
// skipped with a nil result; the payment itself still counts as applied.
// The payment struct is linked in memory; persisting it is the caller's job.
func (s *service) Materialize(ctx context.Context, tx *gorm.DB, payment *models.Payment) (*Result, error) {
	if payment == nil || payment.Type != enums.PaymentTypeInitial || payment.OrderID != nil {
		return nil, nil
	}

	meta := ParseMetadata(payment.Metadata)
	if meta.Email == "" {
		s.warn(ctx, payment, "checkout metadata has no customer email, skipping materialization")
		return nil, nil
	}

	repo := s.repo.WithTx(tx)

	pkg, err := s.resolvePackage(ctx, repo, meta)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		s.warn(ctx, payment, "checkout metadata references no known package, skipping materialization")
		return nil, nil
	}

	result := &Result{}
	user, token, err := s.findOrCreateUser(ctx, repo, meta, payment)
	if err != nil {
		return nil, err
	}
	result.User = user
	if token != "" {
		result.SignupToken = token
		result.SignupURL = s.signupURL(token)
	}

	order, err := s.createOrder(ctx, repo, meta, payment, user, pkg)
	if err != nil {
		return nil, err
	}
	result.Order = order

	if err := s.createAddons(ctx, repo, meta, order); err != nil {
		return nil, err
	}

	book := &models.Book{
		OrderID: order.ID,
		UserID:  user.ID,
		Status:  enums.BookStatusPaymentReceived,
	}
	if _, err := repo.CreateBook(ctx, book); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create book")
	}
	result.Book = book

	payment.UserID = &user.ID
	payment.OrderID = &order.ID
	return result, nil
}

func (s *service) resolvePackage(ctx context.Context, repo Repository, meta Metadata) (*models.Package, error) {
	if meta.PackageID != "" {
		if id, err := uuid.Parse(meta.PackageID); err == nil {
			pkg, err := repo.FindPackageByID(ctx, id)
			if err == nil {
				return pkg, nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find package by id")
			}
		}
	}
	if meta.PackageSlug != "" {
		pkg, err := repo.FindPackageBySlug(ctx, meta.PackageSlug)
		if err == nil {
			return pkg, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find package by slug")
		}
	}
	if meta.PackageTier != "" {
		pkg, err := repo.FindPackageByTier(ctx, meta.PackageTier)
		if err == nil {
			return pkg, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find package by tier")
		}
	}
	return nil, nil
}

// findOrCreateUser returns the account for the checkout email, creating a
// claimable one when none exists. The signup token is refreshed whenever the
// account has not finished signup, so only the latest link works.
func (s *service) findOrCreateUser(ctx context.Context, repo Repository, meta Metadata, payment *models.Payment) (*models.User, string, error) {
	user, err := repo.FindUserByEmail(ctx, meta.Email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find user by email")
	}

	if user == nil {
		user = &models.User{
			Email:  meta.Email,
			Name:   s.customerName(meta, payment),
			Locale: s.locale(meta),
		}
		if meta.Phone != "" {
			user.Phone = &meta.Phone
		}
		token := s.issueToken(user)
		if _, err := repo.CreateUser(ctx, user); err != nil {
			return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}
		return user, token, nil
	}

	if user.NeedsSignupToken() {
		token := s.issueToken(user)
		if err := repo.SaveUser(ctx, user); err != nil {
			return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "refresh signup token")
		}
		return user, token, nil
	}
	return user, "", nil
}

func (s *service) issueToken(user *models.User) string {
	token := uuid.NewString()
	expiry := s.now().Add(s.cfg.SignupTokenTTL)
	user.VerificationToken = &token
	user.TokenExpiry = &expiry
	return token
}

func (s *service) createOrder(ctx context.Context, repo Repository, meta Metadata, payment *models.Payment, user *models.User, pkg *models.Package) (*models.Order, error) {
	number, err := s.nextOrderNumber(ctx, repo)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		OrderNumber: number,
		UserID:      user.ID,
		PackageID:   pkg.ID,
		BookSize:    enums.DefaultBookSize,
		PaperType:   enums.PaperTypeWhite,
		Lamination:  enums.LaminationGloss,
		// The paid amount is authoritative; metadata can only raise the total
		// when the storefront quoted more than was charged online.
		TotalAmount:       decimalMax(meta.TotalAmount, payment.Amount),
		Currency:          payment.Currency,
		IncludeCover:      true,
		IncludeFormatting: true,
	}
	if size := enums.BookSize(meta.BookSize); size.IsValid() {
		order.BookSize = size
	}
	if paper := enums.PaperType(meta.PaperType); paper.IsValid() {
		order.PaperType = paper
	}
	if lam := enums.Lamination(meta.Lamination); lam.IsValid() {
		order.Lamination = lam
	}
	if meta.IncludeCover != nil {
		order.IncludeCover = *meta.IncludeCover
	}
	if meta.IncludeFormatting != nil {
		order.IncludeFormatting = *meta.IncludeFormatting
	}

	if _, err := repo.CreateOrder(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}
	return order, nil
}

// nextOrderNumber allocates a free BP-{year}-{suffix} number, retrying on
// collisions. Exhausting the attempts aborts the whole materialization.
func (s *service) nextOrderNumber(ctx context.Context, repo Repository) (string, error) {
	var number string
	backoff := retry.WithMaxRetries(orderNumberAttempts, retry.NewConstant(time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		suffix, err := s.suffix()
		if err != nil {
			return err
		}
		candidate := fmt.Sprintf("BP-%d-%s", s.now().Year(), suffix)
		taken, err := repo.OrderNumberExists(ctx, candidate)
		if err != nil {
			return err
		}
		if taken {
			return retry.RetryableError(errOrderNumberTaken)
		}
		number = candidate
		return nil
	})
	if err != nil {
		if errors.Is(err, errOrderNumberTaken) {
			return "", pkgerrors.New(pkgerrors.CodeUnavailable, "could not allocate an order number")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "allocate order number")
	}
	return number, nil
}

// createAddons resolves checkout addon selections against the catalog.
// Selections that resolve to nothing are skipped; the order still
// materializes with the addons that did resolve.
func (s *service) createAddons(ctx context.Context, repo Repository, meta Metadata, order *models.Order) error {
	var rows []models.OrderAddon
	for _, selection := range meta.Addons {
		addon, err := s.resolveAddon(ctx, repo, selection)
		if err != nil {
			return err
		}
		if addon == nil {
			s.warnf(ctx, "unresolvable addon selection skipped", map[string]any{
				"addonId": selection.ID, "addonSlug": selection.Slug,
			})
			continue
		}
		if !addon.Price.IsPositive() {
			s.warnf(ctx, "addon with non-positive price skipped", map[string]any{
				"addonId": addon.ID, "addonSlug": addon.Slug, "price": addon.Price.String(),
			})
			continue
		}

		row := models.OrderAddon{
			OrderID:   order.ID,
			AddonID:   addon.ID,
			Name:      addon.Name,
			Price:     addon.Price,
			WordCount: selection.WordCount,
		}
		if addon.PerWord && selection.WordCount != nil && *selection.WordCount > 0 {
			row.Price = addon.Price.Mul(decimalFromInt(*selection.WordCount))
		}
		rows = append(rows, row)
	}
	if err := repo.CreateOrderAddons(ctx, rows); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order addons")
	}
	return nil
}

func (s *service) resolveAddon(ctx context.Context, repo Repository, selection AddonSelection) (*models.Addon, error) {
	if selection.ID != "" {
		if id, err := uuid.Parse(selection.ID); err == nil {
			addon, err := repo.FindAddonByID(ctx, id)
			if err == nil {
				return addon, nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find addon by id")
			}
		}
	}
	if selection.Slug != "" {
		addon, err := repo.FindAddonBySlug(ctx, selection.Slug)
		if err == nil {
			return addon, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find addon by slug")
		}
	}
	return nil, nil
}

func (s *service) customerName(meta Metadata, payment *models.Payment) string {
	if meta.Name != "" {
		return meta.Name
	}
	if payment.PayerName != nil && *payment.PayerName != "" {
		return *payment.PayerName
	}
	// Last resort: local part of the email.
	if idx := strings.Index(meta.Email, "@"); idx > 0 {
		return meta.Email[:idx]
	}
	return meta.Email
}

func (s *service) locale(meta Metadata) string {
	if meta.Locale != "" {
		return meta.Locale
	}
	return "en"
}

func (s *service) signupURL(token string) string {
	base := strings.TrimRight(s.cfg.SignupBaseURL, "/")
	return fmt.Sprintf("%s?token=%s", base, token)
}

func (s *service) warn(ctx context.Context, payment *models.Payment, msg string) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(s.logger.WithReference(ctx, payment.ProviderRef), msg)
}

func (s *service) warnf(ctx context.Context, msg string, fields map[string]any) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(s.logger.WithFields(ctx, fields), msg)
}

func decimalMax(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

func randomSuffix() (string, error) {
	out := make([]byte, suffixLength)
	max := big.NewInt(int64(len(suffixAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = suffixAlphabet[n.Int64()]
	}
	return string(out), nil
}

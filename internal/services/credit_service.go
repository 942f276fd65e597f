package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-storefront-backend/internal/config"
	"github.com/tbourn/go-storefront-backend/internal/domain"
	"github.com/tbourn/go-storefront-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CreditService sells credit packages and reports balances. Payment is a
// demo stub: every package purchase succeeds.
type CreditService struct {
	DB       *gorm.DB
	Packages []config.CreditPackage
	Timeout  time.Duration
}

// CreditReceipt is the outcome of a package purchase.
type CreditReceipt struct {
	Package       config.CreditPackage
	CreditsAdded  int64
	TransactionID string
	Balance       int64
}

// BalanceView is the caller's balance with recent ledger activity.
type BalanceView struct {
	Balance int64
	Entries []domain.BalanceEntry
}

// ListPackages returns the configured packages.
func (s *CreditService) ListPackages() []config.CreditPackage {
	return append([]config.CreditPackage(nil), s.Packages...)
}

func (s *CreditService) findPackage(id int) (config.CreditPackage, bool) {
	for _, p := range s.Packages {
		if p.ID == id {
			return p, true
		}
	}
	return config.CreditPackage{}, false
}

// Purchase records the package purchase and credits the balance in one
// transaction.
func (s *CreditService) Purchase(ctx context.Context, userID string, packageID int) (*CreditReceipt, error) {
	tr := otel.Tracer("services/CreditService")
	ctx, span := tr.Start(ctx, "Purchase",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("package.id", packageID),
		),
	)
	defer span.End()

	if packageID <= 0 {
		return nil, ErrInvalidInput
	}
	pkg, ok := s.findPackage(packageID)
	if !ok {
		return nil, ErrPackageNotFound
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	rec := &domain.CreditPurchase{
		UserID:           userID,
		PackageName:      pkg.Name,
		CreditsPurchased: pkg.Credits,
		BonusCredits:     pkg.Bonus,
		TotalCredits:     pkg.Total(),
		AmountPaidCents:  pkg.PriceCents,
		PaymentMethod:    "demo",
		TransactionID:    "TXN-" + uuid.NewString(),
		Status:           domain.PurchaseCompleted,
		PurchasedAt:      time.Now().UTC(),
	}
	var bal int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateCreditPurchase(ctx, tx, rec); err != nil {
			return err
		}
		e, err := repo.Credit(ctx, tx, userID, rec.TotalCredits, domain.EntryCreditTopUp, rec.TransactionID)
		if err != nil {
			return err
		}
		bal = e.BalanceAfter
		return nil
	})
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrInvalidInput
	}
	if err != nil {
		return nil, classifyRead(ctx, err, nil)
	}
	return &CreditReceipt{Package: pkg, CreditsAdded: rec.TotalCredits, TransactionID: rec.TransactionID, Balance: bal}, nil
}

// History returns the caller's credit purchases, newest first.
func (s *CreditService) History(ctx context.Context, userID string) ([]domain.CreditPurchase, error) {
	tr := otel.Tracer("services/CreditService")
	ctx, span := tr.Start(ctx, "History", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	out, err := repo.ListCreditPurchases(ctx, s.DB, userID)
	if err != nil {
		return nil, classifyRead(ctx, err, nil)
	}
	return out, nil
}

// Balance returns the caller's balance and their most recent ledger entries.
func (s *CreditService) Balance(ctx context.Context, userID string, limit int) (*BalanceView, error) {
	tr := otel.Tracer("services/CreditService")
	ctx, span := tr.Start(ctx, "Balance", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	u, err := repo.GetUser(ctx, s.DB, userID)
	if err != nil {
		return nil, classifyRead(ctx, err, ErrInvalidInput)
	}
	entries, err := repo.ListBalanceEntries(ctx, s.DB, userID, limit)
	if err != nil {
		return nil, classifyRead(ctx, err, nil)
	}
	return &BalanceView{Balance: u.AccountBalance, Entries: entries}, nil
}

// Storefront HTTP handlers.
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results and service errors into the JSON envelopes the store
// pages consume.
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"github.com/tbourn/go-storefront-backend/internal/auth"
	"github.com/tbourn/go-storefront-backend/internal/config"
	"github.com/tbourn/go-storefront-backend/internal/domain"
	"github.com/tbourn/go-storefront-backend/internal/http/middleware"
	"github.com/tbourn/go-storefront-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// CrateService opens crates and lists crate contents and inventory.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type CrateService interface {
	// Open rolls and records the item for a purchased, unopened crate.
	Open(ctx context.Context, req services.OpenRequest) (*services.OpenResult, error)
	// Contents returns the display view of the crate sold as itemID.
	Contents(ctx context.Context, itemID int64) (*services.CrateContents, error)
	// UserCrates lists the caller's unopened crates with pity projections.
	UserCrates(ctx context.Context, userID string) ([]services.UnopenedCrate, error)
}

// StoreService serves the public catalog.
type StoreService interface {
	Items(ctx context.Context) ([]domain.StoreItem, error)
}

// PurchaseService debits the balance for a store item.
type PurchaseService interface {
	Purchase(ctx context.Context, userID string, itemID int64, idemKey string) (*services.PurchaseResult, error)
}

// CreditService sells credit packages and reports balances.
type CreditService interface {
	ListPackages() []config.CreditPackage
	Purchase(ctx context.Context, userID string, packageID int) (*services.CreditReceipt, error)
	History(ctx context.Context, userID string) ([]domain.CreditPurchase, error)
	Balance(ctx context.Context, userID string, limit int) (*services.BalanceView, error)
}

//
// Handler wiring
//

// Handlers groups the storefront endpoints. It depends on abstract service
// interfaces to keep transport concerns separate from business logic.
type Handlers struct {
	crateSvc    CrateService
	storeSvc    StoreService
	purchaseSvc PurchaseService
	creditSvc   CreditService

	// lang selects number formatting in user-facing messages.
	lang language.Tag
}

// New constructs a Handlers instance bound to the given services. Messages
// are formatted for English until WithLanguage says otherwise.
func New(crateSvc CrateService, storeSvc StoreService, purchaseSvc PurchaseService, creditSvc CreditService) *Handlers {
	return &Handlers{
		crateSvc:    crateSvc,
		storeSvc:    storeSvc,
		purchaseSvc: purchaseSvc,
		creditSvc:   creditSvc,
		lang:        language.English,
	}
}

// WithLanguage sets the locale used to format amounts in messages.
func (h *Handlers) WithLanguage(tag language.Tag) *Handlers {
	h.lang = tag
	return h
}

// userID returns the authenticated user id set by auth.RequireSession, or ""
// when the route is not behind it.
func userID(c *gin.Context) string {
	return c.GetString(auth.CtxUserID)
}

// idempotencyKey returns the validated Idempotency-Key, or "".
func idempotencyKey(c *gin.Context) string {
	k, _ := middleware.GetIdempotencyKey(c)
	return k
}

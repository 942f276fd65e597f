// Credit and account HTTP handlers.
//
//   - GET  /credits/packages
//   - POST /credits/purchase
//   - GET  /credits/history
//   - GET  /account/balance
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-storefront-backend/internal/config"
	"github.com/tbourn/go-storefront-backend/internal/domain"
	"github.com/tbourn/go-storefront-backend/internal/services"
	"github.com/tbourn/go-storefront-backend/internal/utils"
)

// PackagesResponse lists the purchasable credit packages.
type PackagesResponse struct {
	OK       bool                   `json:"ok" example:"true"`
	Packages []config.CreditPackage `json:"packages"`
}

// CreditPurchaseRequest is the JSON payload for buying a credit package.
type CreditPurchaseRequest struct {
	PackageID int `json:"packageId" example:"2"`
}

// CreditPurchaseResponse is returned by a successful top-up.
type CreditPurchaseResponse struct {
	OK            bool   `json:"ok" example:"true"`
	Message       string `json:"message" example:"Successfully purchased Adventure Pack!"`
	Package       string `json:"package" example:"Adventure Pack"`
	CreditsAdded  int64  `json:"creditsAdded" example:"2750"`
	TransactionID string `json:"transactionId" example:"TXN-6f1c2a9e-0d4b-4c55-9b1e-3f8f1e2d7a10"`
	Balance       int64  `json:"balance" example:"3750"`
}

// CreditHistoryResponse lists the caller's top-ups, newest first.
type CreditHistoryResponse struct {
	OK      bool                    `json:"ok" example:"true"`
	History []domain.CreditPurchase `json:"history"`
}

// BalanceResponse is the caller's balance with recent ledger activity.
type BalanceResponse struct {
	OK      bool                  `json:"ok" example:"true"`
	Balance int64                 `json:"balance" example:"1500"`
	Entries []domain.BalanceEntry `json:"entries"`
}

// CreditPackages godoc
// @ID          creditPackages
// @Summary     List credit packages
// @Tags        Credits
// @Produce     json
// @Success     200  {object}  handlers.PackagesResponse
// @Router      /credits/packages [get]
func (h *Handlers) CreditPackages(c *gin.Context) {
	ok(c, http.StatusOK, PackagesResponse{OK: true, Packages: h.creditSvc.ListPackages()})
}

// PurchaseCredits godoc
// @ID          purchaseCredits
// @Summary     Buy a credit package
// @Description Records the package purchase and credits the balance. Payment is simulated.
// @Tags        Credits
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.CreditPurchaseRequest  true  "Package to buy"
// @Success     200  {object}  handlers.CreditPurchaseResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid package"
// @Failure     401  {object}  handlers.ErrorResponse  "Not authenticated"
// @Failure     404  {object}  handlers.ErrorResponse  "Package not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Purchase failed"
// @Security    SessionCookie
// @Router      /credits/purchase [post]
func (h *Handlers) PurchaseCredits(c *gin.Context) {
	var req CreditPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PackageID <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid package")
		return
	}

	rc, err := h.creditSvc.Purchase(c.Request.Context(), userID(c), req.PackageID)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrPackageNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "Package not found")
		return
	case errors.Is(err, services.ErrInvalidInput):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid package")
		return
	default:
		fail(c, http.StatusInternalServerError, ErrCodePurchaseFailed, "Purchase failed")
		return
	}

	ok(c, http.StatusOK, CreditPurchaseResponse{
		OK:            true,
		Message:       fmt.Sprintf("Successfully purchased %s!", rc.Package.Name),
		Package:       rc.Package.Name,
		CreditsAdded:  rc.CreditsAdded,
		TransactionID: rc.TransactionID,
		Balance:       rc.Balance,
	})
}

// CreditHistory godoc
// @ID          creditHistory
// @Summary     Credit purchase history
// @Tags        Credits
// @Produce     json
// @Success     200  {object}  handlers.CreditHistoryResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Not authenticated"
// @Failure     500  {object}  handlers.ErrorResponse  "Failed to load purchase history"
// @Security    SessionCookie
// @Router      /credits/history [get]
func (h *Handlers) CreditHistory(c *gin.Context) {
	hist, err := h.creditSvc.History(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "Failed to load purchase history")
		return
	}
	if hist == nil {
		hist = []domain.CreditPurchase{}
	}
	ok(c, http.StatusOK, CreditHistoryResponse{OK: true, History: hist})
}

// AccountBalance godoc
// @ID          accountBalance
// @Summary     Balance and recent ledger entries
// @Tags        Account
// @Produce     json
// @Param       limit  query  int  false  "Ledger entries to return"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.BalanceResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Not authenticated"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Security    SessionCookie
// @Router      /account/balance [get]
func (h *Handlers) AccountBalance(c *gin.Context) {
	const (
		defaultLimit = 20
		maxLimit     = 100
	)
	limit := utils.ClampInt(utils.AtoiDefault(c.Query("limit"), defaultLimit), 1, maxLimit)

	bv, err := h.creditSvc.Balance(c.Request.Context(), userID(c), limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "Failed to load balance")
		return
	}
	entries := bv.Entries
	if entries == nil {
		entries = []domain.BalanceEntry{}
	}
	ok(c, http.StatusOK, BalanceResponse{OK: true, Balance: bv.Balance, Entries: entries})
}

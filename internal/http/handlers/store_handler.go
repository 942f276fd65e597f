// Store HTTP handlers.
//
//   - GET  /store/items     (public catalog)
//   - POST /store/purchase  (buy one item, Idempotency-Key aware)
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-storefront-backend/internal/domain"
	"github.com/tbourn/go-storefront-backend/internal/http/middleware"
	"github.com/tbourn/go-storefront-backend/internal/services"
	"github.com/tbourn/go-storefront-backend/internal/utils"
)

// StoreItemsResponse lists the active catalog.
type StoreItemsResponse struct {
	OK    bool               `json:"ok" example:"true"`
	Items []domain.StoreItem `json:"items"`
}

// PurchaseRequest is the JSON payload for buying a store item.
type PurchaseRequest struct {
	ItemID int64 `json:"itemId" example:"3"`
}

// PurchaseResponse is returned by a committed purchase.
type PurchaseResponse struct {
	OK      bool   `json:"ok" example:"true"`
	Message string `json:"message" example:"Successfully purchased Mystic Crate! You can now open it to reveal your rewards."`
	OrderID int64  `json:"orderId" example:"42"`
	IsCrate bool   `json:"is_crate" example:"true"`
	Status  string `json:"status" example:"completed"`
	Balance int64  `json:"balance" example:"1500"`
}

// StoreItems godoc
// @ID          storeItems
// @Summary     List store items
// @Description Returns active items ordered by type, then price.
// @Tags        Store
// @Produce     json
// @Success     200  {object}  handlers.StoreItemsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Failed to fetch items"
// @Router      /store/items [get]
func (h *Handlers) StoreItems(c *gin.Context) {
	items, err := h.storeSvc.Items(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "Failed to fetch items")
		return
	}
	if items == nil {
		items = []domain.StoreItem{}
	}
	ok(c, http.StatusOK, StoreItemsResponse{OK: true, Items: items})
}

// PurchaseItem godoc
// @ID          purchaseItem
// @Summary     Purchase a store item
// @Description Debits the item's price from the caller's balance. Crates are completed immediately and opened later via /crate/open;
// @Description other items are delivered to the game account and refunded if delivery fails.
// @Tags        Store
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false  "Replay-safe request key"  example(order-7f3a)
// @Param       body             body    handlers.PurchaseRequest  true  "Item to buy"
//
// @Success     200  {object}  handlers.PurchaseResponse
// @Header      200  {string}  Idempotency-Replayed  "true when answered from an earlier request"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid item or insufficient balance"
// @Failure     401  {object}  handlers.ErrorResponse  "Not authenticated"
// @Failure     404  {object}  handlers.ErrorResponse  "Item not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Purchase failed"
// @Security    SessionCookie
// @Router      /store/purchase [post]
func (h *Handlers) PurchaseItem(c *gin.Context) {
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ItemID <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid item")
		return
	}

	res, err := h.purchaseSvc.Purchase(c.Request.Context(), userID(c), req.ItemID, idempotencyKey(c))
	if err != nil {
		var ib *services.InsufficientBalanceError
		switch {
		case errors.As(err, &ib):
			failWith(c, http.StatusBadRequest, ErrorResponse{
				Code:     ErrCodeInsufficientBalance,
				Error:    "Insufficient balance",
				Required: int64Ptr(ib.Required),
				Current:  int64Ptr(ib.Current),
			})
		case errors.Is(err, services.ErrItemNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "Item not found")
		case errors.Is(err, services.ErrInvalidInput):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid item")
		case errors.Is(err, services.ErrTimeout):
			fail(c, http.StatusGatewayTimeout, ErrCodeTimeout, "Purchase timed out. Please try again.")
		default:
			fail(c, http.StatusInternalServerError, ErrCodePurchaseFailed, "Purchase failed")
		}
		return
	}

	if res.Replayed {
		middleware.MarkReplayed(c)
	}
	switch {
	case res.Refunded:
		failWith(c, http.StatusInternalServerError, ErrorResponse{
			Code: ErrCodePurchaseFailed,
			Error: fmt.Sprintf("Failed to deliver %s. Your %s credits have been refunded.",
				res.ItemName, utils.FormatCredits(h.lang, res.Price)),
			Refunded: int64Ptr(res.Price),
		})
		return
	case res.Status == domain.PurchaseFailed:
		fail(c, http.StatusInternalServerError, ErrCodeRefundFailed, "Purchase failed. Please contact support if you were charged.")
		return
	}

	msg := fmt.Sprintf("Successfully purchased %s!", res.ItemName)
	if res.IsCrate {
		msg = fmt.Sprintf("Successfully purchased %s! You can now open it to reveal your rewards.", res.ItemName)
	}
	ok(c, http.StatusOK, PurchaseResponse{
		OK:      true,
		Message: msg,
		OrderID: res.PurchaseID,
		IsCrate: res.IsCrate,
		Status:  res.Status,
		Balance: res.Balance,
	})
}

// Crate HTTP handlers.
//
// This file exposes the crate endpoints:
//   - POST /crate/open          (open a purchased crate)
//   - GET  /crate/contents      (display odds, no pity applied)
//   - GET  /crate/user-crates   (unopened crates, ETag support)
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"gorm.io/gorm"

	"github.com/tbourn/go-storefront-backend/internal/domain"
	"github.com/tbourn/go-storefront-backend/internal/gacha"
	"github.com/tbourn/go-storefront-backend/internal/http/middleware"
	"github.com/tbourn/go-storefront-backend/internal/repo"
	"github.com/tbourn/go-storefront-backend/internal/services"
	"github.com/tbourn/go-storefront-backend/internal/utils"
)

//
// DTOs
//

// OpenCrateRequest is the JSON payload for opening a crate.
type OpenCrateRequest struct {
	// PurchaseID is the store purchase holding the crate.
	PurchaseID int64 `json:"purchaseId" example:"42"`
}

// OpenedItem is one rolled reward.
type OpenedItem struct {
	ItemName        string        `json:"item_name"        example:"Dragon Wings"`
	ItemDescription string        `json:"item_description" example:"Legendary cosmetic wings"`
	Rarity          domain.Rarity `json:"rarity"           example:"legendary"`
	Quantity        int           `json:"quantity"         example:"1"`
	Delivered       bool          `json:"delivered"        example:"true"`
	WasPity         bool          `json:"was_pity"         example:"false"`
}

// PityInfo is the caller's pity position for a crate after an open.
type PityInfo struct {
	OpensSinceRare      int `json:"opens_since_rare"      example:"3"`
	OpensSinceLegendary int `json:"opens_since_legendary" example:"17"`
	TotalOpens          int `json:"total_opens"           example:"21"`
	RarePityIn          int `json:"rare_pity_in"          example:"7"`
	LegendaryPityIn     int `json:"legendary_pity_in"     example:"33"`
}

// OpenCrateResponse is returned by a successful open.
type OpenCrateResponse struct {
	OK        bool         `json:"ok" example:"true"`
	CrateName string       `json:"crate_name" example:"Mystic Crate"`
	Results   []OpenedItem `json:"results"`
	PityInfo  PityInfo     `json:"pity_info"`
}

// CrateContentItem is one display row of a crate.
type CrateContentItem struct {
	Name        string        `json:"name"        example:"Silver Ring"`
	Rarity      domain.Rarity `json:"rarity"      example:"rare"`
	Chance      string        `json:"chance"      example:"12.5%"`
	Description string        `json:"description" example:"A ring of polished silver"`
}

// CrateContentsBody is the crate part of CrateContentsResponse.
type CrateContentsBody struct {
	Name        string             `json:"name" example:"Mystic Crate"`
	Contents    []CrateContentItem `json:"contents"`
	TotalItems  int                `json:"totalItems"  example:"8"`
	TotalWeight int                `json:"totalWeight" example:"1000"`
}

// CrateContentsResponse wraps the crate contents view.
type CrateContentsResponse struct {
	OK    bool              `json:"ok" example:"true"`
	Crate CrateContentsBody `json:"crate"`
}

// UserCrate is one unopened crate of the caller.
type UserCrate struct {
	PurchaseID  int64     `json:"purchase_id" example:"42"`
	CrateID     int64     `json:"crate_id"    example:"3"`
	CrateName   string    `json:"crate_name"  example:"Mystic Crate"`
	Description string    `json:"description" example:"Contains one random cosmetic"`
	Quantity    int       `json:"quantity"    example:"1"`
	PurchasedAt time.Time `json:"purchased_at"`
	PityInfo    PityInfo  `json:"pity_info"`
}

// UserCratesResponse lists the caller's unopened crates.
type UserCratesResponse struct {
	OK     bool        `json:"ok" example:"true"`
	Crates []UserCrate `json:"crates"`
}

func pityInfo(p gacha.Projection) PityInfo {
	return PityInfo{
		OpensSinceRare:      p.OpensSinceRare,
		OpensSinceLegendary: p.OpensSinceLegendary,
		TotalOpens:          p.TotalOpens,
		RarePityIn:          p.RarePityIn,
		LegendaryPityIn:     p.LegendaryPityIn,
	}
}

//
// Handlers
//

// OpenCrate godoc
// @ID          openCrate
// @Summary     Open a purchased crate
// @Description Rolls one item for a completed, unopened crate purchase and advances the caller's pity counters.
// @Description A failure after validation is compensated by a refund; `refunded` carries the amount returned.
// @Description Retrying with the same Idempotency-Key returns the committed result with `Idempotency-Replayed: true`.
// @Tags        Crates
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false  "Open attempt token"  example(2b7c1d7e-5f0a-4a39-9d8e-1f1f0a2b3c4d)
// @Param       body             body    handlers.OpenCrateRequest  true  "Purchase to open"
//
// @Success     200  {object}  handlers.OpenCrateResponse
// @Header      200  {string}  Idempotency-Replayed  "true when answered from an earlier attempt"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid purchase ID"
// @Failure     401  {object}  handlers.ErrorResponse  "Not authenticated"
// @Failure     404  {object}  handlers.ErrorResponse  "Invalid crate purchase"
// @Failure     409  {object}  handlers.ErrorResponse  "Crate already opened, or Idempotency-Key reused for another purchase"
// @Failure     429  {object}  handlers.ErrorResponse  "Too many requests"
// @Failure     500  {object}  handlers.ErrorResponse  "Open failed (see refunded)"
// @Failure     504  {object}  handlers.ErrorResponse  "Timed out"
// @Security    SessionCookie
// @Router      /crate/open [post]
func (h *Handlers) OpenCrate(c *gin.Context) {
	var req OpenCrateRequest
	// The idempotency middleware may already have read the body.
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil || req.PurchaseID <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid purchase ID")
		return
	}

	res, err := h.crateSvc.Open(c.Request.Context(), services.OpenRequest{
		UserID:     userID(c),
		PurchaseID: req.PurchaseID,
		AttemptID:  idempotencyKey(c),
	})
	if err != nil {
		h.openFailed(c, err)
		return
	}

	if res.Replayed {
		middleware.MarkReplayed(c)
	}
	ok(c, http.StatusOK, OpenCrateResponse{
		OK:        true,
		CrateName: res.CrateName,
		Results: []OpenedItem{{
			ItemName:        res.Item.Name,
			ItemDescription: res.Item.Description,
			Rarity:          res.Item.Rarity,
			Quantity:        res.Quantity,
			Delivered:       res.Delivered,
			WasPity:         res.WasPity,
		}},
		PityInfo: pityInfo(res.Pity),
	})
}

// openFailed maps an Open error to its response. A compensated failure is the
// only 500 that carries `refunded`.
func (h *Handlers) openFailed(c *gin.Context, err error) {
	var f *services.OpenFailure
	if errors.As(err, &f) {
		misconfigured := errors.Is(f.Cause, services.ErrCrateMisconfigured)
		if f.Refunded {
			code := ErrCodeOpenFailed
			msg := fmt.Sprintf("Failed to open %s. Your %s credits have been refunded.",
				crateLabel(f.CrateName), utils.FormatCredits(h.lang, f.Amount))
			if misconfigured {
				code = ErrCodeCrateMisconfigured
				msg = fmt.Sprintf("No items configured for %s. Your %s credits have been refunded.",
					crateLabel(f.CrateName), utils.FormatCredits(h.lang, f.Amount))
			}
			failWith(c, http.StatusInternalServerError, ErrorResponse{
				Code:     code,
				Error:    msg,
				Refunded: int64Ptr(f.Amount),
			})
			return
		}
		msg := "Failed to open crate. Please contact support if you were charged."
		if misconfigured {
			msg = "No items configured for this crate. Please contact support if you were charged."
		}
		fail(c, http.StatusInternalServerError, ErrCodeRefundFailed, msg)
		return
	}

	switch {
	case errors.Is(err, services.ErrInvalidInput):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid purchase ID")
	case errors.Is(err, services.ErrPurchaseNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "Invalid crate purchase")
	case errors.Is(err, services.ErrAlreadyOpened):
		fail(c, http.StatusConflict, ErrCodeConflict, "Crate already opened")
	case errors.Is(err, services.ErrAttemptReused):
		fail(c, http.StatusConflict, ErrCodeIdempotencyConflict, "Idempotency-Key was already used for a different crate")
	case errors.Is(err, services.ErrTimeout):
		fail(c, http.StatusGatewayTimeout, ErrCodeTimeout, "Opening the crate timed out. Please try again.")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeOpenFailed, "Failed to open crate. Please contact support if you were charged.")
	}
}

func crateLabel(name string) string {
	if name == "" {
		return "crate"
	}
	return name
}

// CrateContents godoc
// @ID          crateContents
// @Summary     List a crate's contents
// @Description Returns the active contents of a crate with their display odds. Pity floors are not applied.
// @Tags        Crates
// @Produce     json
//
// @Param       id  query  int  true  "Store item ID of the crate"  minimum(1)  example(3)
//
// @Success     200  {object}  handlers.CrateContentsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Crate ID is required"
// @Failure     401  {object}  handlers.ErrorResponse  "Not authenticated"
// @Failure     404  {object}  handlers.ErrorResponse  "Crate not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Security    SessionCookie
// @Router      /crate/contents [get]
func (h *Handlers) CrateContents(c *gin.Context) {
	raw := c.Query("id")
	if raw == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Crate ID is required")
		return
	}
	id, valid := utils.ParseID(raw)
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid crate ID")
		return
	}

	cc, err := h.crateSvc.Contents(c.Request.Context(), id)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrItemNotFound), errors.Is(err, services.ErrInvalidInput):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "Crate not found")
		return
	default:
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "Failed to fetch crate contents")
		return
	}

	body := CrateContentsBody{
		Name:        cc.Name,
		Contents:    make([]CrateContentItem, 0, len(cc.Entries)),
		TotalItems:  len(cc.Entries),
		TotalWeight: cc.TotalWeight,
	}
	for _, e := range cc.Entries {
		body.Contents = append(body.Contents, CrateContentItem{
			Name:        e.Name,
			Rarity:      e.Rarity,
			Chance:      utils.FormatPercent(h.lang, e.Chance),
			Description: e.Description,
		})
	}
	ok(c, http.StatusOK, CrateContentsResponse{OK: true, Crate: body})
}

// UserCrates godoc
// @ID          userCrates
// @Summary     List unopened crates
// @Description Returns the caller's completed, unopened crate purchases, newest first, with pity projections.
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Crates
// @Produce     json
//
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"  example(W/\"crates:user123:4:1700000000\")
//
// @Success     200  {object}  handlers.UserCratesResponse
// @Header      200  {string}  ETag  "Weak ETag for current inventory"
// @Success     304  {string}  string  "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse  "Not authenticated"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Security    SessionCookie
// @Router      /crate/user-crates [get]
func (h *Handlers) UserCrates(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, ok := h.crateSvc.(*services.CrateService); ok {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.CrateInventoryStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixNano()
			}
			etag := fmt.Sprintf(`W/"crates:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	rows, err := h.crateSvc.UserCrates(ctx, uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "Failed to fetch crates")
		return
	}
	out := make([]UserCrate, 0, len(rows))
	for _, r := range rows {
		out = append(out, UserCrate{
			PurchaseID:  r.PurchaseID,
			CrateID:     r.CrateID,
			CrateName:   r.CrateName,
			Description: r.Description,
			Quantity:    r.Quantity,
			PurchasedAt: r.PurchasedAt,
			PityInfo:    pityInfo(r.Pity),
		})
	}
	ok(c, http.StatusOK, UserCratesResponse{OK: true, Crates: out})
}

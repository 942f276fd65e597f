package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-storefront-backend/internal/auth"
	"github.com/tbourn/go-storefront-backend/internal/config"
	"github.com/tbourn/go-storefront-backend/internal/domain"
	"github.com/tbourn/go-storefront-backend/internal/gacha"
	"github.com/tbourn/go-storefront-backend/internal/http/middleware"
	"github.com/tbourn/go-storefront-backend/internal/services"
)

// ---------- stubs ----------

type stubCrates struct {
	open       func(ctx context.Context, req services.OpenRequest) (*services.OpenResult, error)
	contents   func(ctx context.Context, itemID int64) (*services.CrateContents, error)
	userCrates func(ctx context.Context, userID string) ([]services.UnopenedCrate, error)
}

func (s stubCrates) Open(ctx context.Context, req services.OpenRequest) (*services.OpenResult, error) {
	return s.open(ctx, req)
}

func (s stubCrates) Contents(ctx context.Context, itemID int64) (*services.CrateContents, error) {
	return s.contents(ctx, itemID)
}

func (s stubCrates) UserCrates(ctx context.Context, userID string) ([]services.UnopenedCrate, error) {
	return s.userCrates(ctx, userID)
}

type stubStore struct {
	items []domain.StoreItem
	err   error
}

func (s stubStore) Items(context.Context) ([]domain.StoreItem, error) { return s.items, s.err }

type stubPurchases func(ctx context.Context, userID string, itemID int64, key string) (*services.PurchaseResult, error)

func (f stubPurchases) Purchase(ctx context.Context, userID string, itemID int64, key string) (*services.PurchaseResult, error) {
	return f(ctx, userID, itemID, key)
}

type stubCredits struct {
	packages []config.CreditPackage
	purchase func(ctx context.Context, userID string, packageID int) (*services.CreditReceipt, error)
	history  func(ctx context.Context, userID string) ([]domain.CreditPurchase, error)
	balance  func(ctx context.Context, userID string, limit int) (*services.BalanceView, error)
}

func (s stubCredits) ListPackages() []config.CreditPackage { return s.packages }

func (s stubCredits) Purchase(ctx context.Context, userID string, packageID int) (*services.CreditReceipt, error) {
	return s.purchase(ctx, userID, packageID)
}

func (s stubCredits) History(ctx context.Context, userID string) ([]domain.CreditPurchase, error) {
	return s.history(ctx, userID)
}

func (s stubCredits) Balance(ctx context.Context, userID string, limit int) (*services.BalanceView, error) {
	return s.balance(ctx, userID, limit)
}

// ---------- router helper ----------

// newRouter mounts h behind a fake session for "u1" and the idempotency
// validator, mirroring the production order.
func newRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-test")
		c.Set(auth.CtxUserID, "u1")
		c.Next()
	})
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}))
	r.POST("/crate/open", h.OpenCrate)
	r.GET("/crate/contents", h.CrateContents)
	r.GET("/crate/user-crates", h.UserCrates)
	r.GET("/store/items", h.StoreItems)
	r.POST("/store/purchase", h.PurchaseItem)
	r.GET("/credits/packages", h.CreditPackages)
	r.POST("/credits/purchase", h.PurchaseCredits)
	r.GET("/credits/history", h.CreditHistory)
	r.GET("/account/balance", h.AccountBalance)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("json: %v (%s)", err, w.Body.String())
	}
	if er.OK {
		t.Fatalf("error envelope has ok=true: %s", w.Body.String())
	}
	return er
}

func openResult() *services.OpenResult {
	return &services.OpenResult{
		OpeningID:  9,
		PurchaseID: 42,
		AttemptID:  "k-1",
		CrateName:  "Mystic Crate",
		Item: domain.CrateContent{
			Name:        "Dragon Wings",
			Description: "Legendary cosmetic wings",
			Rarity:      domain.RarityLegendary,
		},
		Quantity:  1,
		WasPity:   true,
		Delivered: true,
		Pity:      gacha.Projection{OpensSinceRare: 0, OpensSinceLegendary: 0, TotalOpens: 50, RarePityIn: 10, LegendaryPityIn: 50},
	}
}

// ---------- crate ----------

func TestOpenCrate_Success(t *testing.T) {
	var got services.OpenRequest
	h := New(stubCrates{open: func(_ context.Context, req services.OpenRequest) (*services.OpenResult, error) {
		got = req
		return openResult(), nil
	}}, nil, nil, nil)

	w := do(t, newRouter(h), http.MethodPost, "/crate/open", OpenCrateRequest{PurchaseID: 42},
		map[string]string{middleware.HeaderIdempotencyKey: "k-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if got.UserID != "u1" || got.PurchaseID != 42 || got.AttemptID != "k-1" {
		t.Fatalf("request passed to service: %+v", got)
	}
	if w.Header().Get(middleware.HeaderIdempotencyReplayed) != "" {
		t.Fatalf("fresh open must not be marked replayed")
	}

	var resp OpenCrateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !resp.OK || resp.CrateName != "Mystic Crate" || len(resp.Results) != 1 {
		t.Fatalf("unexpected body: %+v", resp)
	}
	r0 := resp.Results[0]
	if r0.ItemName != "Dragon Wings" || r0.ItemDescription == "" || r0.Rarity != domain.RarityLegendary ||
		r0.Quantity != 1 || !r0.Delivered || !r0.WasPity {
		t.Fatalf("unexpected result: %+v", r0)
	}
	if resp.PityInfo.TotalOpens != 50 || resp.PityInfo.LegendaryPityIn != 50 || resp.PityInfo.RarePityIn != 10 {
		t.Fatalf("unexpected pity: %+v", resp.PityInfo)
	}
}

func TestOpenCrate_ReplayedHeader(t *testing.T) {
	h := New(stubCrates{open: func(context.Context, services.OpenRequest) (*services.OpenResult, error) {
		res := openResult()
		res.Replayed = true
		return res, nil
	}}, nil, nil, nil)

	w := do(t, newRouter(h), http.MethodPost, "/crate/open", OpenCrateRequest{PurchaseID: 42},
		map[string]string{middleware.HeaderIdempotencyKey: "k-1"})
	if w.Code != http.StatusOK || w.Header().Get(middleware.HeaderIdempotencyReplayed) != "true" {
		t.Fatalf("status=%d replayed=%q", w.Code, w.Header().Get(middleware.HeaderIdempotencyReplayed))
	}
}

func TestOpenCrate_BadBody(t *testing.T) {
	called := false
	h := New(stubCrates{open: func(context.Context, services.OpenRequest) (*services.OpenResult, error) {
		called = true
		return nil, nil
	}}, nil, nil, nil)
	r := newRouter(h)

	for _, body := range []any{"{", `{}`, `{"purchaseId":0}`, `{"purchaseId":-3}`, `{"purchaseId":"abc"}`} {
		w := do(t, r, http.MethodPost, "/crate/open", body, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %v: status=%d", body, w.Code)
		}
		if er := decodeErr(t, w); er.Error != "Invalid purchase ID" || er.Code != ErrCodeBadRequest {
			t.Fatalf("body %v: %+v", body, er)
		}
	}
	if called {
		t.Fatalf("service must not be called for invalid input")
	}
}

func TestOpenCrate_ErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		code     string
		msg      string
		refunded int64 // 0 = absent
	}{
		{"invalid", services.ErrInvalidInput, 400, ErrCodeBadRequest, "Invalid purchase ID", 0},
		{"not found", services.ErrPurchaseNotFound, 404, ErrCodeNotFound, "Invalid crate purchase", 0},
		{"already opened", services.ErrAlreadyOpened, 409, ErrCodeConflict, "Crate already opened", 0},
		{"key reused", services.ErrAttemptReused, 409, ErrCodeIdempotencyConflict, "Idempotency-Key was already used for a different crate", 0},
		{"timeout before validation", services.ErrTimeout, 504, ErrCodeTimeout, "Opening the crate timed out. Please try again.", 0},
		{"unknown", errors.New("boom"), 500, ErrCodeOpenFailed, "Failed to open crate. Please contact support if you were charged.", 0},
		{
			"persistence refunded",
			&services.OpenFailure{PurchaseID: 42, CrateName: "Mystic Crate", Cause: services.ErrPersistence, Refunded: true, Amount: 12500},
			500, ErrCodeOpenFailed, "Failed to open Mystic Crate. Your 12,500 credits have been refunded.", 12500,
		},
		{
			"timeout refunded",
			&services.OpenFailure{PurchaseID: 42, CrateName: "Mystic Crate", Cause: fmt.Errorf("%w: deadline", services.ErrTimeout), Refunded: true, Amount: 500},
			500, ErrCodeOpenFailed, "Failed to open Mystic Crate. Your 500 credits have been refunded.", 500,
		},
		{
			"misconfigured refunded",
			&services.OpenFailure{PurchaseID: 42, CrateName: "Empty Crate", Cause: services.ErrCrateMisconfigured, Refunded: true, Amount: 1000},
			500, ErrCodeCrateMisconfigured, "No items configured for Empty Crate. Your 1,000 credits have been refunded.", 1000,
		},
		{
			"refund failed",
			&services.OpenFailure{PurchaseID: 42, CrateName: "Mystic Crate", Cause: services.ErrPersistence, RefundErr: errors.New("db down")},
			500, ErrCodeRefundFailed, "Failed to open crate. Please contact support if you were charged.", 0,
		},
		{
			"misconfigured refund failed",
			&services.OpenFailure{PurchaseID: 42, Cause: services.ErrCrateMisconfigured, RefundErr: errors.New("db down")},
			500, ErrCodeRefundFailed, "No items configured for this crate. Please contact support if you were charged.", 0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := New(stubCrates{open: func(context.Context, services.OpenRequest) (*services.OpenResult, error) {
				return nil, tc.err
			}}, nil, nil, nil)
			w := do(t, newRouter(h), http.MethodPost, "/crate/open", OpenCrateRequest{PurchaseID: 42}, nil)
			if w.Code != tc.status {
				t.Fatalf("status=%d want %d body=%s", w.Code, tc.status, w.Body.String())
			}
			er := decodeErr(t, w)
			if er.Code != tc.code || er.Error != tc.msg || er.RequestID != "rid-test" {
				t.Fatalf("unexpected envelope: %+v", er)
			}
			switch {
			case tc.refunded == 0 && er.Refunded != nil:
				t.Fatalf("refunded must be absent, got %d", *er.Refunded)
			case tc.refunded != 0 && (er.Refunded == nil || *er.Refunded != tc.refunded):
				t.Fatalf("refunded = %v; want %d", er.Refunded, tc.refunded)
			}
		})
	}
}

func TestCrateContents(t *testing.T) {
	var gotID int64
	h := New(stubCrates{contents: func(_ context.Context, id int64) (*services.CrateContents, error) {
		gotID = id
		if id == 404 {
			return nil, services.ErrItemNotFound
		}
		if id == 500 {
			return nil, errors.New("db")
		}
		return &services.CrateContents{
			ItemID:      id,
			Name:        "Mystic Crate",
			TotalWeight: 80,
			Entries: []services.ContentEntry{
				{Name: "Dragon Wings", Rarity: domain.RarityLegendary, Weight: 10, Chance: 0.125, Description: "wings"},
				{Name: "Wooden Sword", Rarity: domain.RarityCommon, Weight: 70, Chance: 0.875},
			},
		}, nil
	}}, nil, nil, nil)
	r := newRouter(h)

	w := do(t, r, http.MethodGet, "/crate/contents?id=3", nil, nil)
	if w.Code != http.StatusOK || gotID != 3 {
		t.Fatalf("status=%d id=%d", w.Code, gotID)
	}
	var resp CrateContentsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !resp.OK || resp.Crate.Name != "Mystic Crate" || resp.Crate.TotalItems != 2 || resp.Crate.TotalWeight != 80 {
		t.Fatalf("unexpected crate: %+v", resp.Crate)
	}
	if resp.Crate.Contents[0].Chance != "12.5%" || resp.Crate.Contents[1].Chance != "87.5%" {
		t.Fatalf("chances: %+v", resp.Crate.Contents)
	}
	if resp.Crate.Contents[0].Description != "wings" {
		t.Fatalf("description lost: %+v", resp.Crate.Contents[0])
	}

	cases := []struct {
		path   string
		status int
		msg    string
	}{
		{"/crate/contents", 400, "Crate ID is required"},
		{"/crate/contents?id=abc", 400, "Invalid crate ID"},
		{"/crate/contents?id=0", 400, "Invalid crate ID"},
		{"/crate/contents?id=404", 404, "Crate not found"},
		{"/crate/contents?id=500", 500, "Failed to fetch crate contents"},
	}
	for _, tc := range cases {
		w := do(t, r, http.MethodGet, tc.path, nil, nil)
		if w.Code != tc.status {
			t.Fatalf("%s: status=%d", tc.path, w.Code)
		}
		if er := decodeErr(t, w); er.Error != tc.msg {
			t.Fatalf("%s: %+v", tc.path, er)
		}
	}
}

func TestUserCrates_Stub(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var gotUser string
	h := New(stubCrates{userCrates: func(_ context.Context, uid string) ([]services.UnopenedCrate, error) {
		gotUser = uid
		return []services.UnopenedCrate{{
			PurchaseID: 7, CrateID: 3, CrateName: "Mystic Crate", Description: "d", Quantity: 1, PurchasedAt: at,
			Pity: gacha.Projection{OpensSinceRare: 4, OpensSinceLegendary: 12, TotalOpens: 12, RarePityIn: 6, LegendaryPityIn: 38},
		}}, nil
	}}, nil, nil, nil)

	w := do(t, newRouter(h), http.MethodGet, "/crate/user-crates", nil, nil)
	if w.Code != http.StatusOK || gotUser != "u1" {
		t.Fatalf("status=%d user=%q", w.Code, gotUser)
	}
	if w.Header().Get("ETag") != "" {
		t.Fatalf("stub service must not produce an ETag")
	}
	var resp UserCratesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(resp.Crates) != 1 {
		t.Fatalf("crates: %+v", resp.Crates)
	}
	c0 := resp.Crates[0]
	if c0.PurchaseID != 7 || c0.CrateName != "Mystic Crate" || !c0.PurchasedAt.Equal(at) ||
		c0.PityInfo.RarePityIn != 6 || c0.PityInfo.LegendaryPityIn != 38 || c0.PityInfo.TotalOpens != 12 {
		t.Fatalf("unexpected crate: %+v", c0)
	}
}

func TestUserCrates_Error(t *testing.T) {
	h := New(stubCrates{userCrates: func(context.Context, string) ([]services.UnopenedCrate, error) {
		return nil, errors.New("db")
	}}, nil, nil, nil)
	w := do(t, newRouter(h), http.MethodGet, "/crate/user-crates", nil, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
	if er := decodeErr(t, w); er.Error != "Failed to fetch crates" {
		t.Fatalf("%+v", er)
	}
}

// ---------- store ----------

func TestStoreItems(t *testing.T) {
	items := []domain.StoreItem{{ID: 1, Name: "Potion", Price: 50, ItemType: "consumables"}}
	w := do(t, newRouter(New(nil, stubStore{items: items}, nil, nil)), http.MethodGet, "/store/items", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var resp StoreItemsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !resp.OK || len(resp.Items) != 1 || resp.Items[0].Name != "Potion" {
		t.Fatalf("unexpected: %+v", resp)
	}

	w = do(t, newRouter(New(nil, stubStore{}, nil, nil)), http.MethodGet, "/store/items", nil, nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"items":[]`)) {
		t.Fatalf("empty catalog should be []: %s", w.Body.String())
	}

	w = do(t, newRouter(New(nil, stubStore{err: errors.New("db")}, nil, nil)), http.MethodGet, "/store/items", nil, nil)
	if w.Code != http.StatusInternalServerError || decodeErr(t, w).Error != "Failed to fetch items" {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestPurchaseItem_Success(t *testing.T) {
	var gotKey string
	h := New(nil, nil, stubPurchases(func(_ context.Context, uid string, itemID int64, key string) (*services.PurchaseResult, error) {
		gotKey = key
		if uid != "u1" {
			t.Errorf("user = %q", uid)
		}
		if itemID == 3 {
			return &services.PurchaseResult{PurchaseID: 11, ItemName: "Mystic Crate", Status: domain.PurchaseCompleted, IsCrate: true, Price: 500, Balance: 500}, nil
		}
		return &services.PurchaseResult{PurchaseID: 12, ItemName: "Potion", Status: domain.PurchaseCompleted, Price: 50, Balance: 450, Replayed: key != ""}, nil
	}), nil)
	r := newRouter(h)

	w := do(t, r, http.MethodPost, "/store/purchase", PurchaseRequest{ItemID: 3}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp PurchaseResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !resp.OK || resp.OrderID != 11 || !resp.IsCrate || resp.Balance != 500 ||
		resp.Message != "Successfully purchased Mystic Crate! You can now open it to reveal your rewards." {
		t.Fatalf("unexpected crate purchase: %+v", resp)
	}

	w = do(t, r, http.MethodPost, "/store/purchase", PurchaseRequest{ItemID: 5},
		map[string]string{middleware.HeaderIdempotencyKey: "order-1"})
	if w.Code != http.StatusOK || gotKey != "order-1" {
		t.Fatalf("status=%d key=%q", w.Code, gotKey)
	}
	if w.Header().Get(middleware.HeaderIdempotencyReplayed) != "true" {
		t.Fatalf("replayed purchase should be marked")
	}
	resp = PurchaseResponse{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.IsCrate || resp.Message != "Successfully purchased Potion!" {
		t.Fatalf("unexpected item purchase: %+v", resp)
	}
}

func TestPurchaseItem_Errors(t *testing.T) {
	cases := []struct {
		name   string
		body   any
		res    *services.PurchaseResult
		err    error
		status int
		code   string
		msg    string
	}{
		{"bad json", "{", nil, nil, 400, ErrCodeBadRequest, "Invalid item"},
		{"zero id", `{"itemId":0}`, nil, nil, 400, ErrCodeBadRequest, "Invalid item"},
		{"unknown item", PurchaseRequest{ItemID: 9}, nil, services.ErrItemNotFound, 404, ErrCodeNotFound, "Item not found"},
		{"invalid", PurchaseRequest{ItemID: 9}, nil, services.ErrInvalidInput, 400, ErrCodeBadRequest, "Invalid item"},
		{"timeout", PurchaseRequest{ItemID: 9}, nil, services.ErrTimeout, 504, ErrCodeTimeout, "Purchase timed out. Please try again."},
		{"persistence", PurchaseRequest{ItemID: 9}, nil, services.ErrPersistence, 500, ErrCodePurchaseFailed, "Purchase failed"},
		{
			"delivery refunded", PurchaseRequest{ItemID: 9},
			&services.PurchaseResult{PurchaseID: 1, ItemName: "Potion", Status: domain.PurchaseRefunded, Price: 1500, Refunded: true}, nil,
			500, ErrCodePurchaseFailed, "Failed to deliver Potion. Your 1,500 credits have been refunded.",
		},
		{
			"delivery failed unrefunded", PurchaseRequest{ItemID: 9},
			&services.PurchaseResult{PurchaseID: 1, ItemName: "Potion", Status: domain.PurchaseFailed, Price: 50}, nil,
			500, ErrCodeRefundFailed, "Purchase failed. Please contact support if you were charged.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := New(nil, nil, stubPurchases(func(context.Context, string, int64, string) (*services.PurchaseResult, error) {
				return tc.res, tc.err
			}), nil)
			w := do(t, newRouter(h), http.MethodPost, "/store/purchase", tc.body, nil)
			if w.Code != tc.status {
				t.Fatalf("status=%d want %d", w.Code, tc.status)
			}
			if er := decodeErr(t, w); er.Code != tc.code || er.Error != tc.msg {
				t.Fatalf("unexpected envelope: %+v", er)
			}
		})
	}
}

func TestPurchaseItem_InsufficientBalance(t *testing.T) {
	h := New(nil, nil, stubPurchases(func(context.Context, string, int64, string) (*services.PurchaseResult, error) {
		return nil, &services.InsufficientBalanceError{Required: 500, Current: 0}
	}), nil)
	w := do(t, newRouter(h), http.MethodPost, "/store/purchase", PurchaseRequest{ItemID: 3}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	er := decodeErr(t, w)
	if er.Code != ErrCodeInsufficientBalance || er.Error != "Insufficient balance" {
		t.Fatalf("unexpected: %+v", er)
	}
	// current must be present even when it is zero
	if er.Required == nil || *er.Required != 500 || er.Current == nil || *er.Current != 0 {
		t.Fatalf("amounts: required=%v current=%v", er.Required, er.Current)
	}
}

// ---------- credits / account ----------

func TestCreditPackages(t *testing.T) {
	h := New(nil, nil, nil, stubCredits{packages: config.DefaultCreditPackages()})
	w := do(t, newRouter(h), http.MethodGet, "/credits/packages", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var resp struct {
		OK       bool `json:"ok"`
		Packages []struct {
			ID    int     `json:"id"`
			Name  string  `json:"name"`
			Price float64 `json:"price"`
		} `json:"packages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !resp.OK || len(resp.Packages) != 6 || resp.Packages[1].Name != "Adventure Pack" || resp.Packages[1].Price != 9.99 {
		t.Fatalf("unexpected: %+v", resp)
	}
}

func TestPurchaseCredits(t *testing.T) {
	pk := config.DefaultCreditPackages()[1]
	h := New(nil, nil, nil, stubCredits{purchase: func(_ context.Context, uid string, id int) (*services.CreditReceipt, error) {
		switch id {
		case 2:
			return &services.CreditReceipt{Package: pk, CreditsAdded: pk.Total(), TransactionID: "TXN-abc", Balance: 3750}, nil
		case 42:
			return nil, services.ErrPackageNotFound
		case 7:
			return nil, services.ErrInvalidInput
		}
		return nil, errors.New("db")
	}})
	r := newRouter(h)

	w := do(t, r, http.MethodPost, "/credits/purchase", CreditPurchaseRequest{PackageID: 2}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var resp CreditPurchaseResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Message != "Successfully purchased Adventure Pack!" || resp.CreditsAdded != 2750 ||
		resp.TransactionID != "TXN-abc" || resp.Package != "Adventure Pack" || resp.Balance != 3750 {
		t.Fatalf("unexpected: %+v", resp)
	}

	cases := []struct {
		body   any
		status int
		msg    string
	}{
		{"{", 400, "Invalid package"},
		{`{"packageId":0}`, 400, "Invalid package"},
		{CreditPurchaseRequest{PackageID: 42}, 404, "Package not found"},
		{CreditPurchaseRequest{PackageID: 7}, 400, "Invalid package"},
		{CreditPurchaseRequest{PackageID: 3}, 500, "Purchase failed"},
	}
	for _, tc := range cases {
		w := do(t, r, http.MethodPost, "/credits/purchase", tc.body, nil)
		if w.Code != tc.status {
			t.Fatalf("%v: status=%d", tc.body, w.Code)
		}
		if er := decodeErr(t, w); er.Error != tc.msg {
			t.Fatalf("%v: %+v", tc.body, er)
		}
	}
}

func TestCreditHistory(t *testing.T) {
	broken := false
	h := New(nil, nil, nil, stubCredits{history: func(context.Context, string) ([]domain.CreditPurchase, error) {
		if broken {
			return nil, errors.New("db")
		}
		return nil, nil
	}})
	r := newRouter(h)

	w := do(t, r, http.MethodGet, "/credits/history", nil, nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"history":[]`)) {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	broken = true
	w = do(t, r, http.MethodGet, "/credits/history", nil, nil)
	if w.Code != http.StatusInternalServerError || decodeErr(t, w).Error != "Failed to load purchase history" {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestAccountBalance_LimitClamp(t *testing.T) {
	var gotLimit int
	h := New(nil, nil, nil, stubCredits{balance: func(_ context.Context, _ string, limit int) (*services.BalanceView, error) {
		gotLimit = limit
		return &services.BalanceView{Balance: 1500, Entries: []domain.BalanceEntry{{Kind: domain.EntryPurchase, Delta: -500}}}, nil
	}})
	r := newRouter(h)

	cases := map[string]int{
		"/account/balance":           20,
		"/account/balance?limit=5":   5,
		"/account/balance?limit=0":   1,
		"/account/balance?limit=999": 100,
		"/account/balance?limit=x":   20,
	}
	for path, want := range cases {
		w := do(t, r, http.MethodGet, path, nil, nil)
		if w.Code != http.StatusOK || gotLimit != want {
			t.Fatalf("%s: status=%d limit=%d want %d", path, w.Code, gotLimit, want)
		}
	}

	var resp BalanceResponse
	w := do(t, r, http.MethodGet, "/account/balance", nil, nil)
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !resp.OK || resp.Balance != 1500 || len(resp.Entries) != 1 || resp.Entries[0].Delta != -500 {
		t.Fatalf("unexpected: %+v", resp)
	}
}

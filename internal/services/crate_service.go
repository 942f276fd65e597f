// Package services – CrateService
//
// CrateService opens purchased crates. An open runs through validation,
// rolling and persisting; the rolled item, the opening record and the advanced
// pity counters commit in one transaction. Any failure after the purchase was
// confirmed as valid and unopened triggers one compensating refund whose
// outcome is reported back through *OpenFailure.
//
// At-most-one opening per purchase is enforced by the unique purchase_id on
// crate_openings, not by the pre-check. Pity counters are written with an
// optimistic guard on total_opens so concurrent opens of the same crate never
// lose an update.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-storefront-backend/internal/domain"
	"github.com/tbourn/go-storefront-backend/internal/gacha"
	"github.com/tbourn/go-storefront-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxPityRetries bounds re-rolls after losing a pity counter race.
const maxPityRetries = 3

// CrateService implements crate opening, crate contents and the caller's
// crate inventory.
type CrateService struct {
	DB        *gorm.DB
	Selector  *gacha.Selector
	Policy    gacha.Policy
	Deliverer Deliverer

	// OpenTimeout bounds an entire open; RefundTimeout bounds the compensation,
	// which runs even after the caller's context is done.
	OpenTimeout   time.Duration
	RefundTimeout time.Duration
}

// NewCrateService wires a CrateService with the crypto RNG and log delivery.
func NewCrateService(db *gorm.DB) *CrateService {
	return &CrateService{
		DB:            db,
		Selector:      gacha.NewSelector(nil),
		Deliverer:     LogDeliverer{},
		OpenTimeout:   5 * time.Second,
		RefundTimeout: 5 * time.Second,
	}
}

// OpenRequest identifies one open attempt. AttemptID ties retries of the same
// client request together; a blank value gets a fresh UUID.
type OpenRequest struct {
	UserID     string
	PurchaseID int64
	AttemptID  string
}

// OpenResult is the committed outcome of an open.
type OpenResult struct {
	OpeningID  int64
	PurchaseID int64
	AttemptID  string
	CrateName  string
	Item       domain.CrateContent
	Quantity   int
	WasPity    bool
	Delivered  bool
	Pity       gacha.Projection
	// Replayed is set when the result was committed by an earlier call with
	// the same attempt id.
	Replayed bool
}

// Open rolls and records the item for a completed, unopened crate purchase.
//
// Errors:
//   - ErrInvalidInput, ErrPurchaseNotFound, ErrAlreadyOpened, ErrTimeout: the
//     purchase was not consumed and nothing was refunded.
//   - *OpenFailure: the open failed after validation; inspect Refunded/Amount.
func (s *CrateService) Open(ctx context.Context, req OpenRequest) (*OpenResult, error) {
	tr := otel.Tracer("services/CrateService")
	ctx, span := tr.Start(ctx, "Open",
		trace.WithAttributes(
			attribute.String("user.id", req.UserID),
			attribute.Int64("purchase.id", req.PurchaseID),
		),
	)
	defer span.End()

	if req.PurchaseID <= 0 || strings.TrimSpace(req.UserID) == "" {
		return nil, ErrInvalidInput
	}
	if req.AttemptID == "" {
		req.AttemptID = uuid.NewString()
	} else if s.attemptReused(ctx, req) {
		return nil, ErrAttemptReused
	}
	span.SetAttributes(attribute.String("attempt.id", req.AttemptID))

	if s.OpenTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.OpenTimeout)
		defer cancel()
	}

	// Validating
	purchase, def, err := s.validate(ctx, req)
	if err != nil {
		if errors.Is(err, ErrAlreadyOpened) {
			if res, ok := s.replay(ctx, req, def); ok {
				return res, nil
			}
		}
		return nil, err
	}

	// Rolling + Persisting
	res, err := s.roll(ctx, req, purchase, def)
	if err == nil {
		s.deliver(ctx, purchase, res)
		crateOpens.WithLabelValues(string(res.Item.Rarity), strconv.FormatBool(res.WasPity)).Inc()
		return res, nil
	}
	if errors.Is(err, ErrAlreadyOpened) || errors.Is(err, ErrPurchaseNotFound) {
		detached := context.WithoutCancel(ctx)
		if res, ok := s.replay(detached, req, def); ok {
			return res, nil
		}
		// A concurrent open of another purchase claimed the same attempt id.
		if s.attemptReused(detached, req) {
			return nil, ErrAttemptReused
		}
		return nil, err
	}

	// Failed. A commit that raced the error (for example a deadline hit after
	// COMMIT) still stands; only an unopened purchase is refunded.
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	detached := context.WithoutCancel(ctx)
	if res, ok := s.replay(detached, req, def); ok {
		return res, nil
	}
	if opened, oerr := repo.OpeningExists(detached, s.DB, purchase.ID); oerr == nil && opened {
		return nil, ErrAlreadyOpened
	}
	if ctx.Err() != nil && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	return nil, s.fail(ctx, req, purchase, def, err)
}

func (s *CrateService) validate(ctx context.Context, req OpenRequest) (*domain.Purchase, *domain.CrateDefinition, error) {
	p, err := repo.GetPurchase(ctx, s.DB, req.PurchaseID, req.UserID)
	if err != nil {
		return nil, nil, classifyRead(ctx, err, ErrPurchaseNotFound)
	}
	if !p.Item.IsCrate() {
		return nil, nil, ErrPurchaseNotFound
	}
	def, err := repo.GetCrateByItemID(ctx, s.DB, p.ItemID)
	if err != nil {
		return nil, nil, classifyRead(ctx, err, ErrPurchaseNotFound)
	}
	opened, err := repo.OpeningExists(ctx, s.DB, p.ID)
	if err != nil {
		return nil, nil, classifyRead(ctx, err, nil)
	}
	if opened {
		return p, def, ErrAlreadyOpened
	}
	if p.Status != domain.PurchaseCompleted {
		return nil, nil, ErrPurchaseNotFound
	}
	return p, def, nil
}

// classifyRead maps a read failure outside any refundable window.
func classifyRead(ctx context.Context, err, notFound error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ErrTimeout
	case notFound != nil && errors.Is(err, repo.ErrNotFound):
		return notFound
	default:
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
}

// roll selects the item and commits the opening with the advanced pity state,
// re-rolling when another open of the same crate moved the counters first.
func (s *CrateService) roll(ctx context.Context, req OpenRequest, p *domain.Purchase, def *domain.CrateDefinition) (*OpenResult, error) {
	tr := otel.Tracer("services/CrateService")
	ctx, span := tr.Start(ctx, "roll")
	defer span.End()

	contents, err := repo.ListActiveContents(ctx, s.DB, def.ID)
	if err != nil {
		return nil, err
	}
	if len(contents) == 0 {
		return nil, ErrCrateMisconfigured
	}
	th := gacha.ThresholdsOf(*def)

	var res *OpenResult
	for attempt := 1; ; attempt++ {
		res, err = s.persist(ctx, req, p, def, contents, th)
		if !errors.Is(err, repo.ErrStalePity) || attempt >= maxPityRetries {
			break
		}
		span.AddEvent("pity state changed; re-rolling", trace.WithAttributes(attribute.Int("attempt", attempt)))
	}
	return res, err
}

func (s *CrateService) persist(ctx context.Context, req OpenRequest, p *domain.Purchase, def *domain.CrateDefinition, contents []domain.CrateContent, th gacha.Thresholds) (*OpenResult, error) {
	var res *OpenResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := repo.LockPurchase(ctx, tx, p.ID, req.UserID)
		if err != nil {
			return err
		}
		if locked.Status != domain.PurchaseCompleted {
			return ErrPurchaseNotFound
		}

		prev, found, err := repo.GetPityState(ctx, tx, req.UserID, def.ID)
		if err != nil {
			return err
		}
		floor := s.Policy.FloorFor(prev, th)
		item, err := s.Selector.Select(contents, floor)
		if err != nil {
			if errors.Is(err, gacha.ErrEmptyPool) {
				return fmt.Errorf("%w: floor %s", ErrCrateMisconfigured, floor)
			}
			return err
		}
		next := s.Policy.Advance(prev, item.Rarity)

		opening := &domain.CrateOpening{
			UserID:      req.UserID,
			CrateID:     def.ID,
			PurchaseID:  p.ID,
			AttemptID:   req.AttemptID,
			GoodsNo:     item.GoodsNo,
			ItemName:    item.Name,
			ItemDesc:    item.Description,
			Rarity:      item.Rarity,
			Quantity:    1,
			WasPityDrop: floor != nil,
			CreatedAt:   time.Now().UTC(),
		}
		if err := repo.CreateOpening(ctx, tx, opening); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrAlreadyOpened
			}
			return err
		}
		if err := repo.SavePityState(ctx, tx, prev, next, found); err != nil {
			return err
		}

		res = &OpenResult{
			OpeningID:  opening.ID,
			PurchaseID: p.ID,
			AttemptID:  req.AttemptID,
			CrateName:  def.Name,
			Item:       item,
			Quantity:   opening.Quantity,
			WasPity:    opening.WasPityDrop,
			Pity:       gacha.Project(next, th),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// attemptReused reports whether req.AttemptID is bound to an opening of a
// different purchase. Nothing is charged or refunded for such a request.
func (s *CrateService) attemptReused(ctx context.Context, req OpenRequest) bool {
	o, err := repo.GetOpeningByAttempt(ctx, s.DB, req.UserID, req.AttemptID)
	return err == nil && o.PurchaseID != req.PurchaseID
}

// replay returns the committed result when this attempt already produced the
// opening for the purchase.
func (s *CrateService) replay(ctx context.Context, req OpenRequest, def *domain.CrateDefinition) (*OpenResult, bool) {
	if def == nil {
		return nil, false
	}
	o, err := repo.GetOpeningByPurchase(ctx, s.DB, req.PurchaseID)
	if err != nil || o.UserID != req.UserID || o.AttemptID != req.AttemptID {
		return nil, false
	}
	st, _, err := repo.GetPityState(ctx, s.DB, req.UserID, def.ID)
	if err != nil {
		return nil, false
	}
	return &OpenResult{
		OpeningID:  o.ID,
		PurchaseID: o.PurchaseID,
		AttemptID:  o.AttemptID,
		CrateName:  def.Name,
		Item: domain.CrateContent{
			CrateID:     o.CrateID,
			GoodsNo:     o.GoodsNo,
			Name:        o.ItemName,
			Description: o.ItemDesc,
			Rarity:      o.Rarity,
		},
		Quantity:  o.Quantity,
		WasPity:   o.WasPityDrop,
		Delivered: o.Delivered,
		Pity:      gacha.Project(st, gacha.ThresholdsOf(*def)),
		Replayed:  true,
	}, true
}

// deliver hands the item to the game after commit. The opening stays recorded
// whatever the outcome; only its delivered flag follows the result.
func (s *CrateService) deliver(ctx context.Context, p *domain.Purchase, res *OpenResult) {
	if s.Deliverer == nil {
		return
	}
	dctx := context.WithoutCancel(ctx)
	err := s.Deliverer.Deliver(dctx, Delivery{
		UserID:     p.UserID,
		GameUserNo: p.GameUserNo,
		PurchaseID: p.ID,
		GoodsNo:    res.Item.GoodsNo,
		ItemName:   res.Item.Name,
		Quantity:   res.Quantity,
		Source:     "crate",
	})
	if err != nil {
		logFrom(ctx).Error().Err(err).Int64("purchase_id", p.ID).Msg("crate item delivery failed")
		return
	}
	if err := repo.MarkOpeningDelivered(dctx, s.DB, res.OpeningID, true); err != nil {
		logFrom(ctx).Error().Err(err).Int64("opening_id", res.OpeningID).Msg("mark delivered")
		return
	}
	res.Delivered = true
}

func (s *CrateService) fail(ctx context.Context, req OpenRequest, p *domain.Purchase, def *domain.CrateDefinition, cause error) error {
	var reason string
	switch {
	case errors.Is(cause, ErrCrateMisconfigured):
		reason = "misconfigured"
	case errors.Is(cause, context.DeadlineExceeded):
		reason = "timeout"
		cause = fmt.Errorf("%w: %v", ErrTimeout, cause)
	default:
		reason = "persistence"
		cause = fmt.Errorf("%w: %v", ErrPersistence, cause)
	}
	crateOpenFailures.WithLabelValues(reason).Inc()
	logFrom(ctx).Error().Err(cause).
		Str("user_id", req.UserID).
		Int64("purchase_id", p.ID).
		Str("attempt_id", req.AttemptID).
		Msg("crate open failed")

	f := &OpenFailure{PurchaseID: p.ID, CrateName: def.Name, Cause: cause}
	ref, err := compensate(ctx, s.DB, s.RefundTimeout, refundRequest{
		UserID:     req.UserID,
		PurchaseID: p.ID,
		AttemptID:  req.AttemptID,
		Reason:     "open failed: " + reason,
		From:       domain.PurchaseCompleted,
		Unopened:   true,
	})
	if err != nil {
		f.RefundErr = err
		return f
	}
	f.Refunded, f.Amount = true, ref.Amount
	return f
}

// ContentEntry is one display row of a crate's contents.
type ContentEntry struct {
	Name        string
	Description string
	Rarity      domain.Rarity
	Weight      int
	Chance      float64 // Weight / total, in [0,1]
}

// CrateContents is the display view of a crate. No pity floor is applied.
type CrateContents struct {
	ItemID      int64
	Name        string
	Entries     []ContentEntry
	TotalWeight int
}

// Contents lists the active contents of the crate sold as itemID, ordered for
// display by rarity (legendary first) then name.
func (s *CrateService) Contents(ctx context.Context, itemID int64) (*CrateContents, error) {
	tr := otel.Tracer("services/CrateService")
	ctx, span := tr.Start(ctx, "Contents",
		trace.WithAttributes(attribute.Int64("item.id", itemID)),
	)
	defer span.End()

	if itemID <= 0 {
		return nil, ErrInvalidInput
	}
	def, err := repo.GetCrateByItemID(ctx, s.DB, itemID)
	if err != nil {
		return nil, classifyRead(ctx, err, ErrItemNotFound)
	}
	items, err := repo.ListActiveContents(ctx, s.DB, def.ID)
	if err != nil {
		return nil, classifyRead(ctx, err, nil)
	}

	total := gacha.TotalWeight(items)
	out := &CrateContents{ItemID: itemID, Name: def.Name, TotalWeight: total, Entries: make([]ContentEntry, 0, len(items))}
	for _, it := range items {
		e := ContentEntry{Name: it.Name, Description: it.Description, Rarity: it.Rarity, Weight: it.DropWeight}
		if total > 0 {
			e.Chance = float64(it.DropWeight) / float64(total)
		}
		out.Entries = append(out.Entries, e)
	}
	sort.SliceStable(out.Entries, func(i, j int) bool {
		ri, rj := out.Entries[i].Rarity.DisplayRank(), out.Entries[j].Rarity.DisplayRank()
		if ri != rj {
			return ri < rj
		}
		return out.Entries[i].Name < out.Entries[j].Name
	})
	return out, nil
}

// UnopenedCrate is one entry of the caller's crate inventory.
type UnopenedCrate struct {
	PurchaseID  int64
	CrateID     int64
	CrateName   string
	Description string
	Quantity    int
	PurchasedAt time.Time
	Pity        gacha.Projection
}

// UserCrates lists the caller's completed, unopened crate purchases, newest
// first, with current pity projections.
func (s *CrateService) UserCrates(ctx context.Context, userID string) ([]UnopenedCrate, error) {
	tr := otel.Tracer("services/CrateService")
	ctx, span := tr.Start(ctx, "UserCrates",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	rows, err := repo.ListUnopenedCrates(ctx, s.DB, userID)
	if err != nil {
		return nil, classifyRead(ctx, err, nil)
	}
	out := make([]UnopenedCrate, 0, len(rows))
	for _, r := range rows {
		st := domain.PityState{
			UserID:              userID,
			CrateID:             r.CrateID,
			OpensSinceRare:      r.OpensSinceRare,
			OpensSinceLegendary: r.OpensSinceLegendary,
			TotalOpens:          r.TotalOpens,
		}
		out = append(out, UnopenedCrate{
			PurchaseID:  r.PurchaseID,
			CrateID:     r.CrateID,
			CrateName:   r.CrateName,
			Description: r.Description,
			Quantity:    r.Quantity,
			PurchasedAt: r.PurchasedAt,
			Pity:        gacha.Project(st, gacha.Thresholds{Rare: r.RareThreshold, Legendary: r.LegendaryThreshold}),
		})
	}
	return out, nil
}

// Refund issues (or re-reports) the compensating refund for a crate purchase
// that has no opening. Calling it again for the same purchase never credits
// twice.
func (s *CrateService) Refund(ctx context.Context, userID string, purchaseID int64, attemptID string) (*domain.Refund, error) {
	tr := otel.Tracer("services/CrateService")
	ctx, span := tr.Start(ctx, "Refund",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int64("purchase.id", purchaseID),
		),
	)
	defer span.End()

	return compensate(ctx, s.DB, s.RefundTimeout, refundRequest{
		UserID:     userID,
		PurchaseID: purchaseID,
		AttemptID:  attemptID,
		Reason:     "manual",
		From:       domain.PurchaseCompleted,
		Unopened:   true,
	})
}

func logFrom(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

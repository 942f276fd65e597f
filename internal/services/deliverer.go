package services

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Delivery is the hand-off of a granted item to the game-world inventory.
type Delivery struct {
	UserID     string
	GameUserNo int64
	PurchaseID int64
	GoodsNo    int64
	ItemName   string
	Quantity   int
	Source     string // "crate" or "store"
}

// Deliverer pushes granted items into the game. Implementations must be safe
// for concurrent use.
type Deliverer interface {
	Deliver(ctx context.Context, d Delivery) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, d Delivery) error

// Deliver calls f(ctx, d).
func (f DelivererFunc) Deliver(ctx context.Context, d Delivery) error { return f(ctx, d) }

// LogDeliverer records deliveries in the log and always succeeds. It stands in
// for the game inventory bridge in development and tests.
type LogDeliverer struct{}

// Deliver logs d at info level.
func (LogDeliverer) Deliver(ctx context.Context, d Delivery) error {
	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &log.Logger
	}
	logger.Info().
		Str("user_id", d.UserID).
		Int64("game_user_no", d.GameUserNo).
		Int64("purchase_id", d.PurchaseID).
		Int64("goods_no", d.GoodsNo).
		Str("item", d.ItemName).
		Int("quantity", d.Quantity).
		Str("source", d.Source).
		Msg("item delivered")
	return nil
}

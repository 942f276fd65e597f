package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-storefront-backend/internal/domain"
)

// CreateCreditPurchase inserts a credit package purchase record.
func CreateCreditPurchase(ctx context.Context, db *gorm.DB, c *domain.CreditPurchase) error {
	return db.WithContext(ctx).Create(c).Error
}

// ListCreditPurchases returns the user's credit purchases, newest first.
func ListCreditPurchases(ctx context.Context, db *gorm.DB, userID string) ([]domain.CreditPurchase, error) {
	var out []domain.CreditPurchase
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("purchased_at DESC").
		Order("id DESC").
		Find(&out).Error
	return out, err
}

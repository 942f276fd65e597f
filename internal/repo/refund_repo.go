package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-storefront-backend/internal/domain"
)

// GetRefundByPurchase returns the refund issued for purchaseID, if any.
func GetRefundByPurchase(ctx context.Context, db *gorm.DB, purchaseID int64) (*domain.Refund, error) {
	var r domain.Refund
	if err := db.WithContext(ctx).Where("purchase_id = ?", purchaseID).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRefund inserts a refund; a second refund for a purchase is ErrDuplicate.
func CreateRefund(ctx context.Context, db *gorm.DB, r *domain.Refund) error {
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

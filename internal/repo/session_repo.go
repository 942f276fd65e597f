package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-storefront-backend/internal/domain"
)

// GetSessionUser resolves a non-expired session id to its user.
func GetSessionUser(ctx context.Context, db *gorm.DB, sessionID string, now time.Time) (*domain.User, error) {
	var s domain.Session
	err := db.WithContext(ctx).
		Preload("User").
		Where("id = ? AND expires_at > ?", sessionID, now).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s.User, nil
}

// CreateSession opens a session for userID valid for ttl.
func CreateSession(ctx context.Context, db *gorm.DB, userID string, ttl time.Duration) (*domain.Session, error) {
	now := time.Now().UTC()
	s := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Omit("User").Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// ListRoles returns the user's role names in alphabetical order.
func ListRoles(ctx context.Context, db *gorm.DB, userID string) ([]string, error) {
	var roles []string
	err := db.WithContext(ctx).
		Model(&domain.UserRole{}).
		Where("user_id = ?", userID).
		Order("role ASC").
		Pluck("role", &roles).Error
	return roles, err
}

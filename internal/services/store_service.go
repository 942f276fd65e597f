package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-storefront-backend/internal/domain"
	"github.com/tbourn/go-storefront-backend/internal/repo"

	"go.opentelemetry.io/otel"
)

// StoreService serves the public catalog.
type StoreService struct {
	DB *gorm.DB
}

// Items lists active store items ordered by type, then price.
func (s *StoreService) Items(ctx context.Context) ([]domain.StoreItem, error) {
	ctx, span := otel.Tracer("services/StoreService").Start(ctx, "Items")
	defer span.End()

	items, err := repo.ListActiveItems(ctx, s.DB)
	if err != nil {
		return nil, classifyRead(ctx, err, nil)
	}
	return items, nil
}

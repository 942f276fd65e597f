package observability

import (
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-storefront-backend/internal/config"
)

// InstrumentDB registers the GORM tracing plugin so every query made through
// db (and sessions derived from it) becomes a child span of the request.
// Bound variables are left out of span attributes; they carry user ids and
// balances. It is a no-op when tracing is disabled.
func InstrumentDB(db *gorm.DB, cfg config.OTELConfig) error {
	if !cfg.Enabled {
		return nil
	}
	return db.Use(tracing.NewPlugin(
		tracing.WithoutMetrics(),
		tracing.WithoutQueryVariables(),
	))
}

package migrate

import (
	"context"
	"fmt"

	"github.com/emlakofis/emlak-backend/pkg/config"
	"github.com/emlakofis/emlak-backend/pkg/db"
	"github.com/emlakofis/emlak-backend/pkg/logger"
)

// MaybeRunDev applies pending migrations at startup in dev when
// EMLAK_AUTO_MIGRATE is set. Other environments run cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	m, err := New(sqlDB, logg)
	if err != nil {
		return err
	}
	ctx = logg.WithField(ctx, "migrations", "embedded")
	logg.Info(ctx, "auto-migrating dev database")
	return m.Up(ctx)
}

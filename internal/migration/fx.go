package migration

import (
	"github.com/smallbiznis/creditledger/internal/config"
	"github.com/smallbiznis/creditledger/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if err := Migrate(conn, cfg.DBType); err != nil {
			return err
		}
		if err := seed.EnsureCatalog(conn); err != nil {
			return err
		}
		log.Info("schema ready", zap.String("db_type", cfg.DBType))
		return nil
	}),
)

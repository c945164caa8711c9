package migration

import (
	"github.com/smallbiznis/feeledger/internal/config"
	"github.com/smallbiznis/feeledger/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		log = log.Named("migration")

		switch {
		case cfg.DBType == "postgres":
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		case cfg.DBAutoMigrate:
			if err := AutoMigrate(conn); err != nil {
				return err
			}
		default:
			log.Info("schema migration skipped", zap.String("db_type", cfg.DBType))
		}

		if cfg.SeedDemoData && !cfg.IsProduction() {
			return seed.EnsureDemoSchool(conn, log)
		}
		return nil
	}),
)

package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module runs migrations against the shared gorm connection. Wired only by
// the migrate command.
var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB) error {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)

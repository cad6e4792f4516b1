package extractjob

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/mengeric/extractjob-go/artifact"
	"github.com/mengeric/extractjob-go/config"
	"github.com/mengeric/extractjob-go/storage/filestore"
	"github.com/mengeric/extractjob-go/storage/gormstore"
	"github.com/mengeric/extractjob-go/storage/memstore"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openStore 按 storage.driver 构造产物存储，返回的 close 用于释放底层资源。
func openStore(cfg config.Config) (artifact.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Storage.Driver {
	case "memory":
		return memstore.New(), noop, nil
	case "db":
		db, err := gorm.Open(sqlite.Open(cfg.Storage.DataSource), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open artifact db %s: %w", cfg.Storage.DataSource, err)
		}
		if err := gormstore.AutoMigrate(db); err != nil {
			return nil, nil, fmt.Errorf("migrate artifact db: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		return gormstore.New(db, cfg.APIVersion), sqlDB.Close, nil
	default:
		s, err := filestore.New(cfg.Storage.ResultsDir, filestore.WithAPIVersion(cfg.APIVersion))
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	}
}

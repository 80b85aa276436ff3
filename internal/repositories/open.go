package repositories

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"gar-rock/resume-crunch/internal/config"
)

// Open builds the metadata store selected by STORE_DRIVER. The returned
// closer releases the underlying connection.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (ResumeRepository, func() error, error) {
	switch cfg.Store.Driver {
	case config.StoreMemory:
		log.Warn("⚠️ Using in-memory metadata store, records are lost on restart")
		return NewMemoryResumeRepository(), func() error { return nil }, nil

	case config.StoreRedis:
		rdb, err := config.InitRedis(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		log.Info("✅ Redis connected", zap.String("addr", cfg.Redis.Addr))
		return NewRedisResumeRepository(rdb, cfg.Redis.KeyPrefix), rdb.Close, nil

	case config.StorePostgres:
		db, err := config.InitDatabase(cfg, log)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		return NewResumeRepository(db), sqlDB.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

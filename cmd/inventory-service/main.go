// cmd/inventory-service/main.go
package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"shopflow/internal/pkg/bootstrap"
	"shopflow/internal/pkg/event"
	"shopflow/internal/service/inventory/application"
	"shopflow/internal/service/inventory/infrastructure"
	"shopflow/internal/service/inventory/interfaces"
	"shopflow/internal/zookeeper"
)

const reaperLockResource = "inventory-reaper"

// main 是库存服务的组装根
func main() {
	cfg, err := bootstrap.LoadConfig("configs/inventory-service.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := bootstrap.StartService(bootstrap.AppInfo{Config: cfg, Setup: setup}); err != nil {
		log.Fatal().Err(err).Msg("inventory-service exited")
	}
}

func setup(ctx context.Context, app *bootstrap.AppCtx) error {
	cfg := app.Config

	db, err := app.OpenMySQL()
	if err != nil {
		return err
	}
	repo := infrastructure.NewGormRepository(db)
	if cfg.Infra.MySQL.AutoMigrate {
		if err := repo.AutoMigrate(); err != nil {
			return errors.Wrap(err, "auto migrate")
		}
	}

	var cache application.StockCache
	if rc, err := app.OpenRedis(ctx); err != nil {
		// 缓存不可用时直接读库
		log.Warn().Err(err).Msg("redis unavailable, stock cache disabled")
	} else {
		cache = infrastructure.NewRedisStockCache(rc, cfg.Inventory.CacheTTL)
	}

	svc := application.NewReservationService(repo, cache, application.Options{
		HoldDuration:     cfg.Inventory.HoldDuration,
		DefaultThreshold: cfg.Inventory.DefaultLowStockLevel,
	})

	// 没有配置 zookeeper 时单实例运行，行级复核仍保证只过期一次
	var leader application.Leader
	zkConn, err := app.ConnectZookeeper()
	if err != nil {
		return err
	}
	if zkConn != nil {
		l, err := zookeeper.NewLeadership(zkConn, reaperLockResource)
		if err != nil {
			return err
		}
		leader = l
	}
	reaper := application.NewReaper(repo, cache, leader, application.ReaperConfig{
		Interval:  cfg.Inventory.ReaperInterval,
		BatchSize: cfg.Inventory.ReaperBatchSize,
	})
	app.Go("reservation-reaper", reaper.Run)

	writer := app.KafkaWriter()
	app.RunOutboxRelay(db, writer)
	app.Consume("product-events", event.TopicProduct, interfaces.NewProductEventHandler(svc).Handle, writer)

	interfaces.NewInventoryHandler(svc).RegisterRoutes(app.Mux)
	return nil
}

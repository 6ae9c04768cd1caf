// cmd/order-service/main.go
package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"shopflow/internal/pkg/bootstrap"
	"shopflow/internal/pkg/event"
	"shopflow/internal/pkg/httpclient"
	"shopflow/internal/service/order/application"
	"shopflow/internal/service/order/infrastructure"
	"shopflow/internal/service/order/infrastructure/adapter"
	"shopflow/internal/service/order/infrastructure/rule"
	"shopflow/internal/service/order/interfaces"
)

const serviceName = "order-service"

// main 是订单服务的组装根
func main() {
	cfg, err := bootstrap.LoadConfig("configs/order-service.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := bootstrap.StartService(bootstrap.AppInfo{Config: cfg, Setup: setup}); err != nil {
		log.Fatal().Err(err).Msg("order-service exited")
	}
}

func setup(ctx context.Context, app *bootstrap.AppCtx) error {
	cfg := app.Config

	db, err := app.OpenMySQL()
	if err != nil {
		return err
	}
	repo := infrastructure.NewMysqlRepository(db)
	if cfg.Infra.MySQL.AutoMigrate {
		if err := repo.AutoMigrate(); err != nil {
			return errors.Wrap(err, "auto migrate")
		}
	}

	policy, err := rule.NewCELCancellationPolicy(cfg.Order.CancellationPolicy)
	if err != nil {
		return err
	}

	client := httpclient.NewClient(otel.Tracer(serviceName))
	client.HTTPClient.Timeout = cfg.Order.RequestTimeout

	svc := application.NewOrderApplicationService(
		repo,
		adapter.NewCartHTTPAdapter(client, app.Resolver, cfg.Order.Cart.Service),
		adapter.NewProductHTTPAdapter(client, app.Resolver, cfg.Order.Product.Service),
		adapter.NewInventoryHTTPAdapter(client, app.Resolver, cfg.Order.Inventory.Service),
		policy,
	)

	writer := app.KafkaWriter()
	app.RunOutboxRelay(db, writer)
	app.Consume("inventory-events", event.TopicInventory, interfaces.NewInventoryEventHandler().Handle, writer)
	app.Consume("dead-letters", cfg.Infra.Kafka.DLTTopic, interfaces.NewDeadLetterHandler().Handle, writer)

	interfaces.NewOrderHandler(svc).RegisterRoutes(app.Mux)
	return nil
}

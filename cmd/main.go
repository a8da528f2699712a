package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	_ "github.com/velumlabs/fulfillment/docs"
	"github.com/velumlabs/fulfillment/internal/app"
	"github.com/velumlabs/fulfillment/internal/config"
	"github.com/velumlabs/fulfillment/internal/entities"
	"github.com/velumlabs/fulfillment/internal/handler"
	"github.com/velumlabs/fulfillment/internal/messaging"
	"github.com/velumlabs/fulfillment/internal/postgres"
	"github.com/velumlabs/fulfillment/internal/repo"
	"github.com/velumlabs/fulfillment/internal/service"
	"github.com/velumlabs/fulfillment/internal/shipping"
	"github.com/velumlabs/fulfillment/internal/tenant"
	"github.com/velumlabs/fulfillment/pkg/cache"
	"github.com/velumlabs/fulfillment/pkg/trm"
)

// @title           Order Fulfillment API
// @version         1.0
// @description     Order lifecycle, inventory ledger and event pipeline
func main() {
	conf := config.New()
	logger := newLogger(conf.Env)
	panicIfErr("invalid config", conf.Validate())

	db, err := postgres.New(conf.Postgres)
	panicIfErr("failed to connect to db", err)
	defer db.Close()
	logger.Info("postgres connected")

	store := repo.NewPostgresRepo(db)
	txManager := trm.NewManager(db)
	orderCache := cache.NewLRUCache(conf.Cache.Capacity, conf.Cache.TTL)
	tenants := tenant.ContextResolver{}
	calculator := shipping.NewTableCalculator(conf.Fulfillment.SameDayZIPPrefix)

	orderService := service.NewOrderService(logger, txManager, store, orderCache, tenants, calculator)
	stockService := service.NewStockService(logger, txManager, store, store, tenants, conf.Fulfillment.DefaultWarehouse)

	relay := messaging.NewRelay(logger, conf.Outbox, store, messaging.NewPublisher(conf.Kafka))

	consumers := []app.Consumer{
		relay,
		messaging.NewConsumer(logger, conf.Kafka, entities.EventOrderCreated, store, stockService.HandleOrderCreated),
		messaging.NewConsumer(logger, conf.Kafka, entities.EventOrderStatusChanged, store, stockService.HandleOrderStatusChanged),
		messaging.NewConsumer(logger, conf.Kafka, entities.EventOrderCancelled, store, stockService.HandleOrderCancelled),
	}

	httpHandler := handler.NewHTTPHandler(logger, orderService, stockService)

	application := app.New(logger, conf)
	application.SetHTTPHandlers(httpHandler)
	application.SetConsumers(consumers...)
	application.SetStarters(cacheWarmUpAdapter{svc: orderService, count: conf.Cache.Capacity})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	orderCache.StartJanitor(ctx)

	panicIfErr("failed to start app", application.Start(ctx))
	<-ctx.Done()
	panicIfErr("failed to stop app", application.Stop())
}

func init() {
	godotenv.Load()
}

func newLogger(env string) *slog.Logger {
	switch env {
	case "production":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

func panicIfErr(prefix string, err error) {
	if err != nil {
		panic(prefix + ": " + err.Error())
	}
}

type warmUpper interface {
	WarmUpCache(ctx context.Context, count int) error
}

type cacheWarmUpAdapter struct {
	svc   warmUpper
	count int
}

func (a cacheWarmUpAdapter) Start(ctx context.Context) error {
	return a.svc.WarmUpCache(ctx, a.count)
}

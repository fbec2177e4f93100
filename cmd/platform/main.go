// cmd/platform/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/libranexus/platform/internal/admin"
	"github.com/libranexus/platform/internal/catalog"
	"github.com/libranexus/platform/internal/reservation"
	"github.com/libranexus/platform/internal/saga"
	"github.com/libranexus/platform/internal/wallet"
	"github.com/libranexus/platform/pkg/config"
	"github.com/libranexus/platform/pkg/eventbus"
	"github.com/libranexus/platform/pkg/eventmodel"
	"github.com/libranexus/platform/pkg/eventstore"
	"github.com/libranexus/platform/pkg/observability"
	"github.com/libranexus/platform/pkg/projection"
)

// main composes every bounded context onto a single shared event bus:
// the Books/Reservations/Wallets command surfaces, their projections,
// and the reservation-payment saga's orchestrator and timeout
// watchdog. Since pkg/eventbus is purely in-process (no broker or
// transport sits behind it), anything that needs to observe another
// context's events has to live in this one process — unlike a
// catalog/circulation/membership split across separate HTTP services,
// which could run independently because they only ever talked to each
// other over HTTP.
func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.EventStoreConnString))
	if err != nil {
		logger.Fatal("connect to mongo", zap.Error(err))
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.EventStoreDB)

	providers, err := observability.Setup(ctx, observability.Config{
		ServiceName: "libranexus-platform",
		Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		Insecure:    true,
	})
	if err != nil {
		logger.Fatal("setup observability", zap.Error(err))
	}
	defer providers.Shutdown(context.Background())

	registry := eventmodel.NewRegistry()
	catalog.RegisterEvents(registry)
	reservation.RegisterEvents(registry)
	wallet.RegisterEvents(registry)

	store := eventstore.NewMongoStore(db.Collection("event_store"), db.Collection("counters"))
	if err := store.EnsureIndexes(ctx); err != nil {
		logger.Fatal("ensure event store indexes", zap.Error(err))
	}

	deadLetter := eventbus.NewMongoDeadLetterSink(db.Collection("dead_letters"), logger)
	bus := eventbus.New(deadLetter, 256, nil)

	booksRepo := projection.NewRepository(db.Collection("books_projection"))
	booksProjector := catalog.NewProjector(booksRepo)
	if err := booksProjector.EnsureIndexes(ctx); err != nil {
		logger.Fatal("ensure books_projection indexes", zap.Error(err))
	}
	booksProjector.Subscribe(bus)

	validation := catalog.NewValidationResponder(booksRepo, bus)
	validation.Subscribe()

	reservationsRepo := projection.NewRepository(db.Collection("reservations_projection"))
	reservationsProjector := reservation.NewProjector(reservationsRepo)
	if err := reservationsProjector.EnsureIndexes(ctx); err != nil {
		logger.Fatal("ensure reservations_projection indexes", zap.Error(err))
	}
	reservationsProjector.Subscribe(bus)

	walletsRepo := projection.NewRepository(db.Collection("wallets_projection"))
	walletsProjector := wallet.NewProjector(walletsRepo)
	if err := walletsProjector.EnsureIndexes(ctx); err != nil {
		logger.Fatal("ensure wallets_projection indexes", zap.Error(err))
	}
	walletsProjector.Subscribe(bus)

	payment := wallet.NewPaymentResponder(store, bus)
	payment.Subscribe()

	sagaStore := saga.NewStore(db.Collection("reservation_payment_sagas"))
	if err := sagaStore.EnsureIndexes(ctx); err != nil {
		logger.Fatal("ensure saga indexes", zap.Error(err))
	}

	catalogCommands := catalog.NewCommands(store, bus)
	catalogQueries := catalog.NewQueries(booksRepo, cfg)
	catalogHandler := catalog.NewHandler(catalogCommands, catalogQueries)

	reservationCommands := reservation.NewCommands(store, bus, store, cfg.LateFeePerDay)
	reservationQueries := reservation.NewQueries(reservationsRepo, cfg)
	reservationHandler := reservation.NewHandler(reservationCommands, reservationQueries)

	walletCommands := wallet.NewCommands(store, bus)
	walletQueries := wallet.NewQueries(walletsRepo)
	walletHandler := wallet.NewHandler(walletCommands, walletQueries)

	orchestrator := saga.NewOrchestrator(sagaStore, bus, reservationCommands)
	orchestrator.Subscribe()

	watchdog := saga.NewWatchdog(sagaStore, bus, reservationCommands, cfg.SagaStepTimeout, cfg.SagaMaxRetries)
	watchdogCtx, stopWatchdog := context.WithCancel(context.Background())
	defer stopWatchdog()
	go watchdog.Run(watchdogCtx, cfg.SagaStepTimeout/2)

	adminHandler := admin.NewHandler(store, registry)

	r := chi.NewRouter()
	catalogHandler.Routes(r)
	reservationHandler.Routes(r)
	walletHandler.Routes(r)
	adminHandler.Routes(r)

	port := getEnv("PORT", "8080")
	logger.Info("starting libranexus platform",
		zap.String("port", port),
		zap.Duration("saga_step_timeout", cfg.SagaStepTimeout),
		zap.Int("saga_max_retries", cfg.SagaMaxRetries),
	)
	fmt.Printf("libranexus platform listening on :%s\n", port)
	logger.Fatal("http server exited", zap.Error(http.ListenAndServe(":"+port, r)))
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

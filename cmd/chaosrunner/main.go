// cmd/chaosrunner/main.go
package main

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/libranexus/platform/internal/chaos"
	"github.com/libranexus/platform/internal/reservation"
	"github.com/libranexus/platform/internal/saga"
	"github.com/libranexus/platform/pkg/config"
	"github.com/libranexus/platform/pkg/eventbus"
	"github.com/libranexus/platform/pkg/eventstore"
)

// chaosrunner exercises the saga/event-bus resilience experiments of
// internal/chaos against a disposable store/bus pair pointed at the
// same Mongo deployment the platform binary uses; it is a diagnostic
// tool run on demand, not part of the live request path.
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

	store := eventstore.NewMongoStore(db.Collection("event_store"), db.Collection("counters"))
	bus := eventbus.New(nil, 256, nil)

	sagaStore := saga.NewStore(db.Collection("reservation_payment_sagas_chaos"))
	if err := sagaStore.EnsureIndexes(ctx); err != nil {
		logger.Fatal("ensure chaos saga indexes", zap.Error(err))
	}

	reservationCommands := reservation.NewCommands(store, bus, store, cfg.LateFeePerDay)

	engine := chaos.NewEngine()
	chaos.RegisterLibraNexusExperiments(engine, sagaStore, bus, reservationCommands)

	for _, exp := range engine.GetExperiments() {
		fmt.Printf("running %s: %s\n", exp.Name, exp.Hypothesis)
		result, err := engine.RunExperiment(ctx, exp)
		if err != nil {
			logger.Error("experiment aborted", zap.String("experiment", exp.Name), zap.Error(err))
			continue
		}
		logger.Info("experiment finished",
			zap.String("experiment", exp.Name),
			zap.Bool("hypothesis_held", result.HypothesisHeld),
			zap.Int("violations", len(result.Violations)),
			zap.Duration("duration", result.Duration),
		)
	}
}

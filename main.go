package main

import (
	"context"
	"log"
	"time"

	"cinema-ticketing/cmd"
	"cinema-ticketing/internal/data/repository"
	"cinema-ticketing/internal/processor"
	"cinema-ticketing/internal/publisher"
	"cinema-ticketing/internal/wire"
	"cinema-ticketing/internal/worker"
	"cinema-ticketing/pkg/database"
	"cinema-ticketing/pkg/telemetry"
	"cinema-ticketing/pkg/utils"

	"go.uber.org/zap"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
		zap.String("payment_provider", config.Payment.Provider),
	)

	ctx := context.Background()

	shutdownTracing, err := telemetry.Init(ctx, config.Telemetry)
	if err != nil {
		logger.Fatal("Failed to init tracing", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	// Storage
	var store repository.Store
	if config.Database.Driver == "memory" {
		logger.Warn("Using in-memory store, data is lost on restart")
		store = repository.NewMemoryStore()
	} else {
		db, err := database.InitDB(config.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if config.Database.AutoMigrate {
			if err := database.Migrate(ctx, db); err != nil {
				logger.Fatal("Failed to migrate database", zap.Error(err))
			}
			logger.Info("Database schema applied")
		}

		logger.Info("Database connected successfully")
		store = repository.NewStore(db, logger)
	}

	deps := wire.Dependencies{
		Store:  store,
		Config: config,
		Logger: logger,
	}

	if config.Redis.Enabled {
		rdb, err := database.InitRedis(config.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		deps.Redis = rdb
		logger.Info("Redis connected, idempotency keys enabled")
	}

	deps.Publisher = publisher.NewNoop()
	if config.Kafka.Enabled {
		pub, err := publisher.NewKafka(config.Kafka, logger)
		if err != nil {
			logger.Fatal("Failed to create kafka publisher", zap.Error(err))
		}
		deps.Publisher = pub
		logger.Info("Kafka publisher enabled", zap.String("topic", config.Kafka.Topic))
	}
	defer deps.Publisher.Close()

	deps.Processor, err = processor.New(config.Payment, logger)
	if err != nil {
		logger.Fatal("Failed to create payment processor", zap.Error(err))
	}

	// Wire all dependencies
	app := wire.Wiring(deps)

	if config.Reaper.Enabled {
		reaper := worker.NewPendingReaper(app.Service.Payment, config.Reaper, logger)
		if err := reaper.Start(ctx); err != nil {
			logger.Fatal("Failed to start pending reaper", zap.Error(err))
		}
		defer reaper.Stop()
	}

	// Start server
	logger.Info("Starting HTTP server", zap.String("port", config.App.Port))

	if err := cmd.APIServer(app.Router, config.App.Port, config.App.ShutdownTimeout, logger); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return
	}
	logger.Info("Server stopped")
}

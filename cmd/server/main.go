package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/stockfolio/portfolio-tracker/internal/api"
	"github.com/stockfolio/portfolio-tracker/internal/auth"
	"github.com/stockfolio/portfolio-tracker/internal/config"
	"github.com/stockfolio/portfolio-tracker/internal/database"
	"github.com/stockfolio/portfolio-tracker/internal/kafka"
	"github.com/stockfolio/portfolio-tracker/internal/ledger"
	"github.com/stockfolio/portfolio-tracker/internal/marketdata"
	"github.com/stockfolio/portfolio-tracker/internal/portfolio"
	"github.com/stockfolio/portfolio-tracker/internal/prices"
	"github.com/stockfolio/portfolio-tracker/pkg/logger"
)

const migrationsPath = "db/migrations"

func main() {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg := config.Load()

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting portfolio tracker")

	if cfg.Auth.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET must be set")
	}

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(migrationsPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	yahoo := marketdata.NewClient(log)
	provider := marketdata.NewCachedClient(yahoo, rdb, cfg.Market.QuoteCacheTTL, log)

	refresher := prices.NewRefresher(db, provider, cfg.Market.StaleAfter, log)
	ledgerService := ledger.NewService(log)
	aggregator := portfolio.NewAggregator(db, refresher, log)
	authService := auth.NewService(db, rdb, cfg.Auth, log)

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventTopic)
	defer producer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := kafka.NewConsumer(
		cfg.Kafka.Brokers,
		cfg.Kafka.TradeTopic,
		cfg.Kafka.ConsumerGroup,
		db,
		ledgerService,
		refresher,
		log,
	)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("Trade consumer stopped")
		}
	}()

	handler := api.NewHandler(db, authService, ledgerService, refresher, aggregator, producer, log)
	router := api.SetupRoutes(handler)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}

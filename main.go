package main

//go:generate go tool swag init --outputTypes json,yaml --output api_specs

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"auctiongate/internal/authz"
	"auctiongate/internal/clock"
	"auctiongate/internal/config"
	"auctiongate/internal/database/auctionstore"
	"auctiongate/internal/database/db_client"
	"auctiongate/internal/database/schema"
	"auctiongate/internal/events"
	"auctiongate/internal/http/http_server"
	"auctiongate/internal/redis/auctiontimer"
	"auctiongate/internal/redis/redis_client"
	"auctiongate/internal/redis/statscache"
	"auctiongate/internal/redis/watcher/auctionwatcher"
	"auctiongate/internal/scheduler"
	"auctiongate/internal/services/auction"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

var (
	Log, _ = zap.NewDevelopment()
)

// @title						Auction approval API
// @version					1.0
// @description				Moderation, admin review and lifecycle of auctions.
// @BasePath					/
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization
func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully",
		zap.String("redis_host", cfg.RedisHost),
		zap.String("postgres_host", cfg.PostgresHost),
		zap.Uint16("http_port", cfg.HttpServerPort))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis
	redisClient, err := redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort), cfg.RedisPassword, cfg.RedisDb)
	if err != nil {
		Log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()

	// 4. Postgres
	pgDb, err := db_client.Open(ctx, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()

	if cfg.ApplySchema {
		if err := schema.Apply(ctx, pgDb); err != nil {
			Log.Fatal("pg-schema", zap.Error(err))
		}
	}

	// 5. Event fan-out: Redis always, NATS when configured
	publishers := events.Multi{events.NewRedisPublisher(redisClient)}
	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL, nats.Name("auctiongate"))
		if err != nil {
			Log.Fatal("nats-connect", zap.Error(err))
		}
		defer nc.Drain()
		publishers = append(publishers, events.NewNatsPublisher(nc))
	}

	// 6. Services
	clk := clock.NewSystem()
	store := auctionstore.New(pgDb)
	auctionService := auction.NewAuctionService(
		store,
		auctiontimer.New(redisClient),
		statscache.New(redisClient, cfg.StatsCacheTTL),
		publishers,
		clk,
	)

	// 7. Background: key-expiry watcher and the periodic sweep backing it up
	go auctionwatcher.Run(ctx, redisClient, auctionService, cfg.TimerKeyspaceEvents)

	sweeper := scheduler.NewSweeper(store, auctionService, redisClient, clk, cfg.SweepBatch)
	if _, err := scheduler.Start(ctx, cfg.SweepSchedule, sweeper); err != nil {
		Log.Fatal("sweep-schedule", zap.Error(err))
	}

	// 8. HTTP server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, auctionService, authz.NewVerifier(cfg.JwtSecret))
	go func() {
		<-ctx.Done()
		_ = httpServer.Dispose()
	}()
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/yourorg/chat-backend/internal/auth"
	"github.com/yourorg/chat-backend/internal/cache"
	cfgpkg "github.com/yourorg/chat-backend/internal/config"
	"github.com/yourorg/chat-backend/internal/httpapi"
	"github.com/yourorg/chat-backend/internal/kafka"
	"github.com/yourorg/chat-backend/internal/logger"
	"github.com/yourorg/chat-backend/internal/metrics"
	"github.com/yourorg/chat-backend/internal/repository"
	"github.com/yourorg/chat-backend/internal/service"
	"github.com/yourorg/chat-backend/internal/ws"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg, err := cfgpkg.Load("config.yaml")
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zlog, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx := context.Background()

	mc, err := repository.NewMongoClient(ctx, cfg)
	if err != nil {
		zlog.Fatalw("mongo init", "err", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()

	db := mc.Database(cfg.Mongo.Database)
	if err := repository.EnsureIndexes(ctx, db, cfg); err != nil {
		zlog.Fatalw("mongo indexes", "err", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	{
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			zlog.Fatalw("redis ping", "err", err)
		}
		cancel()
	}

	convs := repository.NewConversationRepository(db.Collection(cfg.Mongo.ConversationsCollection))
	msgs := repository.NewMessageRepository(db.Collection(cfg.Mongo.MessagesCollection))
	users := repository.NewUserRepository(db.Collection(cfg.Mongo.UsersCollection))

	cacheStore := cache.NewStore(cache.NewRedisKV(rdb), cfg.CacheTTL(), zlog)
	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicMessageSent)
	defer func() { _ = producer.Close() }()

	chatSvc := service.NewChatService(convs, msgs, users, cacheStore, producer, zlog)

	verifier := auth.NewHMAC(cfg.App.JWTSecret)
	hub := ws.NewHub()
	gateway := ws.NewGateway(hub, chatSvc, verifier, cfg.RequestTimeout, zlog)

	var limiter *httpapi.RateLimiter
	if cfg.App.RateLimitPerMin > 0 {
		limiter = httpapi.NewRateLimiter(rdb, "rl:api", cfg.App.RateLimitPerMin, time.Minute, zlog)
	}

	handler := httpapi.NewChatHandler(chatSvc, hub, zlog)
	app := httpapi.NewApp(handler, gateway, verifier, limiter)

	if cfg.App.MetricsPort > 0 {
		metrics.Init()
		go func() {
			addr := fmt.Sprintf(":%d", cfg.App.MetricsPort)
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(addr, mux); err != nil {
				zlog.Errorw("metrics listener", "err", err)
			}
		}()
	}

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.App.Port)); err != nil {
			zlog.Fatalw("server listen", "err", err)
		}
	}()
	zlog.Infow("chat server started", "port", cfg.App.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(shutdownCtx)
	zlog.Infow("chat server stopped")
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RicardoMLopes/wsh/common/database"
	"github.com/RicardoMLopes/wsh/common/logger"
	"github.com/RicardoMLopes/wsh/common/mqtt"
	commonredis "github.com/RicardoMLopes/wsh/common/redis"
	"github.com/RicardoMLopes/wsh/internal/config"
	"github.com/RicardoMLopes/wsh/internal/events"
	httpapi "github.com/RicardoMLopes/wsh/internal/http"
	"github.com/RicardoMLopes/wsh/internal/repository"
	"github.com/RicardoMLopes/wsh/internal/service"
	"github.com/RicardoMLopes/wsh/internal/store"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wsh-putaway")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	dialect, err := repository.DialectFor(cfg.Database.Driver)
	if err != nil {
		log.Fatal("Invalid database driver", zap.Error(err))
	}
	db, err := database.Open(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to open database", zap.String("driver", dialect.Name), zap.Error(err))
	}
	if cfg.AutoMigrate {
		if err := repository.Migrate(context.Background(), db, dialect); err != nil {
			log.Fatal("Failed to migrate", zap.Error(err))
		}
		log.Info("Schema applied", zap.String("driver", dialect.Name))
	}

	lockTimeout := time.Duration(cfg.Database.LockTimeoutMS) * time.Millisecond
	repo := repository.NewPutawayRepository(db, dialect, lockTimeout, log)

	opts := service.Options{AcquireAttempts: cfg.Putaway.AcquireAttempts}
	var publishers events.MultiPublisher

	var redisClient *commonredis.Client
	if cfg.RedisEnabled {
		redisClient, err = commonredis.Connect(context.Background(), &cfg.Redis)
		if err != nil {
			log.Warn("Redis enabled but unreachable, continuing without cache and stream", zap.Error(err))
		} else {
			opts.Cache = store.NewAggregateCache(store.NewRedisKV(redisClient), cfg.Putaway.CachePrefix, cfg.Putaway.CacheTTL)
			publishers = append(publishers, events.NewRedisStreamPublisher(redisClient, cfg.Putaway.EventStream))
			log.Info("Redis enabled", zap.String("addr", cfg.Redis.Addr), zap.String("stream", cfg.Putaway.EventStream))
		}
	}

	var mqttClient *mqtt.Client
	if cfg.MQTTEnabled {
		mqttClient, err = mqtt.NewClient(&cfg.MQTT)
		if err != nil {
			log.Warn("MQTT enabled but connection failed, continuing without it", zap.Error(err))
		} else {
			publishers = append(publishers, events.NewMQTTPublisher(mqttClient, cfg.MQTTTopicPrefix, mqttClient.QoS()))
			log.Info("MQTT enabled", zap.String("broker", cfg.MQTT.Broker), zap.String("topic_prefix", cfg.MQTTTopicPrefix))
		}
	}
	if len(publishers) > 0 {
		opts.Publisher = publishers
	}

	svc := service.NewPutawayService(repo, opts, log)

	router := httpapi.NewRouter(log)
	router.RegisterHealthRoutes()
	router.RegisterPutawayRoutes(httpapi.NewPutawayHandler(svc, log))

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case err := <-errCh:
		log.Error("HTTP server stopped", zap.Error(err))
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if mqttClient != nil {
		mqttClient.Disconnect()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	_ = database.Close(db)
}

// The worker binary runs the change-feed consumer without the admin API, for
// deployments that scale event processing separately from the control plane.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/kmcoleman/bajarun-notify/internal/config"
	"github.com/kmcoleman/bajarun-notify/internal/notify"
	"github.com/kmcoleman/bajarun-notify/internal/pkg/logger"
	"github.com/kmcoleman/bajarun-notify/internal/queue"
	"github.com/kmcoleman/bajarun-notify/internal/render"
	"github.com/kmcoleman/bajarun-notify/internal/ses"
	"github.com/kmcoleman/bajarun-notify/internal/store"
	"github.com/kmcoleman/bajarun-notify/internal/store/cache"
	"github.com/kmcoleman/bajarun-notify/internal/store/dynamo"
	"github.com/kmcoleman/bajarun-notify/internal/store/memory"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	if cfg.Log.RedactPII != nil {
		logger.SetRedactPII(*cfg.Log.RedactPII)
	}

	if !cfg.Queue.Enabled || cfg.Queue.URL == "" {
		log.Fatal("worker requires a change-feed queue URL (queue.url or CHANGE_FEED_QUEUE_URL)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var st store.Store
	switch cfg.Storage.Type {
	case "aws":
		dyn, err := dynamo.New(ctx, cfg.Storage.DynamoDBTable, cfg.Storage.AWSRegion, cfg.Storage.GetAWSProfile())
		if err != nil {
			log.Fatalf("Failed to connect to DynamoDB: %v", err)
		}
		st = dyn
	default:
		st = memory.New()
		logger.Warn("worker running against in-memory storage, triggers must be seeded in-process")
	}

	var templates store.TemplateStore = st
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, template cache disabled", "error", err.Error())
		} else {
			templates = cache.New(st, rdb, cfg.Redis.TTL())
		}
	}

	var deliverer notify.Deliverer
	if cfg.SES.FromAddress != "" {
		sesClient, err := ses.NewClient(ctx, cfg.SES)
		if err != nil {
			log.Fatalf("Failed to initialize SES client: %v", err)
		}
		deliverer = sesClient
	} else {
		deliverer = ses.DryRun{}
		logger.Warn("no sender address configured, deliveries are dry-run only")
	}

	layout, err := render.NewLayout("")
	if err != nil {
		log.Fatalf("Failed to parse layout: %v", err)
	}

	dispatcher := notify.NewDispatcher(templates, st, deliverer, layout)
	processor := notify.NewEventProcessor(st, dispatcher)

	consumer, err := queue.NewConsumer(ctx, cfg.Queue.URL, cfg.Queue.AWSRegion, cfg.Queue.AWSProfile, processor.HandleEvent)
	if err != nil {
		log.Fatalf("Failed to initialize change-feed consumer: %v", err)
	}
	consumer.Start(ctx)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-done
	logger.Info("worker shutting down")
	consumer.Stop()
	cancel()
	logger.Info("worker stopped")
}

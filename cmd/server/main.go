package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kmcoleman/bajarun-notify/internal/api"
	"github.com/kmcoleman/bajarun-notify/internal/archive"
	"github.com/kmcoleman/bajarun-notify/internal/auth"
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

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check failed: %v", err)
	}

	// Storage backend
	var st store.Store
	switch cfg.Storage.Type {
	case "aws":
		dyn, err := dynamo.New(ctx, cfg.Storage.DynamoDBTable, cfg.Storage.AWSRegion, cfg.Storage.GetAWSProfile())
		if err != nil {
			log.Fatalf("Failed to connect to DynamoDB: %v", err)
		}
		st = dyn
		logger.Info("storage initialized", "type", "dynamodb", "table", cfg.Storage.DynamoDBTable)
	default:
		st = memory.New()
		logger.Info("storage initialized", "type", "memory")
	}

	// Template read path, optionally cached through Redis
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
			logger.Info("template cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL().String())
		}
	}

	// Delivery service
	var deliverer notify.Deliverer
	if cfg.SES.FromAddress != "" {
		sesClient, err := ses.NewClient(ctx, cfg.SES)
		if err != nil {
			log.Fatalf("Failed to initialize SES client: %v", err)
		}
		deliverer = sesClient
		logger.Info("delivery initialized", "provider", "ses", "from", cfg.SES.FromAddress)
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

	// Admin policy and auth
	var authManager *auth.Manager
	var policy notify.AdminPolicy = notify.AdminList(cfg.Auth.AdminEmails)
	switch {
	case cfg.Auth.Enabled:
		baseURL := os.Getenv("BASE_URL")
		if baseURL == "" {
			baseURL = fmt.Sprintf("http://%s:%d", host, cfg.Server.Port)
		}
		authManager = auth.NewManager(&cfg.Auth, baseURL)
		authManager.CleanupExpiredSessions()
		policy = authManager
	case len(cfg.Auth.AdminEmails) == 0:
		// Local mode with no allowlist: accept the fallback identity.
		policy = notify.AdminList{"local-admin"}
	}

	svc := notify.NewService(dispatcher, templates, policy)

	// Outcome log archiving
	var exporter *archive.Exporter
	if cfg.Archive.Enabled {
		exporter, err = archive.New(ctx, cfg.Archive)
		if err != nil {
			log.Fatalf("Failed to initialize archive exporter: %v", err)
		}
	}

	identity := func(r *http.Request) string {
		if authManager != nil {
			return authManager.Identity(r)
		}
		if email := r.Header.Get("X-User-Email"); email != "" {
			return email
		}
		return "local-admin"
	}

	handlers := api.NewHandlers(st, templates, svc, processor, exporter, identity)

	var server *api.Server
	if authManager != nil {
		server = api.NewServerWithAuth(cfg.Server, handlers, authManager)
	} else {
		server = api.NewServer(cfg.Server, handlers)
	}

	// Change feed
	var consumer *queue.Consumer
	if cfg.Queue.Enabled {
		consumer, err = queue.NewConsumer(ctx, cfg.Queue.URL, cfg.Queue.AWSRegion, cfg.Queue.AWSProfile, processor.HandleEvent)
		if err != nil {
			log.Fatalf("Failed to initialize change-feed consumer: %v", err)
		}
		consumer.Start(ctx)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", host, cfg.Server.Port)
		logger.Info("server starting", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	logger.Info("shutting down")

	if consumer != nil {
		consumer.Stop()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err.Error())
	}

	logger.Info("server stopped")
}

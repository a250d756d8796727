package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/config"
	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/handler"
	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/push"
	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/repository"
	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/server"
	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/service"
	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/telephony"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// @title           Cloudonix Registration-Free Bridge
// @version         1.0
// @description     Maps mobile push tokens to phone numbers and wakes devices for incoming Cloudonix calls.

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @BasePath  /

func main() {
	// ==================== Load Config ====================
	cfg := config.Load()
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("❌ Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("🚀 Starting registration-free bridge", "env", cfg.App.Env, "store", cfg.Store.Driver)

	ctx := context.Background()

	// ==================== Device Store ====================
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("❌ Failed to open device store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// ==================== Push (Firebase) ====================
	var sender push.Sender
	fcm, err := push.NewFCMSender(ctx, cfg.Firebase, logger)
	if err != nil {
		logger.Warn("⚠️  Firebase not available, push notifications disabled", "error", err)
	}
	if fcm != nil {
		sender = fcm
		logger.Info("✅ Firebase messaging initialized", "project", cfg.Firebase.ProjectID)
	}

	// ==================== Cloudonix API ====================
	dialer := telephony.NewClient(cfg.Telephony, logger)
	if cfg.Telephony.APIKey == "" || cfg.Telephony.Domain == "" {
		logger.Warn("⚠️  Cloudonix API key or domain not set, /dial will fail")
	}

	// ==================== Initialize Layers ====================
	deviceService := service.NewDeviceService(store, logger)
	notificationService := service.NewNotificationService(deviceService, sender,
		push.DeliveryOptions{Priority: cfg.Push.Priority, TTL: cfg.Push.TTL},
		cfg.Push.Timeout, logger)
	callService := service.NewCallService(dialer, cfg.Telephony.Domain, logger)

	deviceHandler := handler.NewDeviceHandler(deviceService, logger)
	callHandler := handler.NewCallHandler(notificationService, callService, logger)

	// ==================== Gin Router ====================
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := server.NewRouter(server.Handlers{
		Devices: deviceHandler,
		Calls:   callHandler,
	}, server.Options{
		CORSOrigins: cfg.CORS.Origins,
		SwaggerFile: "./docs/swagger.json",
		Logger:      logger,
	})

	// ==================== Start Server ====================
	srv := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("❌ Server failed", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("🌐 Listening", "addr", "http://0.0.0.0:"+cfg.App.Port)
	logger.Info("📋 API docs", "url", "http://0.0.0.0:"+cfg.App.Port+"/swagger/index.html")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("❌ Server forced to shutdown", "error", err)
	}
	notificationService.Wait()

	logger.Info("👋 Server exited gracefully")
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// openStore builds the configured DeviceStore and a func releasing its
// connections.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.DeviceStore, func(), error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		gormLog := gormlogger.Default.LogMode(gormlogger.Info)
		if cfg.IsProduction() {
			gormLog = gormlogger.Default.LogMode(gormlogger.Warn)
		}
		db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{Logger: gormLog})
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewGormDeviceRepository(db, logger)
		if err := repo.Migrate(); err != nil {
			return nil, nil, err
		}
		logger.Info("✅ Connected to PostgreSQL", "host", cfg.DB.Host, "db", cfg.DB.Name)
		return repo, func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}, nil

	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		logger.Info("✅ Connected to Redis", "addr", cfg.Redis.Addr(), "prefix", cfg.Redis.Prefix)
		return repository.NewRedisDeviceRepository(rdb, cfg.Redis.Prefix, logger), func() { _ = rdb.Close() }, nil
	}

	logger.Warn("📦 Using in-memory device store, registrations are lost on restart")
	return repository.NewMemoryDeviceRepository(logger), func() {}, nil
}

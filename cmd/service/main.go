package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kiosk-service/config"
	_ "kiosk-service/docs"
	"kiosk-service/internal/cache"
	"kiosk-service/internal/handlers"
	"kiosk-service/internal/producer"
	"kiosk-service/internal/repository"
	"kiosk-service/internal/router"
	"kiosk-service/internal/service"
	"kiosk-service/internal/storage"
	"kiosk-service/pkg/database"
	"kiosk-service/pkg/logger"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// @Title Kiosk API
// @Version 1.0
// @Description API киосков самообслуживания: каталог, наличие товаров и оплата через kakaopay/tosspay
// @BasePath /
func main() {
	_ = godotenv.Load()
	isDev := os.Getenv("ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}

	defer logger.Sync()

	log := logger.L()

	cfg := config.Load(log)
	db := database.ConnectDB(&cfg.DB.Config, log)
	defer database.CloseDB(db, log)

	ctx := context.Background()
	repos := repository.New(db)

	ids := service.NewAllocator(repos.Counters)
	catalog := service.NewCatalogService(repos.Kiosks, repos.Products, ids, log)
	catalog.SetCASAttempts(cfg.Catalog.CASAttempts)

	if cfg.S3.Enabled {
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		}, log)
		if err != nil {
			log.Fatal("failed to configure s3", zap.Error(err))
		}
		catalog.SetBlobStore(store)
	}

	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		catalog.SetListingCache(cache.NewKioskListing(rdb, time.Duration(cfg.Redis.TTLSeconds)*time.Second))
	}

	// Шина событий опциональна: nil отключает публикацию
	var events service.EventBus
	if cfg.Kafka.Enabled {
		node, err := snowflake.NewNode(cfg.Snowflake.Node)
		if err != nil {
			log.Fatal("invalid snowflake node", zap.Int64("node", cfg.Snowflake.Node), zap.Error(err))
		}
		prod := producer.NewPaymentEventProducer(cfg.Kafka.Brokers, cfg.Kafka.PaymentsTopic, node)
		defer prod.Close()
		events = prod
	}

	if !isDev {
		gin.SetMode(gin.ReleaseMode)
	}

	ledger := service.NewLedgerService(repos.Kiosks, repos.Products, repos.Transactions, service.NewPaymentCodeGenerator(), events, log)

	r := router.Router(router.Handlers{
		Kiosks:   handlers.NewKioskHandler(catalog, log),
		Products: handlers.NewProductHandler(catalog, log),
		Payments: handlers.NewPaymentHandler(ledger, log),
	}, log)

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("Starting Kiosk HTTP server", zap.String("addr", cfg.ListenAddr()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-quit
	log.Info("Shutting down Kiosk HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}
	log.Info("Kiosk HTTP server stopped gracefully")
}

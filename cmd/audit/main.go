package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"kiosk-service/config"
	"kiosk-service/internal/consumer"
	"kiosk-service/internal/repository"
	"kiosk-service/pkg/database"
	"kiosk-service/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	isDev := os.Getenv("ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}

	defer logger.Sync()

	log := logger.L()

	cfg := config.Load(log)

	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) == 0 {
		log.Fatal("kafka is disabled or no brokers configured (KAFKA_ENABLED, KAFKA_BROKERS)")
	}

	db := database.ConnectDB(&cfg.DB.Config, log)
	defer database.CloseDB(db, log)

	repos := repository.New(db)
	cons := consumer.NewKafkaAuditConsumer(cfg.Kafka.Brokers, cfg.Kafka.AuditGroupID, cfg.Kafka.PaymentsTopic, repos.Audits, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("audit consumer started", zap.String("topic", cfg.Kafka.PaymentsTopic), zap.String("group", cfg.Kafka.AuditGroupID))
	if err := cons.Run(ctx); err != nil {
		log.Error("consumer stopped", zap.Error(err))
	}
	if err := cons.Close(); err != nil {
		log.Warn("consumer close failed", zap.Error(err))
	}
	log.Info("audit consumer stopped")
}

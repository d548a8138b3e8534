package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"kiosk-service/internal/models"
	"kiosk-service/internal/producer"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type AuditRepo interface {
	Record(ctx context.Context, a *models.TransactionAudit) (bool, error)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	defaultRetryBase = 500 * time.Millisecond
	defaultRetryMax  = 30 * time.Second
)

// KafkaAuditConsumer переносит события оплат из kafka в transaction_audits.
// Offset коммитится только после записи в базу.
type KafkaAuditConsumer struct {
	reader messageReader
	audits AuditRepo
	log    *zap.Logger

	retryBase time.Duration
	retryMax  time.Duration
}

func NewKafkaAuditConsumer(brokers []string, groupID, topic string, audits AuditRepo, log *zap.Logger) *KafkaAuditConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		Topic:             topic,
		MinBytes:          10e3,
		MaxBytes:          10e6,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	})
	return &KafkaAuditConsumer{
		reader:    r,
		audits:    audits,
		log:       log,
		retryBase: defaultRetryBase,
		retryMax:  defaultRetryMax,
	}
}

func (c *KafkaAuditConsumer) Run(ctx context.Context) error {
	c.log.Info("kafka audit consumer started")
	var delay time.Duration
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			delay = c.nextDelay(delay)
			c.log.Error("fetch message", zap.Duration("retry_in", delay), zap.Error(err))
			if !sleep(ctx, delay) {
				return nil
			}
			continue
		}
		delay = 0

		if !c.recordWithRetry(ctx, m) {
			return nil
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			// сообщение придёт повторно, дубль отсеет Record
			c.log.Error("commit message",
				zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

// recordWithRetry повторяет handle, пока запись не пройдёт. false: ctx отменён.
func (c *KafkaAuditConsumer) recordWithRetry(ctx context.Context, m kafka.Message) bool {
	var delay time.Duration
	for {
		err := c.handle(ctx, m)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		delay = c.nextDelay(delay)
		c.log.Error("audit record failed",
			zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset),
			zap.Duration("retry_in", delay), zap.Error(err))
		if !sleep(ctx, delay) {
			return false
		}
	}
}

func (c *KafkaAuditConsumer) nextDelay(prev time.Duration) time.Duration {
	base, limit := c.retryBase, c.retryMax
	if base <= 0 {
		base = defaultRetryBase
	}
	if limit <= 0 {
		limit = defaultRetryMax
	}
	if prev <= 0 {
		return base
	}
	if next := prev * 2; next < limit {
		return next
	}
	return limit
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// handle пишет одно событие. Невалидные сообщения пропускаются с предупреждением.
func (c *KafkaAuditConsumer) handle(ctx context.Context, m kafka.Message) error {
	var env producer.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		c.log.Warn("unmarshal payment event", zap.ByteString("value", m.Value), zap.Error(err))
		return nil
	}

	txID, err := uuid.Parse(env.TransactionID)
	if err != nil || env.ID == 0 {
		c.log.Warn("invalid payment event", zap.Any("event", env))
		return nil
	}
	switch env.Type {
	case models.AuditPaymentCreated, models.AuditPaymentApproved:
	default:
		c.log.Warn("unknown payment event type", zap.String("type", string(env.Type)))
		return nil
	}

	payload := datatypes.JSON(env.Payload)
	if len(payload) == 0 {
		payload = datatypes.JSON("{}")
	}
	inserted, err := c.audits.Record(ctx, &models.TransactionAudit{
		ID:            env.ID,
		TransactionID: txID,
		Event:         env.Type,
		KioskID:       env.KioskID,
		Payload:       payload,
		OccurredAt:    env.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("record %s for %s: %w", env.Type, env.TransactionID, err)
	}
	if !inserted {
		c.log.Debug("duplicate payment event skipped", zap.String("txid", env.TransactionID), zap.String("type", string(env.Type)))
		return nil
	}
	c.log.Info("payment event recorded", zap.String("txid", env.TransactionID), zap.String("type", string(env.Type)))
	return nil
}

func (c *KafkaAuditConsumer) Close() error { return c.reader.Close() }

package producer

import (
	"context"
	"encoding/json"
	"time"

	"kiosk-service/internal/models"
	"kiosk-service/internal/service"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/kafka-go"
)

// Envelope формат сообщения в топике оплат.
type Envelope struct {
	ID            snowflake.ID      `json:"id"`
	Type          models.AuditEvent `json:"type"`
	TransactionID string            `json:"txid"`
	KioskID       string            `json:"kid"`
	OccurredAt    time.Time         `json:"occurred_at"`
	Payload       json.RawMessage   `json:"payload"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type PaymentEventProducer struct {
	writer messageWriter
	ids    *snowflake.Node
	now    func() time.Time
}

func NewPaymentEventProducer(brokers []string, topic string, node *snowflake.Node) *PaymentEventProducer {
	return &PaymentEventProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		ids: node,
		now: time.Now,
	}
}

func (p *PaymentEventProducer) PublishPaymentCreated(ctx context.Context, e service.PaymentCreatedEvent) error {
	return p.publish(ctx, models.AuditPaymentCreated, e.TransactionID.String(), e.KioskID, e.CreatedAt, e)
}

func (p *PaymentEventProducer) PublishPaymentApproved(ctx context.Context, e service.PaymentApprovedEvent) error {
	return p.publish(ctx, models.AuditPaymentApproved, e.TransactionID.String(), e.KioskID, e.ApprovedAt, e)
}

func (p *PaymentEventProducer) publish(ctx context.Context, typ models.AuditEvent, txid, kid string, at time.Time, payload any) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if at.IsZero() {
		at = p.now().UTC()
	}
	value, err := json.Marshal(Envelope{
		ID:            p.ids.Generate(),
		Type:          typ,
		TransactionID: txid,
		KioskID:       kid,
		OccurredAt:    at,
		Payload:       body,
	})
	if err != nil {
		return err
	}
	// ключ по транзакции: события одной оплаты попадают в одну партицию по порядку
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(txid),
		Value: value,
	})
}

func (p *PaymentEventProducer) Close() error {
	return p.writer.Close()
}

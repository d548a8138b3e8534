package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentCreatedEvent struct {
	TransactionID uuid.UUID       `json:"txid"`
	KioskID       string          `json:"kid"`
	ProductID     string          `json:"pid"`
	AmountGrams   int32           `json:"amount_grams"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	PaymentMethod string          `json:"payment_method"`
	Manager       string          `json:"manager"`
	CreatedAt     time.Time       `json:"created_at"`
}

type PaymentApprovedEvent struct {
	TransactionID uuid.UUID       `json:"txid"`
	KioskID       string          `json:"kid"`
	ProductID     string          `json:"pid"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	ApprovedAt    time.Time       `json:"approved_at"`
}

// EventBus публикует события журнала оплат. Доставка best-effort:
// ошибка логируется и не влияет на ответ клиенту.
type EventBus interface {
	PublishPaymentCreated(ctx context.Context, e PaymentCreatedEvent) error
	PublishPaymentApproved(ctx context.Context, e PaymentApprovedEvent) error
}

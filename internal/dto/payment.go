package dto

import (
	"time"

	"kiosk-service/internal/models"

	"github.com/shopspring/decimal"
)

type PaymentRequest struct {
	KID           string          `json:"kid" binding:"required"`
	PID           string          `json:"pid" binding:"required"`
	AmountGrams   int32           `json:"amount_grams"`
	ExtraBottle   bool            `json:"extra_bottle"`
	ProductPrice  decimal.Decimal `json:"product_price" swaggertype:"number"`
	TotalPrice    decimal.Decimal `json:"total_price" swaggertype:"number"`
	PaymentMethod string          `json:"payment_method"`
	Manager       string          `json:"manager"`
}

type PaymentResponse struct {
	TxID         string `json:"txid"`
	DeepLink     string `json:"deep_link"`
	QRCodeBase64 string `json:"qr_code_base64"`
}

type PaymentApproveRequest struct {
	TxID string `json:"txid" binding:"required"`
}

type TransactionResponse struct {
	TxID          string          `json:"txid"`
	KID           string          `json:"kid"`
	PID           string          `json:"pid"`
	AmountGrams   int32           `json:"amount_grams"`
	ExtraBottle   bool            `json:"extra_bottle"`
	ProductPrice  decimal.Decimal `json:"product_price" swaggertype:"number"`
	TotalPrice    decimal.Decimal `json:"total_price" swaggertype:"number"`
	PaymentMethod string          `json:"payment_method"`
	Manager       string          `json:"manager"`
	Status        string          `json:"status"`
	Completed     bool            `json:"completed"`
	CreatedAt     time.Time       `json:"created_at"`
	ApprovedAt    *time.Time      `json:"approved_at"`
}

func ToTransactionResponse(t *models.Transaction) TransactionResponse {
	return TransactionResponse{
		TxID:          t.ID.String(),
		KID:           t.KioskID,
		PID:           t.ProductID,
		AmountGrams:   t.AmountGrams,
		ExtraBottle:   t.ExtraBottle,
		ProductPrice:  t.ProductPrice,
		TotalPrice:    t.TotalPrice,
		PaymentMethod: string(t.PaymentMethod),
		Manager:       t.Manager,
		Status:        string(t.Status),
		Completed:     t.Completed,
		CreatedAt:     t.CreatedAt,
		ApprovedAt:    t.ApprovedAt,
	}
}

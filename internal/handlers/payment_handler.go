package handlers

import (
	"context"
	"encoding/base64"
	"net/http"

	"kiosk-service/internal/dto"
	"kiosk-service/internal/models"
	"kiosk-service/internal/repository"
	"kiosk-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Ledger interface {
	PreparePayment(ctx context.Context, in service.CreateTransactionInput) (*service.PreparedPayment, error)
	Approve(ctx context.Context, txid string) (*models.Transaction, error)
	GetTransaction(ctx context.Context, txid string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, f repository.TransactionListFilter) ([]models.Transaction, error)
}

type PaymentHandler struct {
	ledger Ledger
	log    *zap.Logger
}

func NewPaymentHandler(ledger Ledger, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{ledger: ledger, log: log}
}

// CreatePayment godoc
// @Summary Создание платежа
// @Description Создаёт транзакцию ONGOING и возвращает диплинк и PNG QR-код в base64
// @Tags payments
// @Accept json
// @Produce json
// @Param payment body dto.PaymentRequest true "Параметры покупки"
// @Success 200 {object} dto.PaymentResponse
// @Failure 400 {object} dto.ValidationErrorResponse "Неверный способ оплаты, менеджер или товар недоступен"
// @Failure 404 {object} dto.NotFoundErrorResponse "Киоск или товар не найден"
// @Failure 409 {object} dto.ConflictErrorResponse "Киоск деактивирован"
// @Failure 503 {object} dto.UnavailableErrorResponse
// @Router /payments [post]
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req dto.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.log, err)
		return
	}

	p, err := h.ledger.PreparePayment(c.Request.Context(), service.CreateTransactionInput{
		KioskID:       req.KID,
		ProductID:     req.PID,
		AmountGrams:   req.AmountGrams,
		ExtraBottle:   req.ExtraBottle,
		ProductPrice:  req.ProductPrice,
		TotalPrice:    req.TotalPrice,
		PaymentMethod: models.PaymentMethod(req.PaymentMethod),
		Manager:       req.Manager,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.PaymentResponse{
		TxID:         p.Transaction.ID.String(),
		DeepLink:     p.Code.URL,
		QRCodeBase64: base64.StdEncoding.EncodeToString(p.Code.PNG),
	})
}

// ApprovePayment godoc
// @Summary Подтверждение оплаты
// @Description Переводит транзакцию в COMPLETED; повторное подтверждение отклоняется
// @Tags payments
// @Accept json
// @Produce json
// @Param approve body dto.PaymentApproveRequest true "txid"
// @Success 200 {object} dto.MessageResponse
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Failure 409 {object} dto.ConflictErrorResponse "Оплата уже подтверждена"
// @Router /payments/approve [post]
func (h *PaymentHandler) ApprovePayment(c *gin.Context) {
	var req dto.PaymentApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.log, err)
		return
	}

	if _, err := h.ledger.Approve(c.Request.Context(), req.TxID); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "success"})
}

// GetTransaction godoc
// @Summary Транзакция по txid
// @Tags payments
// @Produce json
// @Param txid path string true "UUID транзакции"
// @Success 200 {object} dto.TransactionResponse
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Router /payments/transactions/{txid} [get]
func (h *PaymentHandler) GetTransaction(c *gin.Context) {
	t, err := h.ledger.GetTransaction(c.Request.Context(), c.Param("txid"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToTransactionResponse(t))
}

// ListTransactions godoc
// @Summary Журнал транзакций
// @Description Новые первыми
// @Tags payments
// @Produce json
// @Param kiosk_id query string false "Фильтр по киоску"
// @Param limit query int false "Лимит (по умолчанию 50, максимум 500)"
// @Success 200 {array} dto.TransactionResponse
// @Router /payments/transactions [get]
func (h *PaymentHandler) ListTransactions(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	list, err := h.ledger.ListTransactions(c.Request.Context(), repository.TransactionListFilter{
		KioskID: c.Query("kiosk_id"),
		Limit:   limit,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	resp := make([]dto.TransactionResponse, 0, len(list))
	for i := range list {
		resp = append(resp, dto.ToTransactionResponse(&list[i]))
	}
	c.JSON(http.StatusOK, resp)
}

package service

import (
	"context"
	"fmt"
	"time"

	"kiosk-service/internal/models"
	"kiosk-service/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultTransactionsLimit = 50
	maxTransactionsLimit     = 500
)

type CreateTransactionInput struct {
	KioskID       string
	ProductID     string
	AmountGrams   int32
	ExtraBottle   bool
	ProductPrice  decimal.Decimal
	TotalPrice    decimal.Decimal
	PaymentMethod models.PaymentMethod
	Manager       string
}

// PreparedPayment: созданная ONGOING-транзакция и QR для оплаты.
type PreparedPayment struct {
	Transaction *models.Transaction
	Code        *PaymentCode
}

type LedgerService struct {
	kiosks       KioskRepo
	products     ProductRepo
	transactions TransactionRepo
	codes        *PaymentCodeGenerator
	events       EventBus // nil: события не публикуются

	now func() time.Time
	log *zap.Logger
}

func NewLedgerService(kiosks KioskRepo, products ProductRepo, transactions TransactionRepo, codes *PaymentCodeGenerator, events EventBus, log *zap.Logger) *LedgerService {
	return &LedgerService{
		kiosks:       kiosks,
		products:     products,
		transactions: transactions,
		codes:        codes,
		events:       events,
		now:          time.Now,
		log:          log,
	}
}

// CreateTransaction проверяет предусловия и создаёт запись ONGOING.
// При любой ошибке запись не создаётся.
func (s *LedgerService) CreateTransaction(ctx context.Context, in CreateTransactionInput) (*models.Transaction, error) {
	if err := s.checkPreconditions(ctx, in); err != nil {
		return nil, err
	}
	return s.persist(ctx, in)
}

// PreparePayment делает CreateTransaction и строит диплинк и QR для выбранного приложения.
func (s *LedgerService) PreparePayment(ctx context.Context, in CreateTransactionInput) (*PreparedPayment, error) {
	if err := s.checkPreconditions(ctx, in); err != nil {
		return nil, err
	}

	code, err := s.codes.Generate(in.PaymentMethod, in.Manager, in.TotalPrice)
	if err != nil {
		return nil, err
	}

	t, err := s.persist(ctx, in)
	if err != nil {
		return nil, err
	}
	return &PreparedPayment{Transaction: t, Code: code}, nil
}

func (s *LedgerService) checkPreconditions(ctx context.Context, in CreateTransactionInput) error {
	if err := checkMethod(in.PaymentMethod); err != nil {
		return err
	}
	if _, err := lookupPayee(in.Manager); err != nil {
		return err
	}
	if in.AmountGrams <= 0 {
		return fmt.Errorf("%w: amount_grams must be > 0", ErrInvalidTransactionData)
	}
	if in.ProductPrice.IsNegative() {
		return fmt.Errorf("%w: product_price must be >= 0", ErrInvalidTransactionData)
	}
	if in.TotalPrice.IsNegative() {
		return fmt.Errorf("%w: total_price must be >= 0", ErrInvalidTransactionData)
	}

	k, err := s.kiosks.GetByID(ctx, in.KioskID)
	if err != nil {
		return unavailable("get kiosk", err)
	}
	if k == nil {
		return fmt.Errorf("%w: %s", ErrKioskNotFound, in.KioskID)
	}
	if k.Status != models.KioskActive {
		return fmt.Errorf("%w: %s", ErrKioskInactive, k.ID)
	}

	p, err := s.products.GetByID(ctx, in.ProductID)
	if err != nil {
		return unavailable("get product", err)
	}
	if p == nil {
		return fmt.Errorf("%w: %s", ErrProductNotFound, in.ProductID)
	}

	// покупать можно только то, что отмечено доступным в этом киоске
	i := k.Entry(in.ProductID)
	if i < 0 || !k.Products[i].Available {
		return fmt.Errorf("%w: product %s at kiosk %s", ErrProductNotAvailable, in.ProductID, k.ID)
	}
	return nil
}

func (s *LedgerService) persist(ctx context.Context, in CreateTransactionInput) (*models.Transaction, error) {
	now := s.now().UTC()
	t := &models.Transaction{
		ID:            uuid.New(),
		KioskID:       in.KioskID,
		ProductID:     in.ProductID,
		AmountGrams:   in.AmountGrams,
		ExtraBottle:   in.ExtraBottle,
		ProductPrice:  in.ProductPrice,
		TotalPrice:    in.TotalPrice,
		PaymentMethod: in.PaymentMethod,
		Manager:       in.Manager,
		Status:        models.TransactionOngoing,
		Completed:     false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.transactions.Create(ctx, t); err != nil {
		return nil, unavailable("create transaction", err)
	}

	s.log.Info("transaction created",
		zap.String("txid", t.ID.String()), zap.String("kid", t.KioskID), zap.String("pid", t.ProductID),
		zap.String("method", string(t.PaymentMethod)), zap.String("total", t.TotalPrice.String()))

	if s.events != nil {
		if err := s.events.PublishPaymentCreated(ctx, PaymentCreatedEvent{
			TransactionID: t.ID,
			KioskID:       t.KioskID,
			ProductID:     t.ProductID,
			AmountGrams:   t.AmountGrams,
			TotalPrice:    t.TotalPrice,
			PaymentMethod: string(t.PaymentMethod),
			Manager:       t.Manager,
			CreatedAt:     t.CreatedAt,
		}); err != nil {
			s.log.Warn("publish payment.created failed", zap.String("txid", t.ID.String()), zap.Error(err))
		}
	}
	return t, nil
}

// Approve переводит транзакцию в COMPLETED ровно один раз.
// Повторный вызов возвращает ErrAlreadyCompleted, approved_at не меняется.
func (s *LedgerService) Approve(ctx context.Context, txid string) (*models.Transaction, error) {
	id, err := uuid.Parse(txid)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, txid)
	}

	ok, err := s.transactions.Approve(ctx, id, s.now().UTC())
	if err != nil {
		return nil, unavailable("approve transaction", err)
	}

	t, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		return nil, unavailable("get transaction", err)
	}
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, txid)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyCompleted, txid)
	}

	s.log.Info("transaction approved", zap.String("txid", txid), zap.String("kid", t.KioskID))

	if s.events != nil && t.ApprovedAt != nil {
		if err := s.events.PublishPaymentApproved(ctx, PaymentApprovedEvent{
			TransactionID: t.ID,
			KioskID:       t.KioskID,
			ProductID:     t.ProductID,
			TotalPrice:    t.TotalPrice,
			ApprovedAt:    *t.ApprovedAt,
		}); err != nil {
			s.log.Warn("publish payment.approved failed", zap.String("txid", txid), zap.Error(err))
		}
	}
	return t, nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, txid string) (*models.Transaction, error) {
	id, err := uuid.Parse(txid)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, txid)
	}
	t, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		return nil, unavailable("get transaction", err)
	}
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, txid)
	}
	return t, nil
}

// ListTransactions отдаёт новые первыми, по киоску, если задан KioskID.
func (s *LedgerService) ListTransactions(ctx context.Context, f repository.TransactionListFilter) ([]models.Transaction, error) {
	if f.Limit <= 0 {
		f.Limit = defaultTransactionsLimit
	}
	if f.Limit > maxTransactionsLimit {
		f.Limit = maxTransactionsLimit
	}
	list, err := s.transactions.List(ctx, f)
	if err != nil {
		return nil, unavailable("list transactions", err)
	}
	return list, nil
}

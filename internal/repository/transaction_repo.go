package repository

import (
	"context"
	"errors"
	"kiosk-service/internal/models"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransactionListFilter struct {
	KioskID string
	Limit   int
}

type TransactionRepo interface {
	Create(ctx context.Context, t *models.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	// Approve переводит ONGOING -> COMPLETED; false, если записи нет или она уже завершена.
	Approve(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	List(ctx context.Context, f TransactionListFilter) ([]models.Transaction, error)
}

type transactionRepo struct{ db *gorm.DB }

func NewTransactionRepo(db *gorm.DB) TransactionRepo { return &transactionRepo{db: db} }

func (r *transactionRepo) Create(ctx context.Context, t *models.Transaction) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *transactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var t models.Transaction
	err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transactionRepo) Approve(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	// проверка completed и запись в одном UPDATE: из параллельных подтверждений проходит одно
	tx := r.db.WithContext(ctx).Exec(`
UPDATE transactions
SET status      = @completed_status,
    completed   = true,
    approved_at = @at,
    updated_at  = @at
WHERE id = @id
  AND completed = false
`, map[string]any{
		"id":               id,
		"at":               at,
		"completed_status": models.TransactionCompleted,
	})
	return tx.RowsAffected > 0, tx.Error
}

func (r *transactionRepo) List(ctx context.Context, f TransactionListFilter) ([]models.Transaction, error) {
	q := r.db.WithContext(ctx).Model(&models.Transaction{})
	if f.KioskID != "" {
		q = q.Where("kiosk_id = ?", f.KioskID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var list []models.Transaction
	err := q.Order("created_at DESC").Find(&list).Error
	return list, err
}

package repository

import (
	"context"
	"kiosk-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AuditRepo interface {
	// Record идемпотентна по id события и паре (transaction_id, event):
	// повторная доставка из kafka возвращает false.
	Record(ctx context.Context, a *models.TransactionAudit) (bool, error)
	ListByTransaction(ctx context.Context, txID uuid.UUID) ([]models.TransactionAudit, error)
}

type auditRepo struct{ db *gorm.DB }

func NewAuditRepo(db *gorm.DB) AuditRepo { return &auditRepo{db: db} }

func (r *auditRepo) Record(ctx context.Context, a *models.TransactionAudit) (bool, error) {
	tx := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(a)
	return tx.RowsAffected > 0, tx.Error
}

func (r *auditRepo) ListByTransaction(ctx context.Context, txID uuid.UUID) ([]models.TransactionAudit, error) {
	var list []models.TransactionAudit
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", txID).
		Order("occurred_at ASC").
		Find(&list).Error
	return list, err
}

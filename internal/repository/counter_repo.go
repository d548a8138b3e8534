package repository

import (
	"context"

	"gorm.io/gorm"
)

type CounterRepo interface {
	// Next атомарно увеличивает счётчик и возвращает новое значение.
	// Отсутствующий счётчик создаётся со значением 1.
	Next(ctx context.Context, name string) (int64, error)
}

type counterRepo struct{ db *gorm.DB }

func NewCounterRepo(db *gorm.DB) CounterRepo { return &counterRepo{db: db} }

func (r *counterRepo) Next(ctx context.Context, name string) (int64, error) {
	var value int64
	err := r.db.WithContext(ctx).Raw(`
INSERT INTO counters (name, value)
VALUES (@name, 1)
ON CONFLICT (name) DO UPDATE
SET value = counters.value + 1
RETURNING value
`, map[string]any{"name": name}).Scan(&value).Error
	return value, err
}

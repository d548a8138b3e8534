package repository

import (
	"context"
	"encoding/json"
	"errors"
	"kiosk-service/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type KioskListFilter struct {
	Status *models.KioskStatus
	Limit  int
	Offset int
}

type KioskRepo interface {
	// Create возвращает false, если киоск с таким id уже есть.
	Create(ctx context.Context, k *models.Kiosk) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Kiosk, error)
	List(ctx context.Context, f KioskListFilter) ([]models.Kiosk, int64, error)
	UpdateFields(ctx context.Context, id string, fields map[string]any) (bool, error)
	// SwapProducts записывает список товаров, только если версия не изменилась с момента чтения.
	SwapProducts(ctx context.Context, id string, version int64, products []models.KioskProduct) (bool, error)
	IDsWithProduct(ctx context.Context, productID string) ([]string, error)
}

type kioskRepo struct{ db *gorm.DB }

func NewKioskRepo(db *gorm.DB) KioskRepo { return &kioskRepo{db: db} }

func (r *kioskRepo) Create(ctx context.Context, k *models.Kiosk) (bool, error) {
	if k.Products == nil {
		k.Products = []models.KioskProduct{}
	}
	if k.Version == 0 {
		k.Version = 1
	}
	tx := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(k)
	return tx.RowsAffected > 0, tx.Error
}

func (r *kioskRepo) GetByID(ctx context.Context, id string) (*models.Kiosk, error) {
	var k models.Kiosk
	err := r.db.WithContext(ctx).First(&k, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func (r *kioskRepo) List(ctx context.Context, f KioskListFilter) ([]models.Kiosk, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Kiosk{})

	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var list []models.Kiosk
	if err := q.Order("id ASC").Limit(f.Limit).Offset(f.Offset).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *kioskRepo) UpdateFields(ctx context.Context, id string, fields map[string]any) (bool, error) {
	if len(fields) == 0 {
		return true, nil
	}
	tx := r.db.WithContext(ctx).Model(&models.Kiosk{}).Where("id = ?", id).Updates(fields)
	return tx.RowsAffected > 0, tx.Error
}

func (r *kioskRepo) SwapProducts(ctx context.Context, id string, version int64, products []models.KioskProduct) (bool, error) {
	if products == nil {
		products = []models.KioskProduct{}
	}
	tx := r.db.WithContext(ctx).Exec(`
UPDATE kiosks
SET products   = @products,
    version    = version + 1,
    updated_at = now()
WHERE id = @id
  AND version = @version
`, map[string]any{
		"id":       id,
		"version":  version,
		"products": datatypes.JSONSlice[models.KioskProduct](products),
	})
	return tx.RowsAffected > 0, tx.Error
}

func (r *kioskRepo) IDsWithProduct(ctx context.Context, productID string) ([]string, error) {
	probe, err := json.Marshal([]map[string]string{{"pid": productID}})
	if err != nil {
		return nil, err
	}

	var ids []string
	// @> использует GIN-индекс по products
	err = r.db.WithContext(ctx).
		Model(&models.Kiosk{}).
		Where("products @> ?::jsonb", string(probe)).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

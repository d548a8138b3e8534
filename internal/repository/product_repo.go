package repository

import (
	"context"
	"encoding/json"
	"errors"
	"kiosk-service/internal/models"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductListFilter struct {
	Query  string // по name
	Tag    string
	Limit  int
	Offset int
}

type ProductRepo interface {
	// Create возвращает false, если товар с таким id уже есть.
	Create(ctx context.Context, p *models.Product) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	BatchGetByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	List(ctx context.Context, f ProductListFilter) ([]models.Product, int64, error)
	UpdateFields(ctx context.Context, id string, fields map[string]any) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepo { return &productRepo{db: db} }

func (r *productRepo) Create(ctx context.Context, p *models.Product) (bool, error) {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	tx := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(p)
	return tx.RowsAffected > 0, tx.Error
}

func (r *productRepo) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) BatchGetByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	var list []models.Product
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error
	return list, err
}

func (r *productRepo) List(ctx context.Context, f ProductListFilter) ([]models.Product, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Product{})

	if s := strings.TrimSpace(f.Query); s != "" {
		q = q.Where("lower(name) LIKE lower(?)", "%"+s+"%")
	}
	if t := strings.TrimSpace(f.Tag); t != "" {
		probe, err := json.Marshal([]string{t})
		if err != nil {
			return nil, 0, err
		}
		q = q.Where("tags @> ?::jsonb", string(probe))
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

	var list []models.Product
	if err := q.Order("id ASC").Limit(f.Limit).Offset(f.Offset).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *productRepo) UpdateFields(ctx context.Context, id string, fields map[string]any) (bool, error) {
	if len(fields) == 0 {
		return true, nil
	}
	tx := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(fields)
	return tx.RowsAffected > 0, tx.Error
}

func (r *productRepo) Delete(ctx context.Context, id string) (bool, error) {
	tx := r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	return tx.RowsAffected > 0, tx.Error
}

package service

import (
	"context"
	"io"
	"time"

	"kiosk-service/internal/models"
	"kiosk-service/internal/repository"

	"github.com/google/uuid"
)

type CounterRepo interface {
	Next(ctx context.Context, name string) (int64, error)
}

type KioskRepo interface {
	Create(ctx context.Context, k *models.Kiosk) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Kiosk, error)
	List(ctx context.Context, f repository.KioskListFilter) ([]models.Kiosk, int64, error)
	UpdateFields(ctx context.Context, id string, fields map[string]any) (bool, error)
	SwapProducts(ctx context.Context, id string, version int64, products []models.KioskProduct) (bool, error)
	IDsWithProduct(ctx context.Context, productID string) ([]string, error)
}

type ProductRepo interface {
	Create(ctx context.Context, p *models.Product) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	BatchGetByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	List(ctx context.Context, f repository.ProductListFilter) ([]models.Product, int64, error)
	UpdateFields(ctx context.Context, id string, fields map[string]any) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type TransactionRepo interface {
	Create(ctx context.Context, t *models.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	Approve(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	List(ctx context.Context, f repository.TransactionListFilter) ([]models.Transaction, error)
}

// BlobStore хранилище изображений товаров (S3).
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// ListingCache кэширует результат ListKioskProducts по киоску.
// Промах возвращает ok=false без ошибки.
// Запись помечается поколением киоска, прочитанным до похода в базу.
// InvalidateKiosks увеличивает поколение, и записи со старым поколением
// больше не отдаются.
type ListingCache interface {
	Generation(ctx context.Context, kioskID string) (int64, error)
	GetKioskProducts(ctx context.Context, kioskID string) (items []KioskProductItem, ok bool, err error)
	SetKioskProducts(ctx context.Context, kioskID string, gen int64, items []KioskProductItem) error
	InvalidateKiosks(ctx context.Context, kioskIDs ...string) error
}

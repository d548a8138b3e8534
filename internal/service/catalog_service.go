package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"kiosk-service/internal/models"
	"kiosk-service/internal/repository"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	defaultCASAttempts = 5

	DefaultImageURLTTL = time.Hour
	maxImageURLTTL     = 7 * 24 * time.Hour
)

type CatalogService struct {
	kiosks   KioskRepo
	products ProductRepo
	ids      *Allocator

	blobs BlobStore    // nil, если S3 не настроен
	cache ListingCache // nil, если redis выключен

	casAttempts int
	log         *zap.Logger
}

func NewCatalogService(kiosks KioskRepo, products ProductRepo, ids *Allocator, log *zap.Logger) *CatalogService {
	return &CatalogService{
		kiosks:      kiosks,
		products:    products,
		ids:         ids,
		casAttempts: defaultCASAttempts,
		log:         log,
	}
}

func (s *CatalogService) SetBlobStore(b BlobStore) { s.blobs = b }

func (s *CatalogService) SetListingCache(c ListingCache) { s.cache = c }

func (s *CatalogService) SetCASAttempts(n int) {
	if n > 0 {
		s.casAttempts = n
	}
}

// ---- kiosks ----

func (s *CatalogService) RegisterKiosk(ctx context.Context, in KioskInput) (*models.Kiosk, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	id, err := s.ids.NextID(ctx, KioskCounter, KioskIDPrefix)
	if err != nil {
		return nil, err
	}

	k := &models.Kiosk{
		ID:       id,
		Name:     in.Name,
		Location: in.Location,
		Status:   models.KioskActive,
		Products: []models.KioskProduct{},
		Version:  1,
	}
	created, err := s.kiosks.Create(ctx, k)
	if err != nil {
		return nil, unavailable("create kiosk", err)
	}
	if !created {
		// счётчик отстал от таблицы (например, после ручного восстановления)
		return nil, fmt.Errorf("%w: %s", ErrKioskAlreadyExists, id)
	}

	s.log.Info("kiosk registered", zap.String("kid", id))
	return k, nil
}

func (s *CatalogService) GetKiosk(ctx context.Context, id string) (*models.Kiosk, error) {
	k, err := s.kiosks.GetByID(ctx, id)
	if err != nil {
		return nil, unavailable("get kiosk", err)
	}
	if k == nil {
		return nil, fmt.Errorf("%w: %s", ErrKioskNotFound, id)
	}
	return k, nil
}

func (s *CatalogService) ListKiosks(ctx context.Context, f repository.KioskListFilter) ([]models.Kiosk, int64, error) {
	list, total, err := s.kiosks.List(ctx, f)
	if err != nil {
		return nil, 0, unavailable("list kiosks", err)
	}
	return list, total, nil
}

func (s *CatalogService) UpdateKiosk(ctx context.Context, id string, in KioskInput) (*models.Kiosk, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	ok, err := s.kiosks.UpdateFields(ctx, id, map[string]any{
		"name":     in.Name,
		"location": in.Location,
	})
	if err != nil {
		return nil, unavailable("update kiosk", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKioskNotFound, id)
	}
	return s.GetKiosk(ctx, id)
}

// DeactivateKiosk делает мягкое удаление, киоск остаётся для истории транзакций.
func (s *CatalogService) DeactivateKiosk(ctx context.Context, id string) error {
	ok, err := s.kiosks.UpdateFields(ctx, id, map[string]any{"status": models.KioskInactive})
	if err != nil {
		return unavailable("deactivate kiosk", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrKioskNotFound, id)
	}
	s.invalidateKiosks(ctx, id)
	s.log.Info("kiosk deactivated", zap.String("kid", id))
	return nil
}

// ---- kiosk products ----

func (s *CatalogService) AddProductToKiosk(ctx context.Context, kioskID, productID string) error {
	if _, err := s.GetKiosk(ctx, kioskID); err != nil {
		return err
	}
	if _, err := s.requireProduct(ctx, productID); err != nil {
		return err
	}

	return s.mutateProducts(ctx, kioskID, func(k *models.Kiosk) ([]models.KioskProduct, error) {
		if k.Status != models.KioskActive {
			return nil, fmt.Errorf("%w: %s", ErrKioskInactive, k.ID)
		}
		// проверка повторяется на каждой попытке: параллельный писатель мог успеть первым
		if k.Entry(productID) >= 0 {
			return nil, fmt.Errorf("%w: product %s already exists in kiosk %s", ErrProductAlreadyAssigned, productID, k.ID)
		}
		next := make([]models.KioskProduct, 0, len(k.Products)+1)
		next = append(next, k.Products...)
		return append(next, models.KioskProduct{ProductID: productID, Available: true}), nil
	})
}

func (s *CatalogService) SetProductAvailability(ctx context.Context, kioskID, productID string, available bool) error {
	return s.mutateProducts(ctx, kioskID, func(k *models.Kiosk) ([]models.KioskProduct, error) {
		i := k.Entry(productID)
		if i < 0 {
			return nil, fmt.Errorf("%w: product %s in kiosk %s", ErrProductNotAssigned, productID, k.ID)
		}
		if k.Products[i].Available == available {
			return nil, fmt.Errorf("%w: product %s is already available=%t", ErrAvailabilityUnchanged, productID, available)
		}
		next := make([]models.KioskProduct, len(k.Products))
		copy(next, k.Products)
		next[i].Available = available
		return next, nil
	})
}

func (s *CatalogService) RemoveProductFromKiosk(ctx context.Context, kioskID, productID string) error {
	return s.mutateProducts(ctx, kioskID, func(k *models.Kiosk) ([]models.KioskProduct, error) {
		i := k.Entry(productID)
		if i < 0 {
			return nil, fmt.Errorf("%w: product %s in kiosk %s", ErrProductNotAssigned, productID, k.ID)
		}
		next := make([]models.KioskProduct, 0, len(k.Products)-1)
		next = append(next, k.Products[:i]...)
		return append(next, k.Products[i+1:]...), nil
	})
}

// mutateProducts: read-modify-write списка товаров киоска с CAS по version.
// При конфликте версия перечитывается и mutate применяется заново.
func (s *CatalogService) mutateProducts(ctx context.Context, kioskID string, mutate func(k *models.Kiosk) ([]models.KioskProduct, error)) error {
	for attempt := 1; attempt <= s.casAttempts; attempt++ {
		k, err := s.GetKiosk(ctx, kioskID)
		if err != nil {
			return err
		}

		next, err := mutate(k)
		if err != nil {
			return err
		}

		ok, err := s.kiosks.SwapProducts(ctx, k.ID, k.Version, next)
		if err != nil {
			return unavailable("update kiosk products", err)
		}
		if ok {
			s.invalidateKiosks(ctx, k.ID)
			return nil
		}
		s.log.Debug("kiosk products version conflict",
			zap.String("kid", k.ID), zap.Int64("version", k.Version), zap.Int("attempt", attempt))
	}

	s.log.Warn("kiosk products update gave up", zap.String("kid", kioskID), zap.Int("attempts", s.casAttempts))
	return fmt.Errorf("%w: kiosk %s after %d attempts", ErrConcurrentUpdate, kioskID, s.casAttempts)
}

// ListKioskProducts возвращает товары киоска в порядке добавления.
// Ссылки на удалённые из каталога товары пропускаются с предупреждением.
func (s *CatalogService) ListKioskProducts(ctx context.Context, kioskID string) ([]KioskProductItem, error) {
	var (
		gen       int64
		cacheable bool
	)
	if s.cache != nil {
		items, ok, err := s.cache.GetKioskProducts(ctx, kioskID)
		if err != nil {
			s.log.Warn("listing cache read failed", zap.String("kid", kioskID), zap.Error(err))
		} else if ok {
			s.resolveImages(ctx, items)
			return items, nil
		}
		// поколение читается до базы: инвалидация после этой точки сделает запись устаревшей
		gen, err = s.cache.Generation(ctx, kioskID)
		if err != nil {
			s.log.Warn("listing cache generation read failed", zap.String("kid", kioskID), zap.Error(err))
		} else {
			cacheable = true
		}
	}

	k, err := s.GetKiosk(ctx, kioskID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(k.Products))
	for _, e := range k.Products {
		ids = append(ids, e.ProductID)
	}
	found, err := s.products.BatchGetByIDs(ctx, ids)
	if err != nil {
		return nil, unavailable("get kiosk products", err)
	}
	byID := make(map[string]models.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	items := make([]KioskProductItem, 0, len(k.Products))
	for _, e := range k.Products {
		p, ok := byID[e.ProductID]
		if !ok {
			s.log.Warn("kiosk references missing product, skipped",
				zap.String("kid", k.ID), zap.String("pid", e.ProductID))
			continue
		}
		items = append(items, KioskProductItem{Product: p, Available: e.Available})
	}

	if cacheable {
		if err := s.cache.SetKioskProducts(ctx, k.ID, gen, items); err != nil {
			s.log.Warn("listing cache write failed", zap.String("kid", k.ID), zap.Error(err))
		}
	}

	s.resolveImages(ctx, items)
	return items, nil
}

// ---- products ----

func (s *CatalogService) RegisterProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	id, err := s.ids.NextID(ctx, ProductCounter, ProductIDPrefix)
	if err != nil {
		return nil, err
	}

	p := &models.Product{
		ID:          id,
		Name:        in.Name,
		Price:       in.Price,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		Tags:        in.Tags,
	}
	created, err := s.products.Create(ctx, p)
	if err != nil {
		return nil, unavailable("create product", err)
	}
	if !created {
		return nil, fmt.Errorf("%w: %s", ErrProductAlreadyExists, id)
	}

	s.log.Info("product registered", zap.String("pid", id))
	return p, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	p, err := s.requireProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	s.resolveImage(ctx, p)
	return p, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, f repository.ProductListFilter) ([]models.Product, int64, error) {
	list, total, err := s.products.List(ctx, f)
	if err != nil {
		return nil, 0, unavailable("list products", err)
	}
	for i := range list {
		s.resolveImage(ctx, &list[i])
	}
	return list, total, nil
}

// UpdateProduct полностью заменяет изменяемые поля товара.
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, in ProductInput) (*models.Product, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	ok, err := s.products.UpdateFields(ctx, id, map[string]any{
		"name":        in.Name,
		"price":       in.Price,
		"description": in.Description,
		"image_url":   in.ImageURL,
		"tags":        datatypes.JSONSlice[string](in.Tags),
	})
	if err != nil {
		return nil, unavailable("update product", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}

	s.invalidateProduct(ctx, id)
	return s.GetProduct(ctx, id)
}

// DeleteProduct удаляет товар из каталога. Записи о нём в киосках остаются
// и пропускаются при выдаче списка.
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	ok, err := s.products.Delete(ctx, id)
	if err != nil {
		return unavailable("delete product", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	s.invalidateProduct(ctx, id)
	s.log.Info("product deleted", zap.String("pid", id))
	return nil
}

// UploadProductImage кладёт файл в products/{pid}.{ext} и запоминает ключ.
func (s *CatalogService) UploadProductImage(ctx context.Context, id, filename, contentType string, body io.Reader, size int64) (string, error) {
	if s.blobs == nil {
		return "", ErrBlobStoreDisabled
	}
	if _, err := s.requireProduct(ctx, id); err != nil {
		return "", err
	}

	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = ".png"
	}
	if contentType == "" {
		contentType = "image/png"
	}
	key := "products/" + id + ext

	if err := s.blobs.Put(ctx, key, body, size, contentType); err != nil {
		return "", unavailable("upload product image", err)
	}

	ok, err := s.products.UpdateFields(ctx, id, map[string]any{"image_key": key})
	if err != nil {
		return "", unavailable("save product image key", err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}

	s.invalidateProduct(ctx, id)
	s.log.Info("product image uploaded", zap.String("pid", id), zap.String("key", key))
	return key, nil
}

func (s *CatalogService) ProductImageURL(ctx context.Context, id string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultImageURLTTL
	}
	if ttl > maxImageURLTTL {
		return "", fmt.Errorf("%w: expires_in must be <= %d seconds", ErrInvalidProductData, int(maxImageURLTTL.Seconds()))
	}
	if s.blobs == nil {
		return "", ErrBlobStoreDisabled
	}

	p, err := s.requireProduct(ctx, id)
	if err != nil {
		return "", err
	}
	if p.ImageKey == "" {
		return "", fmt.Errorf("%w: %s", ErrProductImageNotFound, id)
	}

	url, err := s.blobs.PresignGet(ctx, p.ImageKey, ttl)
	if err != nil {
		return "", unavailable("presign product image", err)
	}
	return url, nil
}

func (s *CatalogService) requireProduct(ctx context.Context, id string) (*models.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, unavailable("get product", err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return p, nil
}

// resolveImage подменяет image_url подписанной ссылкой на загруженный файл.
func (s *CatalogService) resolveImage(ctx context.Context, p *models.Product) {
	if s.blobs == nil || p.ImageKey == "" {
		return
	}
	url, err := s.blobs.PresignGet(ctx, p.ImageKey, DefaultImageURLTTL)
	if err != nil {
		s.log.Warn("presign product image failed", zap.String("pid", p.ID), zap.Error(err))
		return
	}
	p.ImageURL = url
}

func (s *CatalogService) resolveImages(ctx context.Context, items []KioskProductItem) {
	for i := range items {
		s.resolveImage(ctx, &items[i].Product)
	}
}

func (s *CatalogService) invalidateKiosks(ctx context.Context, ids ...string) {
	if s.cache == nil || len(ids) == 0 {
		return
	}
	if err := s.cache.InvalidateKiosks(ctx, ids...); err != nil {
		s.log.Warn("listing cache invalidation failed", zap.Strings("kids", ids), zap.Error(err))
	}
}

func (s *CatalogService) invalidateProduct(ctx context.Context, productID string) {
	if s.cache == nil {
		return
	}
	ids, err := s.kiosks.IDsWithProduct(ctx, productID)
	if err != nil {
		s.log.Warn("lookup kiosks by product failed", zap.String("pid", productID), zap.Error(err))
		return
	}
	s.invalidateKiosks(ctx, ids...)
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"kiosk-service/internal/models"
	"kiosk-service/internal/service"
)

type Store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	GetBytes(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, keys ...string) error
	Incr(ctx context.Context, key string) (int64, error)
}

// cachedItem хранит image_key отдельно: в JSON товара он скрыт.
type cachedItem struct {
	Product   models.Product `json:"product"`
	ImageKey  string         `json:"image_key,omitempty"`
	Available bool           `json:"available"`
}

// cachedListing: gen поколение киоска на момент чтения из базы.
type cachedListing struct {
	Gen   int64        `json:"gen"`
	Items []cachedItem `json:"items"`
}

// KioskListing кэш списка товаров киоска поверх redis.
type KioskListing struct {
	store Store
	ttl   time.Duration
}

func NewKioskListing(store Store, ttl time.Duration) *KioskListing {
	return &KioskListing{store: store, ttl: ttl}
}

func listingKey(kioskID string) string {
	return fmt.Sprintf("kiosk:products:%s", kioskID)
}

// genKey живёт без TTL, иначе поколение могло бы откатиться к нулю.
func genKey(kioskID string) string {
	return fmt.Sprintf("kiosk:products:%s:gen", kioskID)
}

// Generation возвращает 0, пока киоск ни разу не инвалидировали.
func (c *KioskListing) Generation(ctx context.Context, kioskID string) (int64, error) {
	raw, err := c.store.GetBytes(ctx, genKey(kioskID))
	if errors.Is(err, ErrMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	gen, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("kiosk %s: bad listing generation %q: %w", kioskID, raw, err)
	}
	return gen, nil
}

func (c *KioskListing) GetKioskProducts(ctx context.Context, kioskID string) ([]service.KioskProductItem, bool, error) {
	raw, err := c.store.GetBytes(ctx, listingKey(kioskID))
	if errors.Is(err, ErrMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var cached cachedListing
	if err := json.Unmarshal(raw, &cached); err != nil {
		// битую запись считаем промахом и перезапишем
		_ = c.store.Del(ctx, listingKey(kioskID))
		return nil, false, nil
	}

	gen, err := c.Generation(ctx, kioskID)
	if err != nil {
		return nil, false, err
	}
	if cached.Gen != gen {
		// запись собрана до последней инвалидации
		return nil, false, nil
	}

	items := make([]service.KioskProductItem, 0, len(cached.Items))
	for _, ci := range cached.Items {
		p := ci.Product
		p.ImageKey = ci.ImageKey
		items = append(items, service.KioskProductItem{Product: p, Available: ci.Available})
	}
	return items, true, nil
}

func (c *KioskListing) SetKioskProducts(ctx context.Context, kioskID string, gen int64, items []service.KioskProductItem) error {
	cached := cachedListing{Gen: gen, Items: make([]cachedItem, 0, len(items))}
	for _, it := range items {
		cached.Items = append(cached.Items, cachedItem{Product: it.Product, ImageKey: it.Product.ImageKey, Available: it.Available})
	}
	raw, err := json.Marshal(cached)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, listingKey(kioskID), raw, c.ttl)
}

func (c *KioskListing) InvalidateKiosks(ctx context.Context, kioskIDs ...string) error {
	keys := make([]string, 0, len(kioskIDs))
	for _, id := range kioskIDs {
		if _, err := c.store.Incr(ctx, genKey(id)); err != nil {
			return err
		}
		keys = append(keys, listingKey(id))
	}
	return c.store.Del(ctx, keys...)
}

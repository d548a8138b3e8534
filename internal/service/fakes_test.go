package service_test

import (
	"context"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"kiosk-service/internal/cache"
	"kiosk-service/internal/models"
	"kiosk-service/internal/repository"
	"kiosk-service/internal/service"

	"github.com/google/uuid"
)

// Память вместо postgres: те же контракты, что у репозиториев.

type memCounters struct {
	mu     sync.Mutex
	values map[string]int64
	err    error
}

func newMemCounters() *memCounters { return &memCounters{values: map[string]int64{}} }

func (c *memCounters) Next(_ context.Context, name string) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[name]++
	return c.values[name], nil
}

type memKiosks struct {
	mu     sync.Mutex
	byID   map[string]models.Kiosk
	swapFn func(id string, version int64) (bool, error) // перехват SwapProducts в тестах CAS
	getErr error
}

func newMemKiosks() *memKiosks { return &memKiosks{byID: map[string]models.Kiosk{}} }

func cloneKiosk(k models.Kiosk) models.Kiosk {
	k.Products = append([]models.KioskProduct(nil), k.Products...)
	return k
}

func (r *memKiosks) Create(_ context.Context, k *models.Kiosk) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[k.ID]; ok {
		return false, nil
	}
	r.byID[k.ID] = cloneKiosk(*k)
	return true, nil
}

func (r *memKiosks) GetByID(_ context.Context, id string) (*models.Kiosk, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	k = cloneKiosk(k)
	return &k, nil
}

func (r *memKiosks) List(_ context.Context, f repository.KioskListFilter) ([]models.Kiosk, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Kiosk{}
	for _, k := range r.byID {
		if f.Status != nil && k.Status != *f.Status {
			continue
		}
		out = append(out, cloneKiosk(k))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *memKiosks) UpdateFields(_ context.Context, id string, fields map[string]any) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.byID[id]
	if !ok {
		return false, nil
	}
	for name, v := range fields {
		switch name {
		case "name":
			k.Name = v.(string)
		case "location":
			k.Location = v.(string)
		case "status":
			k.Status = v.(models.KioskStatus)
		}
	}
	r.byID[id] = k
	return true, nil
}

func (r *memKiosks) SwapProducts(_ context.Context, id string, version int64, products []models.KioskProduct) (bool, error) {
	if r.swapFn != nil {
		ok, err := r.swapFn(id, version)
		if err != nil || !ok {
			return ok, err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.byID[id]
	if !ok || k.Version != version {
		return false, nil
	}
	k.Products = append([]models.KioskProduct(nil), products...)
	k.Version++
	r.byID[id] = k
	return true, nil
}

func (r *memKiosks) IDsWithProduct(_ context.Context, productID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, k := range r.byID {
		if k.Entry(productID) >= 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type memProducts struct {
	mu   sync.Mutex
	byID map[string]models.Product
}

func newMemProducts() *memProducts { return &memProducts{byID: map[string]models.Product{}} }

func (r *memProducts) Create(_ context.Context, p *models.Product) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID]; ok {
		return false, nil
	}
	r.byID[p.ID] = *p
	return true, nil
}

func (r *memProducts) GetByID(_ context.Context, id string) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *memProducts) BatchGetByIDs(_ context.Context, ids []string) ([]models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Product{}
	for _, id := range ids {
		if p, ok := r.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memProducts) List(_ context.Context, f repository.ProductListFilter) ([]models.Product, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Product{}
	for _, p := range r.byID {
		if f.Query != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Query)) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *memProducts) UpdateFields(_ context.Context, id string, fields map[string]any) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return false, nil
	}
	if v, ok := fields["name"]; ok {
		p.Name = v.(string)
	}
	if v, ok := fields["image_key"]; ok {
		p.ImageKey = v.(string)
	}
	r.byID[id] = p
	return true, nil
}

func (r *memProducts) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return false, nil
	}
	delete(r.byID, id)
	return true, nil
}

type memTransactions struct {
	mu   sync.Mutex
	byID map[uuid.UUID]models.Transaction
}

func newMemTransactions() *memTransactions {
	return &memTransactions{byID: map[uuid.UUID]models.Transaction{}}
}

func (r *memTransactions) Create(_ context.Context, t *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[t.ID] = *t
	return nil
}

func (r *memTransactions) GetByID(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *memTransactions) Approve(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok || t.Completed {
		return false, nil
	}
	t.Status = models.TransactionCompleted
	t.Completed = true
	t.ApprovedAt = &at
	t.UpdatedAt = at
	r.byID[id] = t
	return true, nil
}

func (r *memTransactions) List(_ context.Context, f repository.TransactionListFilter) ([]models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Transaction{}
	for _, t := range r.byID {
		if f.KioskID != "" && t.KioskID != f.KioskID {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// MockBlobStore
type MockBlobStore struct {
	PutFunc        func(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	PresignGetFunc func(ctx context.Context, key string, ttl time.Duration) (string, error)
}

func (m *MockBlobStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, key, body, size, contentType)
	}
	return nil
}

func (m *MockBlobStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.PresignGetFunc != nil {
		return m.PresignGetFunc(ctx, key, ttl)
	}
	return "https://example.com/" + key, nil
}

// MockListingCache
type MockListingCache struct {
	GenerationFunc func(ctx context.Context, kioskID string) (int64, error)
	GetFunc        func(ctx context.Context, kioskID string) ([]service.KioskProductItem, bool, error)
	SetFunc        func(ctx context.Context, kioskID string, gen int64, items []service.KioskProductItem) error
	InvalidateFunc func(ctx context.Context, kioskIDs ...string) error
}

func (m *MockListingCache) Generation(ctx context.Context, kioskID string) (int64, error) {
	if m.GenerationFunc != nil {
		return m.GenerationFunc(ctx, kioskID)
	}
	return 0, nil
}

func (m *MockListingCache) GetKioskProducts(ctx context.Context, kioskID string) ([]service.KioskProductItem, bool, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, kioskID)
	}
	return nil, false, nil
}

func (m *MockListingCache) SetKioskProducts(ctx context.Context, kioskID string, gen int64, items []service.KioskProductItem) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, kioskID, gen, items)
	}
	return nil
}

func (m *MockListingCache) InvalidateKiosks(ctx context.Context, kioskIDs ...string) error {
	if m.InvalidateFunc != nil {
		return m.InvalidateFunc(ctx, kioskIDs...)
	}
	return nil
}

// memListingStore заменяет redis под cache.KioskListing.
// beforeSet вызывается до записи, без блокировки.
type memListingStore struct {
	mu        sync.Mutex
	data      map[string][]byte
	beforeSet func(key string)
}

var _ cache.Store = (*memListingStore)(nil)

func newMemListingStore() *memListingStore {
	return &memListingStore{data: map[string][]byte{}}
}

func (s *memListingStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	if s.beforeSet != nil {
		s.beforeSet(key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value.([]byte)
	return nil
}

func (s *memListingStore) GetBytes(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return b, nil
}

func (s *memListingStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *memListingStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, _ := strconv.ParseInt(string(s.data[key]), 10, 64)
	n++
	s.data[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

// MockEventBus
type MockEventBus struct {
	CreatedFunc  func(ctx context.Context, e service.PaymentCreatedEvent) error
	ApprovedFunc func(ctx context.Context, e service.PaymentApprovedEvent) error
}

func (m *MockEventBus) PublishPaymentCreated(ctx context.Context, e service.PaymentCreatedEvent) error {
	if m.CreatedFunc != nil {
		return m.CreatedFunc(ctx, e)
	}
	return nil
}

func (m *MockEventBus) PublishPaymentApproved(ctx context.Context, e service.PaymentApprovedEvent) error {
	if m.ApprovedFunc != nil {
		return m.ApprovedFunc(ctx, e)
	}
	return nil
}

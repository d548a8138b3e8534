package service_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"kiosk-service/internal/cache"
	"kiosk-service/internal/models"
	"kiosk-service/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type catalogFixture struct {
	svc      *service.CatalogService
	kiosks   *memKiosks
	products *memProducts
}

func newCatalogFixture() *catalogFixture {
	kiosks := newMemKiosks()
	products := newMemProducts()
	svc := service.NewCatalogService(kiosks, products, service.NewAllocator(newMemCounters()), zap.NewNop())
	return &catalogFixture{svc: svc, kiosks: kiosks, products: products}
}

func (f *catalogFixture) kiosk(t *testing.T) string {
	t.Helper()
	k, err := f.svc.RegisterKiosk(context.Background(), service.KioskInput{Name: "Lobby", Location: "1F"})
	if err != nil {
		t.Fatalf("RegisterKiosk: %v", err)
	}
	return k.ID
}

func (f *catalogFixture) product(t *testing.T, name string) string {
	t.Helper()
	p, err := f.svc.RegisterProduct(context.Background(), service.ProductInput{Name: name, Price: decimal.NewFromInt(1500)})
	if err != nil {
		t.Fatalf("RegisterProduct: %v", err)
	}
	return p.ID
}

func TestRegisterKiosk(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()

	k, err := f.svc.RegisterKiosk(ctx, service.KioskInput{Name: "  Lobby ", Location: "1F"})
	if err != nil {
		t.Fatalf("RegisterKiosk: %v", err)
	}
	if k.ID != "kiosk_001" {
		t.Fatalf("id = %q, want kiosk_001", k.ID)
	}
	if k.Name != "Lobby" || k.Status != models.KioskActive || len(k.Products) != 0 {
		t.Fatalf("unexpected kiosk: %+v", k)
	}

	k2, err := f.svc.RegisterKiosk(ctx, service.KioskInput{Name: "Gym", Location: "B1"})
	if err != nil {
		t.Fatalf("RegisterKiosk #2: %v", err)
	}
	if k2.ID != "kiosk_002" {
		t.Fatalf("id = %q, want kiosk_002", k2.ID)
	}
}

func TestRegisterKiosk_Validation(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()

	cases := []service.KioskInput{
		{Name: "", Location: "1F"},
		{Name: "   ", Location: "1F"},
		{Name: "Lobby", Location: "\t"},
	}
	for _, in := range cases {
		_, err := f.svc.RegisterKiosk(ctx, in)
		if !errors.Is(err, service.ErrInvalidKioskData) {
			t.Fatalf("RegisterKiosk(%+v): expected ErrInvalidKioskData, got %v", in, err)
		}
	}
	if len(f.kiosks.byID) != 0 {
		t.Fatalf("rejected kiosks must not be stored, have %d", len(f.kiosks.byID))
	}
}

func TestGetKiosk_NotFound(t *testing.T) {
	f := newCatalogFixture()

	_, err := f.svc.GetKiosk(context.Background(), "kiosk_404")
	if !errors.Is(err, service.ErrKioskNotFound) {
		t.Fatalf("expected ErrKioskNotFound, got %v", err)
	}
	if service.CodeOf(err) != "kiosk_not_found" {
		t.Fatalf("code = %q", service.CodeOf(err))
	}
}

func TestGetKiosk_StorageDown(t *testing.T) {
	f := newCatalogFixture()
	f.kiosks.getErr = errors.New("dial tcp: i/o timeout")

	_, err := f.svc.GetKiosk(context.Background(), "kiosk_001")
	if service.KindOf(err) != service.KindUnavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestAddProductToKiosk(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()
	kid := f.kiosk(t)
	pid := f.product(t, "Shampoo")

	if err := f.svc.AddProductToKiosk(ctx, kid, pid); err != nil {
		t.Fatalf("AddProductToKiosk: %v", err)
	}

	k, _ := f.svc.GetKiosk(ctx, kid)
	if len(k.Products) != 1 || k.Products[0].ProductID != pid || !k.Products[0].Available {
		t.Fatalf("unexpected products: %+v", k.Products)
	}

	// повторное добавление
	err := f.svc.AddProductToKiosk(ctx, kid, pid)
	if !errors.Is(err, service.ErrProductAlreadyAssigned) {
		t.Fatalf("expected ErrProductAlreadyAssigned, got %v", err)
	}
	k, _ = f.svc.GetKiosk(ctx, kid)
	if len(k.Products) != 1 {
		t.Fatalf("duplicate add changed list: %+v", k.Products)
	}
}

func TestAddProductToKiosk_Missing(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()
	kid := f.kiosk(t)
	pid := f.product(t, "Shampoo")

	if err := f.svc.AddProductToKiosk(ctx, "kiosk_999", pid); !errors.Is(err, service.ErrKioskNotFound) {
		t.Fatalf("expected ErrKioskNotFound, got %v", err)
	}
	if err := f.svc.AddProductToKiosk(ctx, kid, "prod_999"); !errors.Is(err, service.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestAddProductToKiosk_Inactive(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()
	kid := f.kiosk(t)
	pid := f.product(t, "Shampoo")

	if err := f.svc.DeactivateKiosk(ctx, kid); err != nil {
		t.Fatalf("DeactivateKiosk: %v", err)
	}
	if err := f.svc.AddProductToKiosk(ctx, kid, pid); !errors.Is(err, service.ErrKioskInactive) {
		t.Fatalf("expected ErrKioskInactive, got %v", err)
	}
}

func TestSetProductAvailability(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()
	kid := f.kiosk(t)
	a := f.product(t, "Shampoo")
	b := f.product(t, "Conditioner")

	for _, pid := range []string{a, b} {
		if err := f.svc.AddProductToKiosk(ctx, kid, pid); err != nil {
			t.Fatalf("AddProductToKiosk(%s): %v", pid, err)
		}
	}

	if err := f.svc.SetProductAvailability(ctx, kid, a, false); err != nil {
		t.Fatalf("SetProductAvailability: %v", err)
	}
	k, _ := f.svc.GetKiosk(ctx, kid)
	if k.Products[0].Available || !k.Products[1].Available {
		t.Fatalf("only %s should be sold out: %+v", a, k.Products)
	}
	if k.Products[0].ProductID != a || k.Products[1].ProductID != b {
		t.Fatalf("order changed: %+v", k.Products)
	}

	err := f.svc.SetProductAvailability(ctx, kid, a, false)
	if !errors.Is(err, service.ErrAvailabilityUnchanged) {
		t.Fatalf("expected ErrAvailabilityUnchanged, got %v", err)
	}

	err = f.svc.SetProductAvailability(ctx, kid, "prod_999", true)
	if !errors.Is(err, service.ErrProductNotAssigned) {
		t.Fatalf("expected ErrProductNotAssigned, got %v", err)
	}
}

func TestRemoveProductFromKiosk(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()
	kid := f.kiosk(t)
	a := f.product(t, "Shampoo")
	b := f.product(t, "Soap")
	_ = f.svc.AddProductToKiosk(ctx, kid, a)
	_ = f.svc.AddProductToKiosk(ctx, kid, b)

	if err := f.svc.RemoveProductFromKiosk(ctx, kid, a); err != nil {
		t.Fatalf("RemoveProductFromKiosk: %v", err)
	}
	k, _ := f.svc.GetKiosk(ctx, kid)
	if len(k.Products) != 1 || k.Products[0].ProductID != b {
		t.Fatalf("unexpected products: %+v", k.Products)
	}
	if err := f.svc.RemoveProductFromKiosk(ctx, kid, a); !errors.Is(err, service.ErrProductNotAssigned) {
		t.Fatalf("expected ErrProductNotAssigned, got %v", err)
	}
}

func TestMutateProducts_RetriesOnVersionConflict(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()
	kid := f.kiosk(t)
	pid := f.product(t, "Shampoo")

	conflicts := 2
	f.kiosks.swapFn = func(id string, version int64) (bool, error) {
		if conflicts > 0 {
			conflicts--
			return false, nil
		}
		return true, nil
	}

	if err := f.svc.AddProductToKiosk(ctx, kid, pid); err != nil {
		t.Fatalf("AddProductToKiosk after conflicts: %v", err)
	}
	if conflicts != 0 {
		t.Fatalf("expected all conflicts consumed, left %d", conflicts)
	}
}

func TestMutateProducts_GivesUp(t *testing.T) {
	f := newCatalogFixture()
	f.svc.SetCASAttempts(3)
	ctx := context.Background()
	kid := f.kiosk(t)
	pid := f.product(t, "Shampoo")

	calls := 0
	f.kiosks.swapFn = func(string, int64) (bool, error) {
		calls++
		return false, nil
	}

	err := f.svc.AddProductToKiosk(ctx, kid, pid)
	if !errors.Is(err, service.ErrConcurrentUpdate) {
		t.Fatalf("expected ErrConcurrentUpdate, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("swap attempts = %d, want 3", calls)
	}
}

func TestAddProductToKiosk_ConcurrentDistinct(t *testing.T) {
	f := newCatalogFixture()
	f.svc.SetCASAttempts(100)
	ctx := context.Background()
	kid := f.kiosk(t)

	const n = 20
	pids := make([]string, n)
	for i := range pids {
		pids[i] = f.product(t, "p")
	}

	var wg sync.WaitGroup
	for _, pid := range pids {
		wg.Add(1)
		go func(pid string) {
			defer wg.Done()
			if err := f.svc.AddProductToKiosk(ctx, kid, pid); err != nil {
				t.Errorf("AddProductToKiosk(%s): %v", pid, err)
			}
		}(pid)
	}
	wg.Wait()

	k, _ := f.svc.GetKiosk(ctx, kid)
	if len(k.Products) != n {
		t.Fatalf("lost updates: have %d entries, want %d", len(k.Products), n)
	}
}

func TestListKioskProducts_SkipsDangling(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()
	kid := f.kiosk(t)
	a := f.product(t, "Shampoo")
	b := f.product(t, "Soap")
	_ = f.svc.AddProductToKiosk(ctx, kid, a)
	_ = f.svc.AddProductToKiosk(ctx, kid, b)
	_ = f.svc.SetProductAvailability(ctx, kid, b, false)

	if err := f.svc.DeleteProduct(ctx, a); err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}

	items, err := f.svc.ListKioskProducts(ctx, kid)
	if err != nil {
		t.Fatalf("ListKioskProducts: %v", err)
	}
	if len(items) != 1 || items[0].Product.ID != b || items[0].Available {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestListKioskProducts_Empty(t *testing.T) {
	f := newCatalogFixture()
	kid := f.kiosk(t)

	items, err := f.svc.ListKioskProducts(context.Background(), kid)
	if err != nil {
		t.Fatalf("ListKioskProducts: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", items)
	}
}

func TestListKioskProducts_UsesCache(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()
	kid := f.kiosk(t)
	pid := f.product(t, "Shampoo")
	_ = f.svc.AddProductToKiosk(ctx, kid, pid)

	var stored []service.KioskProductItem
	invalidated := []string{}
	f.svc.SetListingCache(&MockListingCache{
		GetFunc: func(_ context.Context, id string) ([]service.KioskProductItem, bool, error) {
			if stored == nil {
				return nil, false, nil
			}
			return stored, true, nil
		},
		SetFunc: func(_ context.Context, id string, _ int64, items []service.KioskProductItem) error {
			stored = items
			return nil
		},
		InvalidateFunc: func(_ context.Context, ids ...string) error {
			invalidated = append(invalidated, ids...)
			stored = nil
			return nil
		},
	})

	if _, err := f.svc.ListKioskProducts(ctx, kid); err != nil {
		t.Fatalf("ListKioskProducts: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("listing not cached: %+v", stored)
	}

	// смена наличия сбрасывает кэш
	if err := f.svc.SetProductAvailability(ctx, kid, pid, false); err != nil {
		t.Fatalf("SetProductAvailability: %v", err)
	}
	if len(invalidated) != 1 || invalidated[0] != kid {
		t.Fatalf("expected invalidation of %s, got %v", kid, invalidated)
	}

	items, _ := f.svc.ListKioskProducts(ctx, kid)
	if len(items) != 1 || items[0].Available {
		t.Fatalf("stale listing after invalidation: %+v", items)
	}
}

func TestListKioskProducts_InvalidationDuringFillIsNotServed(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()
	kid := f.kiosk(t)
	pid := f.product(t, "Shampoo")
	if err := f.svc.AddProductToKiosk(ctx, kid, pid); err != nil {
		t.Fatalf("AddProductToKiosk: %v", err)
	}

	store := newMemListingStore()
	f.svc.SetListingCache(cache.NewKioskListing(store, time.Hour))

	// листинг уже прочитал базу, а наличие меняется до записи в кэш
	changed := false
	store.beforeSet = func(string) {
		if changed {
			return
		}
		changed = true
		if err := f.svc.SetProductAvailability(ctx, kid, pid, false); err != nil {
			t.Fatalf("SetProductAvailability: %v", err)
		}
	}

	if _, err := f.svc.ListKioskProducts(ctx, kid); err != nil {
		t.Fatalf("ListKioskProducts: %v", err)
	}
	if !changed {
		t.Fatalf("listing was not written to the cache")
	}

	items, err := f.svc.ListKioskProducts(ctx, kid)
	if err != nil {
		t.Fatalf("ListKioskProducts: %v", err)
	}
	if len(items) != 1 || items[0].Available {
		t.Fatalf("listing served availability from before the change: %+v", items)
	}

	// после этого кэш снова наполняется и отдаёт свежие данные
	cached, ok, err := cache.NewKioskListing(store, time.Hour).GetKioskProducts(ctx, kid)
	if err != nil || !ok {
		t.Fatalf("expected cached listing, ok=%v err=%v", ok, err)
	}
	if cached[0].Available {
		t.Fatalf("cache holds stale availability: %+v", cached)
	}
}

func TestListKioskProducts_CacheErrorFallsBack(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()
	kid := f.kiosk(t)
	pid := f.product(t, "Shampoo")
	_ = f.svc.AddProductToKiosk(ctx, kid, pid)

	f.svc.SetListingCache(&MockListingCache{
		GetFunc: func(context.Context, string) ([]service.KioskProductItem, bool, error) {
			return nil, false, errors.New("redis down")
		},
		SetFunc: func(context.Context, string, int64, []service.KioskProductItem) error {
			return errors.New("redis down")
		},
	})

	items, err := f.svc.ListKioskProducts(ctx, kid)
	if err != nil {
		t.Fatalf("cache failure must not fail listing: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestRegisterProduct_Validation(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()

	_, err := f.svc.RegisterProduct(ctx, service.ProductInput{Name: " ", Price: decimal.NewFromInt(1)})
	if !errors.Is(err, service.ErrInvalidProductData) {
		t.Fatalf("expected ErrInvalidProductData for empty name, got %v", err)
	}
	_, err = f.svc.RegisterProduct(ctx, service.ProductInput{Name: "Soap", Price: decimal.NewFromInt(-1)})
	if !errors.Is(err, service.ErrInvalidProductData) {
		t.Fatalf("expected ErrInvalidProductData for negative price, got %v", err)
	}

	p, err := f.svc.RegisterProduct(ctx, service.ProductInput{
		Name:  "Soap",
		Price: decimal.RequireFromString("12.50"),
		Tags:  []string{"bath", " bath ", "", "refill"},
	})
	if err != nil {
		t.Fatalf("RegisterProduct: %v", err)
	}
	if p.ID != "prod_001" {
		t.Fatalf("id = %q, want prod_001", p.ID)
	}
	if len(p.Tags) != 2 || p.Tags[0] != "bath" || p.Tags[1] != "refill" {
		t.Fatalf("tags not normalized: %v", p.Tags)
	}
}

func TestUploadProductImage(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()
	pid := f.product(t, "Shampoo")

	if _, err := f.svc.UploadProductImage(ctx, pid, "a.png", "image/png", strings.NewReader("x"), 1); !errors.Is(err, service.ErrBlobStoreDisabled) {
		t.Fatalf("expected ErrBlobStoreDisabled, got %v", err)
	}

	var putKey, putType string
	f.svc.SetBlobStore(&MockBlobStore{
		PutFunc: func(_ context.Context, key string, body io.Reader, size int64, ct string) error {
			putKey, putType = key, ct
			_, err := io.ReadAll(body)
			return err
		},
		PresignGetFunc: func(_ context.Context, key string, ttl time.Duration) (string, error) {
			return "https://s3.example.com/" + key + "?ttl=" + ttl.String(), nil
		},
	})

	key, err := f.svc.UploadProductImage(ctx, pid, "Photo.JPG", "", strings.NewReader("jpeg"), 4)
	if err != nil {
		t.Fatalf("UploadProductImage: %v", err)
	}
	if key != "products/"+pid+".jpg" || putKey != key {
		t.Fatalf("key = %q, put = %q", key, putKey)
	}
	if putType != "image/png" {
		t.Fatalf("default content type = %q", putType)
	}

	p, err := f.svc.GetProduct(ctx, pid)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if !strings.HasPrefix(p.ImageURL, "https://s3.example.com/products/") {
		t.Fatalf("image url not presigned: %q", p.ImageURL)
	}

	if _, err := f.svc.UploadProductImage(ctx, "prod_999", "a.png", "", strings.NewReader("x"), 1); !errors.Is(err, service.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestProductImageURL(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()
	pid := f.product(t, "Shampoo")
	f.svc.SetBlobStore(&MockBlobStore{})

	if _, err := f.svc.ProductImageURL(ctx, pid, time.Hour); !errors.Is(err, service.ErrProductImageNotFound) {
		t.Fatalf("expected ErrProductImageNotFound, got %v", err)
	}

	if _, err := f.svc.UploadProductImage(ctx, pid, "a.png", "image/png", strings.NewReader("x"), 1); err != nil {
		t.Fatalf("UploadProductImage: %v", err)
	}
	url, err := f.svc.ProductImageURL(ctx, pid, 0)
	if err != nil {
		t.Fatalf("ProductImageURL: %v", err)
	}
	if url != "https://example.com/products/"+pid+".png" {
		t.Fatalf("url = %q", url)
	}

	if _, err := f.svc.ProductImageURL(ctx, pid, 30*24*time.Hour); !errors.Is(err, service.ErrInvalidProductData) {
		t.Fatalf("expected ErrInvalidProductData for too long ttl, got %v", err)
	}
}

func TestDeactivateKiosk(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()
	kid := f.kiosk(t)

	if err := f.svc.DeactivateKiosk(ctx, kid); err != nil {
		t.Fatalf("DeactivateKiosk: %v", err)
	}
	k, err := f.svc.GetKiosk(ctx, kid)
	if err != nil {
		t.Fatalf("deactivated kiosk must stay readable: %v", err)
	}
	if k.Status != models.KioskInactive {
		t.Fatalf("status = %q", k.Status)
	}
	if err := f.svc.DeactivateKiosk(ctx, "kiosk_999"); !errors.Is(err, service.ErrKioskNotFound) {
		t.Fatalf("expected ErrKioskNotFound, got %v", err)
	}
}

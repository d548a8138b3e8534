package repository_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"kiosk-service/internal/migrate"
	"kiosk-service/internal/models"
	"kiosk-service/internal/repository"
	"kiosk-service/pkg/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := testutil.SetupTestPostgres(t)

	// Запускаем миграцию явно в тесте
	if err := migrate.MigrateKioskDB(context.Background(), db, zap.NewNop(), migrate.DefaultMigrateOptions()); err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	return db
}

func TestCounterRepo(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewCounterRepo(db)
	ctx := context.Background()

	v, err := repo.Next(ctx, "kiosk_counter")
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if v != 1 {
		t.Fatalf("first value = %d, want 1", v)
	}

	const n = 50
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := repo.Next(ctx, "kiosk_counter")
			if err != nil {
				t.Errorf("Next: %v", err)
				return
			}
			mu.Lock()
			seen[v] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	// ровно {2..n+1}, без пропусков и повторов
	if len(seen) != n {
		t.Fatalf("distinct values = %d, want %d", len(seen), n)
	}
	for want := int64(2); want <= n+1; want++ {
		if !seen[want] {
			t.Fatalf("value %d missing", want)
		}
	}

	var cur int64
	if err := db.Table("counters").Select("value").Where("name = ?", "kiosk_counter").Scan(&cur).Error; err != nil {
		t.Fatalf("read counter: %v", err)
	}
	if cur != n+1 {
		t.Fatalf("stored value = %d, want %d", cur, n+1)
	}

	// счётчики независимы
	if v, _ := repo.Next(ctx, "product_counter"); v != 1 {
		t.Fatalf("product_counter first value = %d, want 1", v)
	}
}

func TestKioskRepo(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewKioskRepo(db)
	ctx := context.Background()

	k := &models.Kiosk{ID: "kiosk_001", Name: "Lobby", Location: "1F", Status: models.KioskActive}
	created, err := repo.Create(ctx, k)
	if err != nil || !created {
		t.Fatalf("Create: created=%v err=%v", created, err)
	}

	// повторный id
	created, err = repo.Create(ctx, &models.Kiosk{ID: "kiosk_001", Name: "Dup", Location: "2F", Status: models.KioskActive})
	if err != nil {
		t.Fatalf("Create dup: %v", err)
	}
	if created {
		t.Fatal("expected duplicate id to be rejected")
	}

	got, err := repo.GetByID(ctx, "kiosk_001")
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v %v", got, err)
	}
	if got.Version != 1 || len(got.Products) != 0 {
		t.Fatalf("unexpected fresh kiosk: %+v", got)
	}

	if missing, err := repo.GetByID(ctx, "kiosk_404"); err != nil || missing != nil {
		t.Fatalf("GetByID missing: %v %v", missing, err)
	}

	// CAS по версии
	list := []models.KioskProduct{{ProductID: "prod_001", Available: true}}
	ok, err := repo.SwapProducts(ctx, "kiosk_001", 1, list)
	if err != nil || !ok {
		t.Fatalf("SwapProducts v1: ok=%v err=%v", ok, err)
	}
	ok, err = repo.SwapProducts(ctx, "kiosk_001", 1, nil)
	if err != nil {
		t.Fatalf("SwapProducts stale: %v", err)
	}
	if ok {
		t.Fatal("stale version must not be written")
	}

	got, _ = repo.GetByID(ctx, "kiosk_001")
	if got.Version != 2 || len(got.Products) != 1 || got.Products[0].ProductID != "prod_001" {
		t.Fatalf("unexpected kiosk after swap: %+v", got)
	}

	ids, err := repo.IDsWithProduct(ctx, "prod_001")
	if err != nil {
		t.Fatalf("IDsWithProduct: %v", err)
	}
	if len(ids) != 1 || ids[0] != "kiosk_001" {
		t.Fatalf("IDsWithProduct = %v", ids)
	}
	if ids, _ := repo.IDsWithProduct(ctx, "prod_002"); len(ids) != 0 {
		t.Fatalf("IDsWithProduct(prod_002) = %v", ids)
	}

	ok, err = repo.UpdateFields(ctx, "kiosk_001", map[string]any{"status": models.KioskInactive})
	if err != nil || !ok {
		t.Fatalf("UpdateFields: ok=%v err=%v", ok, err)
	}
	if ok, _ := repo.UpdateFields(ctx, "kiosk_404", map[string]any{"name": "x"}); ok {
		t.Fatal("UpdateFields on missing kiosk must return false")
	}

	active := models.KioskActive
	kiosks, total, err := repo.List(ctx, repository.KioskListFilter{Status: &active})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 0 || len(kiosks) != 0 {
		t.Fatalf("expected no active kiosks, got %d", total)
	}

	// CHECK на пустое имя
	if _, err := repo.Create(ctx, &models.Kiosk{ID: "kiosk_002", Name: " ", Location: "1F", Status: models.KioskActive}); err == nil {
		t.Fatal("expected check constraint error for blank name")
	}
}

func TestKioskRepo_ConcurrentSwap(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewKioskRepo(db)
	ctx := context.Background()

	if _, err := repo.Create(ctx, &models.Kiosk{ID: "kiosk_001", Name: "Lobby", Location: "1F", Status: models.KioskActive}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	const n = 10
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.SwapProducts(ctx, "kiosk_001", 1, []models.KioskProduct{{ProductID: uuid.NewString(), Available: true}})
			if err != nil {
				t.Errorf("SwapProducts: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("writers with the same version: %d succeeded, want 1", wins)
	}
}

func TestProductRepo(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewProductRepo(db)
	ctx := context.Background()

	for _, p := range []models.Product{
		{ID: "prod_001", Name: "Lavender Shampoo", Price: decimal.RequireFromString("12.50"), Tags: datatypes.JSONSlice[string]{"bath"}},
		{ID: "prod_002", Name: "Hand Soap", Price: decimal.NewFromInt(5), Tags: datatypes.JSONSlice[string]{"bath", "refill"}},
		{ID: "prod_003", Name: "Detergent", Price: decimal.NewFromInt(8), Tags: datatypes.JSONSlice[string]{"laundry"}},
	} {
		if ok, err := repo.Create(ctx, &p); err != nil || !ok {
			t.Fatalf("Create %s: ok=%v err=%v", p.ID, ok, err)
		}
	}

	got, err := repo.GetByID(ctx, "prod_001")
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v %v", got, err)
	}
	if !got.Price.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("price = %s", got.Price)
	}

	batch, err := repo.BatchGetByIDs(ctx, []string{"prod_003", "prod_404", "prod_001"})
	if err != nil {
		t.Fatalf("BatchGetByIDs: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("BatchGetByIDs returned %d rows, want 2", len(batch))
	}

	list, total, err := repo.List(ctx, repository.ProductListFilter{Tag: "refill"})
	if err != nil {
		t.Fatalf("List by tag: %v", err)
	}
	if total != 1 || list[0].ID != "prod_002" {
		t.Fatalf("List by tag = %+v", list)
	}

	list, total, err = repo.List(ctx, repository.ProductListFilter{Query: "soap"})
	if err != nil {
		t.Fatalf("List by query: %v", err)
	}
	if total != 1 || list[0].ID != "prod_002" {
		t.Fatalf("List by query = %+v", list)
	}

	if ok, err := repo.UpdateFields(ctx, "prod_001", map[string]any{"image_key": "products/prod_001.png"}); err != nil || !ok {
		t.Fatalf("UpdateFields: ok=%v err=%v", ok, err)
	}
	got, _ = repo.GetByID(ctx, "prod_001")
	if got.ImageKey != "products/prod_001.png" {
		t.Fatalf("image_key = %q", got.ImageKey)
	}

	if ok, err := repo.Delete(ctx, "prod_003"); err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}
	if ok, _ := repo.Delete(ctx, "prod_003"); ok {
		t.Fatal("second Delete must return false")
	}

	if _, err := repo.Create(ctx, &models.Product{ID: "prod_004", Name: "Bad", Price: decimal.NewFromInt(-1)}); err == nil {
		t.Fatal("expected check constraint error for negative price")
	}
}

func newTransaction(kid string) *models.Transaction {
	return &models.Transaction{
		ID:            uuid.New(),
		KioskID:       kid,
		ProductID:     "prod_001",
		AmountGrams:   100,
		ProductPrice:  decimal.NewFromInt(3000),
		TotalPrice:    decimal.NewFromInt(3500),
		PaymentMethod: models.PaymentTossPay,
		Manager:       "LEE",
		Status:        models.TransactionOngoing,
	}
}

func TestTransactionRepo(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewTransactionRepo(db)
	ctx := context.Background()

	tx := newTransaction("kiosk_001")
	if err := repo.Create(ctx, tx); err != nil {
		t.Fatalf("Create: %v", err)
	}

	at := time.Now().UTC().Truncate(time.Microsecond)
	ok, err := repo.Approve(ctx, tx.ID, at)
	if err != nil || !ok {
		t.Fatalf("Approve: ok=%v err=%v", ok, err)
	}

	// повторное подтверждение не проходит и не трогает approved_at
	ok, err = repo.Approve(ctx, tx.ID, at.Add(time.Hour))
	if err != nil {
		t.Fatalf("Approve again: %v", err)
	}
	if ok {
		t.Fatal("second Approve must return false")
	}

	got, err := repo.GetByID(ctx, tx.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v %v", got, err)
	}
	if got.Status != models.TransactionCompleted || !got.Completed {
		t.Fatalf("unexpected status: %+v", got)
	}
	if got.ApprovedAt == nil || !got.ApprovedAt.Equal(at) {
		t.Fatalf("approved_at = %v, want %v", got.ApprovedAt, at)
	}

	if ok, _ := repo.Approve(ctx, uuid.New(), at); ok {
		t.Fatal("Approve of missing transaction must return false")
	}

	// завершённую запись нельзя переписать
	if err := db.Exec("UPDATE transactions SET total_price = 0 WHERE id = ?", tx.ID).Error; err == nil {
		t.Fatal("expected ledger guard to reject update of completed transaction")
	}
	if err := db.Exec("DELETE FROM transactions WHERE id = ?", tx.ID).Error; err == nil {
		t.Fatal("expected ledger guard to reject delete")
	}
}

func TestTransactionRepo_ConcurrentApprove(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewTransactionRepo(db)
	ctx := context.Background()

	tx := newTransaction("kiosk_001")
	if err := repo.Create(ctx, tx); err != nil {
		t.Fatalf("Create: %v", err)
	}

	const n = 10
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Approve(ctx, tx.ID, time.Now().UTC())
			if err != nil {
				t.Errorf("Approve: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("%d approvals succeeded, want exactly 1", wins)
	}
}

func TestTransactionRepo_List(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewTransactionRepo(db)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, kid := range []string{"kiosk_001", "kiosk_001", "kiosk_002"} {
		tx := newTransaction(kid)
		tx.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(ctx, tx); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	list, err := repo.List(ctx, repository.TransactionListFilter{KioskID: "kiosk_001"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List by kiosk = %d rows, want 2", len(list))
	}
	if !list[0].CreatedAt.After(list[1].CreatedAt) {
		t.Fatal("expected newest first")
	}

	list, err = repo.List(ctx, repository.TransactionListFilter{Limit: 1})
	if err != nil {
		t.Fatalf("List limit: %v", err)
	}
	if len(list) != 1 || list[0].KioskID != "kiosk_002" {
		t.Fatalf("List limit = %+v", list)
	}
}

func TestAuditRepo(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewAuditRepo(db)
	ctx := context.Background()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	txID := uuid.New()
	payload, _ := json.Marshal(map[string]string{"manager": "KIM"})
	a := &models.TransactionAudit{
		ID:            node.Generate(),
		TransactionID: txID,
		Event:         models.AuditPaymentCreated,
		KioskID:       "kiosk_001",
		Payload:       datatypes.JSON(payload),
		OccurredAt:    time.Now().UTC(),
	}
	ok, err := repo.Record(ctx, a)
	if err != nil || !ok {
		t.Fatalf("Record: ok=%v err=%v", ok, err)
	}

	// повторная доставка того же события
	dup := *a
	ok, err = repo.Record(ctx, &dup)
	if err != nil {
		t.Fatalf("Record dup: %v", err)
	}
	if ok {
		t.Fatal("redelivered event must not be recorded twice")
	}

	// то же событие с новым id тоже дубль: уникальность по (transaction_id, event)
	dup2 := *a
	dup2.ID = node.Generate()
	if ok, _ := repo.Record(ctx, &dup2); ok {
		t.Fatal("same transaction event with a new id must be ignored")
	}

	list, err := repo.ListByTransaction(ctx, txID)
	if err != nil {
		t.Fatalf("ListByTransaction: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListByTransaction = %d rows, want 1", len(list))
	}
}

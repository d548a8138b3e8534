package migrate

import (
	"context"
	"kiosk-service/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MigrateOptions struct {
	CreateExtensions       bool // pgcrypto для gen_random_uuid()
	CreateChecks           bool // CHECK-constraint'ы
	CreateIndexes          bool // индексы, в т.ч. GIN по kiosks.products
	CreateUpdatedAtTrigger bool // триггеры updated_at
	CreateLedgerGuard      bool // запрет изменения завершённых транзакций
}

func DefaultMigrateOptions() MigrateOptions {
	return MigrateOptions{
		CreateExtensions:       true,
		CreateChecks:           true,
		CreateIndexes:          true,
		CreateUpdatedAtTrigger: true,
		CreateLedgerGuard:      true,
	}
}

type step struct {
	name string
	sql  string
}

func MigrateKioskDB(ctx context.Context, db *gorm.DB, log *zap.Logger, opt MigrateOptions) error {
	log.Info("Начало миграции базы киосков")
	db = db.WithContext(ctx)

	if opt.CreateExtensions {
		log.Info("Создание расширений PostgreSQL")
		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
			log.Error("pgcrypto error", zap.Error(err))
			return err
		}
		log.Info("Расширения созданы")
	}

	log.Info("Создание таблиц: counters, kiosks, products, transactions, transaction_audits")
	if err := db.AutoMigrate(
		&models.Counter{},
		&models.Kiosk{},
		&models.Product{},
		&models.Transaction{},
		&models.TransactionAudit{},
	); err != nil {
		log.Error("AutoMigrate error", zap.Error(err))
		return err
	}
	log.Info("Таблицы созданы")

	if opt.CreateUpdatedAtTrigger {
		log.Info("Создание триггеров updated_at")
		if err := run(db, log, updatedAtSteps); err != nil {
			return err
		}
		log.Info("Триггеры созданы")
	}

	if opt.CreateChecks {
		log.Info("Создание CHECK-ограничений")
		if err := run(db, log, checkSteps); err != nil {
			return err
		}
		log.Info("CHECK-и созданы")
	}

	if opt.CreateIndexes {
		log.Info("Создание индексов")
		if err := run(db, log, indexSteps); err != nil {
			return err
		}
		log.Info("Индексы созданы")
	}

	if opt.CreateLedgerGuard {
		log.Info("Создание защиты завершённых транзакций")
		if err := run(db, log, ledgerGuardSteps); err != nil {
			return err
		}
		log.Info("Защита транзакций создана")
	}

	log.Info("Миграция базы киосков успешно завершена")
	return nil
}

func run(db *gorm.DB, log *zap.Logger, steps []step) error {
	for _, s := range steps {
		if err := db.Exec(s.sql).Error; err != nil {
			log.Error(s.name, zap.Error(err))
			return err
		}
	}
	return nil
}

var updatedAtSteps = []step{
	{"triggers updated_at", `
CREATE OR REPLACE FUNCTION set_updated_at() RETURNS trigger AS $$
BEGIN NEW.updated_at = now(); RETURN NEW; END; $$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_kiosks_updated ON kiosks;
CREATE TRIGGER trg_kiosks_updated BEFORE UPDATE ON kiosks
FOR EACH ROW EXECUTE FUNCTION set_updated_at();

DROP TRIGGER IF EXISTS trg_products_updated ON products;
CREATE TRIGGER trg_products_updated BEFORE UPDATE ON products
FOR EACH ROW EXECUTE FUNCTION set_updated_at();
`},
}

var checkSteps = []step{
	{"chk counters.value", `
ALTER TABLE counters
	DROP CONSTRAINT IF EXISTS chk_counters_value_non_negative,
	ADD CONSTRAINT chk_counters_value_non_negative
	CHECK (value >= 0);
`},
	{"chk kiosks.status", `
ALTER TABLE kiosks
	DROP CONSTRAINT IF EXISTS chk_kiosks_status_allowed,
	ADD CONSTRAINT chk_kiosks_status_allowed
	CHECK (status IN ('active','inactive'));
`},
	{"chk kiosks.name_location", `
ALTER TABLE kiosks
	DROP CONSTRAINT IF EXISTS chk_kiosks_name_location_not_blank,
	ADD CONSTRAINT chk_kiosks_name_location_not_blank
	CHECK (btrim(name) <> '' AND btrim(location) <> '');
`},
	{"chk kiosks.products", `
ALTER TABLE kiosks
	DROP CONSTRAINT IF EXISTS chk_kiosks_products_array,
	ADD CONSTRAINT chk_kiosks_products_array
	CHECK (jsonb_typeof(products) = 'array');
`},
	{"chk products.price", `
ALTER TABLE products
	DROP CONSTRAINT IF EXISTS chk_products_price_non_negative,
	ADD CONSTRAINT chk_products_price_non_negative
	CHECK (price >= 0);
`},
	{"chk transactions.amounts", `
ALTER TABLE transactions
	DROP CONSTRAINT IF EXISTS chk_transactions_amounts,
	ADD CONSTRAINT chk_transactions_amounts
	CHECK (amount_grams > 0 AND product_price >= 0 AND total_price >= 0);
`},
	{"chk transactions.payment_method", `
ALTER TABLE transactions
	DROP CONSTRAINT IF EXISTS chk_transactions_payment_method_allowed,
	ADD CONSTRAINT chk_transactions_payment_method_allowed
	CHECK (payment_method IN ('kakaopay','tosspay'));
`},
	// status и completed всегда согласованы, approved_at заполнен только у завершённых
	{"chk transactions.status", `
ALTER TABLE transactions
	DROP CONSTRAINT IF EXISTS chk_transactions_status_consistent,
	ADD CONSTRAINT chk_transactions_status_consistent
	CHECK (
		status IN ('ONGOING','COMPLETED')
		AND (status = 'COMPLETED') = completed
		AND completed = (approved_at IS NOT NULL)
	);
`},
	{"chk transaction_audits.event", `
ALTER TABLE transaction_audits
	DROP CONSTRAINT IF EXISTS chk_transaction_audits_event_allowed,
	ADD CONSTRAINT chk_transaction_audits_event_allowed
	CHECK (event IN ('payment.created','payment.approved'));
`},
}

var indexSteps = []step{
	{"gin kiosks.products", `
CREATE INDEX IF NOT EXISTS gin_kiosks_products
ON kiosks USING gin (products jsonb_path_ops);
`},
	{"ix transactions kiosk_created", `
CREATE INDEX IF NOT EXISTS ix_transactions_kiosk_created
ON transactions (kiosk_id, created_at DESC);
`},
	{"ix transactions created", `
CREATE INDEX IF NOT EXISTS ix_transactions_created
ON transactions (created_at DESC);
`},
	{"gin products.tags", `
CREATE INDEX IF NOT EXISTS gin_products_tags
ON products USING gin (tags jsonb_path_ops);
`},
	{"ux transaction_audits tx_event", `
CREATE UNIQUE INDEX IF NOT EXISTS ux_transaction_audits_tx_event
ON transaction_audits (transaction_id, event);
`},
}

var ledgerGuardSteps = []step{
	{"trigger transactions guard", `
CREATE OR REPLACE FUNCTION reject_completed_transaction_update() RETURNS trigger AS $$
BEGIN
	IF OLD.completed THEN
		RAISE EXCEPTION 'transaction % is already completed', OLD.id
			USING ERRCODE = 'check_violation';
	END IF;
	RETURN NEW;
END; $$ LANGUAGE plpgsql;

CREATE OR REPLACE FUNCTION reject_transaction_delete() RETURNS trigger AS $$
BEGIN
	RAISE EXCEPTION 'transaction % cannot be deleted', OLD.id
		USING ERRCODE = 'check_violation';
END; $$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_transactions_guard ON transactions;
CREATE TRIGGER trg_transactions_guard BEFORE UPDATE ON transactions
FOR EACH ROW EXECUTE FUNCTION reject_completed_transaction_update();

DROP TRIGGER IF EXISTS trg_transactions_no_delete ON transactions;
CREATE TRIGGER trg_transactions_no_delete BEFORE DELETE ON transactions
FOR EACH ROW EXECUTE FUNCTION reject_transaction_delete();
`},
}

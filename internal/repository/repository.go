package repository

import "gorm.io/gorm"

type Repository struct {
	DB           *gorm.DB
	Counters     CounterRepo
	Kiosks       KioskRepo
	Products     ProductRepo
	Transactions TransactionRepo
	Audits       AuditRepo
}

func buildRepository(db *gorm.DB) *Repository {
	return &Repository{
		DB:           db,
		Counters:     NewCounterRepo(db),
		Kiosks:       NewKioskRepo(db),
		Products:     NewProductRepo(db),
		Transactions: NewTransactionRepo(db),
		Audits:       NewAuditRepo(db),
	}
}

func New(db *gorm.DB) *Repository { return buildRepository(db) }

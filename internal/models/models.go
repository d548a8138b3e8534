package models

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Counter struct {
	Name  string `gorm:"type:text;primaryKey"`
	Value int64  `gorm:"not null;default:0"`
}

func (Counter) TableName() string {
	return "counters"
}

type KioskStatus string

const (
	KioskActive   KioskStatus = "active"
	KioskInactive KioskStatus = "inactive"
)

// KioskProduct запись о наличии товара в конкретном киоске.
type KioskProduct struct {
	ProductID string `json:"pid"`
	Available bool   `json:"available"`
}

type Kiosk struct {
	ID       string                            `gorm:"type:text;primaryKey" json:"kid"`
	Name     string                            `gorm:"type:text;not null" json:"name"`
	Location string                            `gorm:"type:text;not null" json:"location"`
	Status   KioskStatus                       `gorm:"type:text;not null;default:'active';index" json:"status"`
	Products datatypes.JSONSlice[KioskProduct] `gorm:"type:jsonb;not null;default:'[]'" json:"products"`
	// Version растёт на каждой записи products (optimistic lock)
	Version int64 `gorm:"not null;default:1" json:"-"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Kiosk) TableName() string {
	return "kiosks"
}

// Entry возвращает индекс записи товара в списке киоска или -1.
func (k *Kiosk) Entry(productID string) int {
	for i, p := range k.Products {
		if p.ProductID == productID {
			return i
		}
	}
	return -1
}

type Product struct {
	ID          string                      `gorm:"type:text;primaryKey" json:"pid"`
	Name        string                      `gorm:"type:text;not null" json:"name"`
	Price       decimal.Decimal             `gorm:"type:numeric(12,2);not null;default:0" json:"price"`
	Description string                      `gorm:"type:text;not null;default:''" json:"description"`
	ImageKey    string                      `gorm:"type:text;not null;default:''" json:"-"`
	ImageURL    string                      `gorm:"type:text;not null;default:''" json:"image_url"`
	Tags        datatypes.JSONSlice[string] `gorm:"type:jsonb;not null;default:'[]'" json:"tags"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

type PaymentMethod string

const (
	PaymentKakaoPay PaymentMethod = "kakaopay"
	PaymentTossPay  PaymentMethod = "tosspay"
)

type TransactionStatus string

const (
	TransactionOngoing   TransactionStatus = "ONGOING"
	TransactionCompleted TransactionStatus = "COMPLETED"
)

type Transaction struct {
	ID            uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"txid"`
	KioskID       string            `gorm:"type:text;not null;index" json:"kid"`
	ProductID     string            `gorm:"type:text;not null;index" json:"pid"`
	AmountGrams   int32             `gorm:"not null" json:"amount_grams"`
	ExtraBottle   bool              `gorm:"not null;default:false" json:"extra_bottle"`
	ProductPrice  decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"product_price"`
	TotalPrice    decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"total_price"`
	PaymentMethod PaymentMethod     `gorm:"type:text;not null" json:"payment_method"`
	Manager       string            `gorm:"type:text;not null" json:"manager"`
	Status        TransactionStatus `gorm:"type:text;not null;default:'ONGOING';index" json:"status"`
	// Completed дублирует Status для старых клиентов
	Completed bool `gorm:"not null;default:false" json:"completed"`

	CreatedAt  time.Time  `gorm:"not null;default:now();index" json:"created_at"`
	ApprovedAt *time.Time `json:"approved_at"`
	UpdatedAt  time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

type AuditEvent string

const (
	AuditPaymentCreated  AuditEvent = "payment.created"
	AuditPaymentApproved AuditEvent = "payment.approved"
)

// TransactionAudit запись журнала событий оплаты, её пишет консьюмером из kafka.
type TransactionAudit struct {
	ID            snowflake.ID   `gorm:"primaryKey;autoIncrement:false"`
	TransactionID uuid.UUID      `gorm:"type:uuid;not null;index"`
	Event         AuditEvent     `gorm:"type:text;not null"`
	KioskID       string         `gorm:"type:text;not null;index"`
	Payload       datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"`
	OccurredAt    time.Time      `gorm:"not null"`
	RecordedAt    time.Time      `gorm:"not null;default:now()"`
}

func (TransactionAudit) TableName() string {
	return "transaction_audits"
}

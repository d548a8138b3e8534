package service

import (
	"context"
	"fmt"
)

const (
	KioskCounter   = "kiosk_counter"
	ProductCounter = "product_counter"

	KioskIDPrefix   = "kiosk"
	ProductIDPrefix = "prod"
)

// Allocator выдаёт последовательные номера из именованных счётчиков в БД.
// Уникальность обеспечивает атомарный инкремент на стороне postgres.
type Allocator struct {
	counters CounterRepo
}

func NewAllocator(counters CounterRepo) *Allocator {
	return &Allocator{counters: counters}
}

func (a *Allocator) Allocate(ctx context.Context, counter string) (int64, error) {
	n, err := a.counters.Next(ctx, counter)
	if err != nil {
		return 0, unavailable("allocate "+counter, err)
	}
	return n, nil
}

// NextID выделяет номер и форматирует его: NextID(ctx, "kiosk_counter", "kiosk") -> "kiosk_007".
func (a *Allocator) NextID(ctx context.Context, counter, prefix string) (string, error) {
	n, err := a.Allocate(ctx, counter)
	if err != nil {
		return "", err
	}
	return FormatID(prefix, n), nil
}

// FormatID дополняет номер нулями до трёх знаков; больше 999 выводится как есть.
func FormatID(prefix string, n int64) string {
	return fmt.Sprintf("%s_%03d", prefix, n)
}

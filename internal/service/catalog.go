package service

import (
	"fmt"
	"strings"

	"kiosk-service/internal/models"

	"github.com/shopspring/decimal"
)

type KioskInput struct {
	Name     string
	Location string
}

func (in KioskInput) normalize() (KioskInput, error) {
	out := KioskInput{
		Name:     strings.TrimSpace(in.Name),
		Location: strings.TrimSpace(in.Location),
	}
	if out.Name == "" {
		return out, fmt.Errorf("%w: name cannot be empty or whitespace only", ErrInvalidKioskData)
	}
	if out.Location == "" {
		return out, fmt.Errorf("%w: location cannot be empty or whitespace only", ErrInvalidKioskData)
	}
	return out, nil
}

type ProductInput struct {
	Name        string
	Price       decimal.Decimal
	Description string
	ImageURL    string
	Tags        []string
}

func (in ProductInput) normalize() (ProductInput, error) {
	out := ProductInput{
		Name:        strings.TrimSpace(in.Name),
		Price:       in.Price,
		Description: strings.TrimSpace(in.Description),
		ImageURL:    strings.TrimSpace(in.ImageURL),
		Tags:        normalizeTags(in.Tags),
	}
	if out.Name == "" {
		return out, fmt.Errorf("%w: name cannot be empty or whitespace only", ErrInvalidProductData)
	}
	if out.Price.IsNegative() {
		return out, fmt.Errorf("%w: price must be >= 0", ErrInvalidProductData)
	}
	return out, nil
}

// normalizeTags убирает пустые и повторяющиеся теги, сохраняя порядок.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// KioskProductItem: товар каталога вместе с его наличием в конкретном киоске.
type KioskProductItem struct {
	Product   models.Product
	Available bool
}

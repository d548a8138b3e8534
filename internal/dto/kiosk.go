package dto

import (
	"time"

	"kiosk-service/internal/models"
)

type RegisterKioskRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

type RegisterKioskResponse struct {
	KID string `json:"kid"`
}

type UpdateKioskRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

type KioskProductEntry struct {
	PID       string `json:"pid"`
	Available bool   `json:"available"`
}

type KioskResponse struct {
	KID       string              `json:"kid"`
	Name      string              `json:"name"`
	Location  string              `json:"location"`
	Status    string              `json:"status"`
	Products  []KioskProductEntry `json:"products"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

type ListKiosksResponse struct {
	Kiosks []KioskResponse `json:"kiosks"`
	Total  int64           `json:"total"`
}

type AddProductToKioskRequest struct {
	PID string `json:"pid" binding:"required"`
}

// Available указателем: false и отсутствующее поле различаются.
type UpdateProductStatusRequest struct {
	Available *bool `json:"available" binding:"required"`
}

type KioskProductItem struct {
	Product   ProductResponse `json:"product"`
	Available bool            `json:"available"`
}

type GetKioskProductsResponse struct {
	Products []KioskProductItem `json:"products"`
}

func ToKioskResponse(k *models.Kiosk) KioskResponse {
	products := make([]KioskProductEntry, 0, len(k.Products))
	for _, p := range k.Products {
		products = append(products, KioskProductEntry{PID: p.ProductID, Available: p.Available})
	}
	return KioskResponse{
		KID:       k.ID,
		Name:      k.Name,
		Location:  k.Location,
		Status:    string(k.Status),
		Products:  products,
		CreatedAt: k.CreatedAt,
		UpdatedAt: k.UpdatedAt,
	}
}

package dto

import (
	"kiosk-service/internal/models"

	"github.com/shopspring/decimal"
)

type ProductRequest struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price" swaggertype:"number"`
	Description string          `json:"description"`
	ImageURL    string          `json:"image_url"`
	Tags        []string        `json:"tags"`
}

type RegisterProductResponse struct {
	PID string `json:"pid"`
}

type ProductResponse struct {
	PID         string          `json:"pid"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price" swaggertype:"number"`
	Description string          `json:"description"`
	ImageURL    string          `json:"image_url"`
	Tags        []string        `json:"tags"`
}

type ListProductsResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int64             `json:"total"`
}

type UploadProductImageResponse struct {
	Message string `json:"message"`
	S3Key   string `json:"s3_key"`
}

type ProductImageURLResponse struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

func ToProductResponse(p *models.Product) ProductResponse {
	tags := []string(p.Tags)
	if tags == nil {
		tags = []string{}
	}
	return ProductResponse{
		PID:         p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		Tags:        tags,
	}
}

package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"kiosk-service/internal/dto"
	"kiosk-service/internal/models"
	"kiosk-service/internal/repository"
	"kiosk-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ProductCatalog interface {
	RegisterProduct(ctx context.Context, in service.ProductInput) (*models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context, f repository.ProductListFilter) ([]models.Product, int64, error)
	UpdateProduct(ctx context.Context, id string, in service.ProductInput) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	UploadProductImage(ctx context.Context, id, filename, contentType string, body io.Reader, size int64) (string, error)
	ProductImageURL(ctx context.Context, id string, ttl time.Duration) (string, error)
}

type ProductHandler struct {
	catalog ProductCatalog
	log     *zap.Logger
}

func NewProductHandler(catalog ProductCatalog, log *zap.Logger) *ProductHandler {
	return &ProductHandler{catalog: catalog, log: log}
}

func toProductInput(req dto.ProductRequest) service.ProductInput {
	return service.ProductInput{
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Tags:        req.Tags,
	}
}

// RegisterProduct godoc
// @Summary Регистрация товара
// @Tags products
// @Accept json
// @Produce json
// @Param product body dto.ProductRequest true "Данные товара"
// @Success 201 {object} dto.RegisterProductResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Failure 409 {object} dto.ConflictErrorResponse
// @Router /products [post]
func (h *ProductHandler) RegisterProduct(c *gin.Context) {
	var req dto.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.log, err)
		return
	}

	p, err := h.catalog.RegisterProduct(c.Request.Context(), toProductInput(req))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, dto.RegisterProductResponse{PID: p.ID})
}

// ListProducts godoc
// @Summary Каталог товаров
// @Tags products
// @Produce json
// @Param q query string false "Поиск по названию"
// @Param tag query string false "Тег"
// @Param limit query int false "Лимит"
// @Param offset query int false "Смещение"
// @Success 200 {object} dto.ListProductsResponse
// @Router /products [get]
func (h *ProductHandler) ListProducts(c *gin.Context) {
	f := repository.ProductListFilter{Query: c.Query("q"), Tag: c.Query("tag")}
	var ok bool
	if f.Limit, ok = queryInt(c, "limit"); !ok {
		return
	}
	if f.Offset, ok = queryInt(c, "offset"); !ok {
		return
	}

	list, total, err := h.catalog.ListProducts(c.Request.Context(), f)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	resp := dto.ListProductsResponse{Products: make([]dto.ProductResponse, 0, len(list)), Total: total}
	for i := range list {
		resp.Products = append(resp.Products, dto.ToProductResponse(&list[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// GetProduct godoc
// @Summary Товар по ID
// @Tags products
// @Produce json
// @Param pid path string true "ID товара, например prod_001"
// @Success 200 {object} dto.ProductResponse
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Router /products/{pid} [get]
func (h *ProductHandler) GetProduct(c *gin.Context) {
	p, err := h.catalog.GetProduct(c.Request.Context(), c.Param("pid"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToProductResponse(p))
}

// UpdateProduct godoc
// @Summary Полное обновление товара
// @Tags products
// @Accept json
// @Produce json
// @Param pid path string true "ID товара"
// @Param product body dto.ProductRequest true "Данные товара"
// @Success 200 {object} dto.ProductResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Router /products/{pid} [put]
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	var req dto.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.log, err)
		return
	}

	p, err := h.catalog.UpdateProduct(c.Request.Context(), c.Param("pid"), toProductInput(req))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToProductResponse(p))
}

// DeleteProduct godoc
// @Summary Удаление товара
// @Tags products
// @Produce json
// @Param pid path string true "ID товара"
// @Success 200 {object} dto.MessageResponse
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Router /products/{pid} [delete]
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	pid := c.Param("pid")
	if err := h.catalog.DeleteProduct(c.Request.Context(), pid); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "Product " + pid + " deleted"})
}

// UploadImage godoc
// @Summary Загрузка изображения товара в S3
// @Tags products
// @Accept multipart/form-data
// @Produce json
// @Param pid path string true "ID товара"
// @Param file formData file true "Изображение"
// @Success 200 {object} dto.UploadProductImageResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Failure 503 {object} dto.UnavailableErrorResponse
// @Router /products/{pid}/image [post]
func (h *ProductHandler) UploadImage(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewValidationError("file is required", []dto.FieldError{
			{Field: "file", Message: err.Error(), Tag: "required"},
		}))
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.log.Error("open uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.NewInternalError(""))
		return
	}
	defer f.Close()

	key, err := h.catalog.UploadProductImage(c.Request.Context(), c.Param("pid"), fh.Filename, fh.Header.Get("Content-Type"), f, fh.Size)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.UploadProductImageResponse{Message: "Image uploaded", S3Key: key})
}

// ImageURL godoc
// @Summary Временная ссылка на изображение товара
// @Tags products
// @Produce json
// @Param pid path string true "ID товара"
// @Param expires_in query int false "Время жизни ссылки в секундах (по умолчанию 3600)"
// @Success 200 {object} dto.ProductImageURLResponse
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Failure 503 {object} dto.UnavailableErrorResponse
// @Router /products/{pid}/image [get]
func (h *ProductHandler) ImageURL(c *gin.Context) {
	secs, ok := queryInt(c, "expires_in")
	if !ok {
		return
	}
	ttl := time.Duration(secs) * time.Second
	if ttl == 0 {
		ttl = service.DefaultImageURLTTL
	}

	url, err := h.catalog.ProductImageURL(c.Request.Context(), c.Param("pid"), ttl)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.ProductImageURLResponse{URL: url, ExpiresIn: int(ttl.Seconds())})
}

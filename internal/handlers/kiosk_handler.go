package handlers

import (
	"context"
	"net/http"

	"kiosk-service/internal/dto"
	"kiosk-service/internal/models"
	"kiosk-service/internal/repository"
	"kiosk-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type KioskCatalog interface {
	RegisterKiosk(ctx context.Context, in service.KioskInput) (*models.Kiosk, error)
	GetKiosk(ctx context.Context, id string) (*models.Kiosk, error)
	ListKiosks(ctx context.Context, f repository.KioskListFilter) ([]models.Kiosk, int64, error)
	UpdateKiosk(ctx context.Context, id string, in service.KioskInput) (*models.Kiosk, error)
	DeactivateKiosk(ctx context.Context, id string) error
	AddProductToKiosk(ctx context.Context, kioskID, productID string) error
	SetProductAvailability(ctx context.Context, kioskID, productID string, available bool) error
	RemoveProductFromKiosk(ctx context.Context, kioskID, productID string) error
	ListKioskProducts(ctx context.Context, kioskID string) ([]service.KioskProductItem, error)
}

type KioskHandler struct {
	catalog KioskCatalog
	log     *zap.Logger
}

func NewKioskHandler(catalog KioskCatalog, log *zap.Logger) *KioskHandler {
	return &KioskHandler{catalog: catalog, log: log}
}

// RegisterKiosk godoc
// @Summary Регистрация киоска
// @Description Создаёт киоск со статусом active и пустым списком товаров
// @Tags kiosks
// @Accept json
// @Produce json
// @Param kiosk body dto.RegisterKioskRequest true "Название и расположение"
// @Success 201 {object} dto.RegisterKioskResponse
// @Failure 400 {object} dto.ValidationErrorResponse "Пустое имя или расположение"
// @Failure 409 {object} dto.ConflictErrorResponse "Киоск уже существует"
// @Failure 503 {object} dto.UnavailableErrorResponse "Хранилище недоступно"
// @Router /kiosks [post]
func (h *KioskHandler) RegisterKiosk(c *gin.Context) {
	var req dto.RegisterKioskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.log, err)
		return
	}

	k, err := h.catalog.RegisterKiosk(c.Request.Context(), service.KioskInput{Name: req.Name, Location: req.Location})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, dto.RegisterKioskResponse{KID: k.ID})
}

// ListKiosks godoc
// @Summary Список киосков
// @Tags kiosks
// @Produce json
// @Param status query string false "active | inactive"
// @Param limit query int false "Лимит"
// @Param offset query int false "Смещение"
// @Success 200 {object} dto.ListKiosksResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Router /kiosks [get]
func (h *KioskHandler) ListKiosks(c *gin.Context) {
	var f repository.KioskListFilter
	if s := c.Query("status"); s != "" {
		st := models.KioskStatus(s)
		if st != models.KioskActive && st != models.KioskInactive {
			c.JSON(http.StatusBadRequest, dto.NewValidationError("invalid status", []dto.FieldError{
				{Field: "status", Message: "must be 'active' or 'inactive'"},
			}))
			return
		}
		f.Status = &st
	}
	var ok bool
	if f.Limit, ok = queryInt(c, "limit"); !ok {
		return
	}
	if f.Offset, ok = queryInt(c, "offset"); !ok {
		return
	}

	list, total, err := h.catalog.ListKiosks(c.Request.Context(), f)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	resp := dto.ListKiosksResponse{Kiosks: make([]dto.KioskResponse, 0, len(list)), Total: total}
	for i := range list {
		resp.Kiosks = append(resp.Kiosks, dto.ToKioskResponse(&list[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// GetKiosk godoc
// @Summary Киоск по ID
// @Tags kiosks
// @Produce json
// @Param kid path string true "ID киоска, например kiosk_001"
// @Success 200 {object} dto.KioskResponse
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Router /kiosks/{kid} [get]
func (h *KioskHandler) GetKiosk(c *gin.Context) {
	k, err := h.catalog.GetKiosk(c.Request.Context(), c.Param("kid"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToKioskResponse(k))
}

// UpdateKiosk godoc
// @Summary Изменение названия и расположения киоска
// @Tags kiosks
// @Accept json
// @Produce json
// @Param kid path string true "ID киоска"
// @Param kiosk body dto.UpdateKioskRequest true "Новые данные"
// @Success 200 {object} dto.KioskResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Router /kiosks/{kid} [put]
func (h *KioskHandler) UpdateKiosk(c *gin.Context) {
	var req dto.UpdateKioskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.log, err)
		return
	}

	k, err := h.catalog.UpdateKiosk(c.Request.Context(), c.Param("kid"), service.KioskInput{Name: req.Name, Location: req.Location})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToKioskResponse(k))
}

// DeleteKiosk godoc
// @Summary Деактивация киоска
// @Description Мягкое удаление: статус меняется на inactive, история транзакций сохраняется
// @Tags kiosks
// @Produce json
// @Param kid path string true "ID киоска"
// @Success 200 {object} dto.MessageResponse
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Router /kiosks/{kid} [delete]
func (h *KioskHandler) DeleteKiosk(c *gin.Context) {
	kid := c.Param("kid")
	if err := h.catalog.DeactivateKiosk(c.Request.Context(), kid); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "Kiosk " + kid + " deactivated"})
}

// AddProduct godoc
// @Summary Добавление товара в киоск
// @Tags kiosks
// @Accept json
// @Produce json
// @Param kid path string true "ID киоска"
// @Param product body dto.AddProductToKioskRequest true "ID товара"
// @Success 200 {object} dto.MessageResponse
// @Failure 404 {object} dto.NotFoundErrorResponse "Киоск или товар не найден"
// @Failure 409 {object} dto.ConflictErrorResponse "Товар уже есть в киоске"
// @Router /kiosks/{kid}/products [post]
func (h *KioskHandler) AddProduct(c *gin.Context) {
	var req dto.AddProductToKioskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.log, err)
		return
	}

	kid := c.Param("kid")
	if err := h.catalog.AddProductToKiosk(c.Request.Context(), kid, req.PID); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "Product " + req.PID + " added to kiosk " + kid})
}

// ListProducts godoc
// @Summary Товары киоска с наличием
// @Tags kiosks
// @Produce json
// @Param kid path string true "ID киоска"
// @Success 200 {object} dto.GetKioskProductsResponse
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Router /kiosks/{kid}/products [get]
func (h *KioskHandler) ListProducts(c *gin.Context) {
	items, err := h.catalog.ListKioskProducts(c.Request.Context(), c.Param("kid"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	resp := dto.GetKioskProductsResponse{Products: make([]dto.KioskProductItem, 0, len(items))}
	for i := range items {
		resp.Products = append(resp.Products, dto.KioskProductItem{
			Product:   dto.ToProductResponse(&items[i].Product),
			Available: items[i].Available,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateProductStatus godoc
// @Summary Наличие товара в киоске
// @Tags kiosks
// @Accept json
// @Produce json
// @Param kid path string true "ID киоска"
// @Param pid path string true "ID товара"
// @Param status body dto.UpdateProductStatusRequest true "available"
// @Success 200 {object} dto.MessageResponse
// @Failure 404 {object} dto.NotFoundErrorResponse "Товар не назначен киоску"
// @Failure 409 {object} dto.ConflictErrorResponse "Статус не изменился"
// @Router /kiosks/{kid}/products/{pid} [patch]
func (h *KioskHandler) UpdateProductStatus(c *gin.Context) {
	var req dto.UpdateProductStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.log, err)
		return
	}

	pid := c.Param("pid")
	if err := h.catalog.SetProductAvailability(c.Request.Context(), c.Param("kid"), pid, *req.Available); err != nil {
		writeError(c, h.log, err)
		return
	}
	statusText := "sold out"
	if *req.Available {
		statusText = "available"
	}
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "Product " + pid + " marked as " + statusText})
}

// RemoveProduct godoc
// @Summary Удаление товара из киоска
// @Tags kiosks
// @Produce json
// @Param kid path string true "ID киоска"
// @Param pid path string true "ID товара"
// @Success 200 {object} dto.MessageResponse
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Router /kiosks/{kid}/products/{pid} [delete]
func (h *KioskHandler) RemoveProduct(c *gin.Context) {
	kid, pid := c.Param("kid"), c.Param("pid")
	if err := h.catalog.RemoveProductFromKiosk(c.Request.Context(), kid, pid); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "Product " + pid + " removed from kiosk " + kid})
}

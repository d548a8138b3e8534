package handlers

import (
	"net/http"
	"strconv"

	"kiosk-service/internal/dto"

	"github.com/gin-gonic/gin"
)

// queryInt читает неотрицательный целый query-параметр; при ошибке сам отвечает 400.
func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, dto.NewValidationError("invalid query parameter", []dto.FieldError{
			{Field: name, Message: "must be a non-negative integer"},
		}))
		return 0, false
	}
	return n, true
}

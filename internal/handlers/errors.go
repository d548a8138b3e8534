package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"kiosk-service/internal/dto"
	"kiosk-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Ошибки валидации называют поля так же, как они приходят в JSON.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// statusFor сопоставляет класс ошибки сервиса и HTTP-статус.
func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindValidation, service.KindUnsupported:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError пишет ответ в формате dto.BaseError с кодом состояния из сервиса.
func writeError(c *gin.Context, log *zap.Logger, err error) {
	kind := service.KindOf(err)
	status := statusFor(kind)

	switch kind {
	case service.KindUnavailable:
		log.Error("storage unavailable", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, dto.NewError(service.CodeOf(err), "service temporarily unavailable, retry later"))
	case service.KindInternal:
		log.Error("internal error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, dto.NewInternalError(""))
	default:
		log.Warn("request rejected", zap.String("path", c.FullPath()), zap.String("code", service.CodeOf(err)), zap.Error(err))
		c.JSON(status, dto.NewError(service.CodeOf(err), err.Error()))
	}
}

func writeBindError(c *gin.Context, log *zap.Logger, err error) {
	log.Warn("invalid request body", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusBadRequest, dto.NewValidationError("invalid request body", fieldErrors(err)))
}

// fieldErrors пустой, если тело не разобралось как JSON.
func fieldErrors(err error) []dto.FieldError {
	fields := []dto.FieldError{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fields
	}
	for _, fe := range verrs {
		fields = append(fields, dto.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
			Tag:     fe.Tag(),
		})
	}
	return fields
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	default:
		return fe.Field() + " failed on " + fe.Tag()
	}
}

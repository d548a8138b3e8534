package dto

// BaseError универсальный корневой формат ошибки
// Code стабильный машинный код состояния (snake_case), например "kiosk_not_found"
// Message человеко-читаемое описание с id/полем, на котором споткнулись
// Details дополнительная строка (пояснение / fragment)
// Fields для ошибок валидации тела запроса (имя поля + текст)
type BaseError struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details string       `json:"details,omitempty"`
	Fields  []FieldError `json:"fields,omitempty"`
}

// FieldError отдельная ошибка по конкретному полю
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Tag     string `json:"tag,omitempty"`
}

// Семантические обёртки для swagger @Failure; по JSON совпадают с BaseError.

// ValidationErrorResponse 400
// Пример: пустое имя киоска, неизвестный менеджер
type ValidationErrorResponse BaseError

// NotFoundErrorResponse 404
// Пример: киоск/товар/транзакция не найдены
type NotFoundErrorResponse BaseError

// ConflictErrorResponse 409
// Пример: товар уже добавлен в киоск, оплата уже подтверждена
type ConflictErrorResponse BaseError

// UnavailableErrorResponse 503
// Пример: база или S3 недоступны, можно повторить позже
type UnavailableErrorResponse BaseError

// InternalErrorResponse 500
type InternalErrorResponse BaseError

func NewValidationError(msg string, fields []FieldError) ValidationErrorResponse {
	return ValidationErrorResponse(BaseError{Code: "validation_error", Message: msg, Fields: fields})
}

func NewInternalError(details string) InternalErrorResponse {
	return InternalErrorResponse(BaseError{Code: "internal_error", Message: "internal server error", Details: details})
}

// NewError ошибка с доменным кодом.
func NewError(code, msg string) BaseError {
	return BaseError{Code: code, Message: msg}
}

type MessageResponse struct {
	Message string `json:"message"`
}

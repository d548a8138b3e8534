package service

import (
	"errors"
	"fmt"
)

// Kind класс ошибки, по которому транспорт выбирает статус ответа.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnsupported
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnsupported:
		return "unsupported"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error именованное состояние с постоянным кодом. Сравнивается через errors.Is,
// подробности (id, поле) добавляются обёрткой fmt.Errorf("%w: ...").
type Error struct {
	Kind Kind
	Code string
	msg  string
}

func (e *Error) Error() string { return e.msg }

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, msg: msg}
}

var (
	ErrInvalidKioskData       = newError(KindValidation, "invalid_kiosk_data", "invalid kiosk data")
	ErrInvalidProductData     = newError(KindValidation, "invalid_product_data", "invalid product data")
	ErrInvalidTransactionData = newError(KindValidation, "invalid_transaction_data", "invalid transaction data")
	ErrProductNotAvailable    = newError(KindValidation, "product_not_available", "product not available at kiosk")

	ErrKioskNotFound        = newError(KindNotFound, "kiosk_not_found", "kiosk not found")
	ErrProductNotFound      = newError(KindNotFound, "product_not_found", "product not found")
	ErrProductNotAssigned   = newError(KindNotFound, "product_not_assigned", "product not assigned to kiosk")
	ErrTransactionNotFound  = newError(KindNotFound, "payment_not_found", "transaction not found")
	ErrProductImageNotFound = newError(KindNotFound, "product_image_not_found", "product has no uploaded image")

	ErrKioskAlreadyExists     = newError(KindConflict, "kiosk_already_exists", "kiosk already exists")
	ErrProductAlreadyExists   = newError(KindConflict, "product_already_exists", "product already exists")
	ErrProductAlreadyAssigned = newError(KindConflict, "product_already_assigned", "product already exists in kiosk")
	ErrAvailabilityUnchanged  = newError(KindConflict, "product_status_unchanged", "product availability unchanged")
	ErrKioskInactive          = newError(KindConflict, "kiosk_inactive", "kiosk is inactive")
	ErrAlreadyCompleted       = newError(KindConflict, "payment_already_completed", "payment already completed")

	ErrUnsupportedMethod = newError(KindUnsupported, "invalid_payment_type", "unsupported payment method")
	ErrInvalidPayee      = newError(KindUnsupported, "invalid_manager", "invalid manager")

	ErrUnavailable       = newError(KindUnavailable, "storage_unavailable", "storage unavailable")
	ErrConcurrentUpdate  = newError(KindUnavailable, "concurrent_update", "too many concurrent updates, retry later")
	ErrBlobStoreDisabled = newError(KindUnavailable, "blob_store_disabled", "image storage is not configured")
)

// KindOf возвращает класс ошибки; всё, что не *Error, считается внутренней ошибкой.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf возвращает стабильный код ошибки для клиента.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal_error"
}

// unavailable помечает сбой хранилища как инфраструктурный; op описывает операцию.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

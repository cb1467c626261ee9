package model

import "errors"

// ErrorKind класс ошибки, по нему вызывающая сторона решает что делать
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"         // Исправить запрос
	KindConflict          ErrorKind = "conflict"           // Перечитать данные и повторить
	KindInsufficientFunds ErrorKind = "insufficient_funds" // Бизнес-правило, не повторять
	KindNotFound          ErrorKind = "not_found"
	KindForbidden         ErrorKind = "forbidden"
	KindUnauthenticated   ErrorKind = "unauthenticated"
	KindUnavailable       ErrorKind = "unavailable" // Хранилище недоступно, повторить с backoff
)

// Error типизированная ошибка ядра
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

var (
	ErrNotAuthenticated        = newError(KindUnauthenticated, "caller identity is missing")
	ErrSelfBooking             = newError(KindValidation, "cannot book own post")
	ErrInsufficientSelection   = newError(KindValidation, "selected slots do not match course option")
	ErrCourseOptionUnavailable = newError(KindValidation, "course option is not offered by this post")
	ErrInvalidAmount           = newError(KindValidation, "transfer amount must be positive")
	ErrSelfTransfer            = newError(KindValidation, "cannot transfer to the same account")
	ErrInvalidRating           = newError(KindValidation, "rating must be between 1 and 5")
	ErrInvalidNotification     = newError(KindValidation, "notification is not a course end notification")
	ErrSlotUnavailable         = newError(KindConflict, "slot is not available")
	ErrNotPending              = newError(KindConflict, "booking is not pending")
	ErrTransferExists          = newError(KindConflict, "transfer for booking already applied")
	ErrNotAuthorized           = newError(KindForbidden, "caller is not allowed to perform this action")
	ErrInsufficientFunds       = newError(KindInsufficientFunds, "insufficient coins")
	ErrNotFound                = newError(KindNotFound, "not found")
	ErrLinkTokenInvalid        = newError(KindNotFound, "telegram link token is invalid or expired")
	ErrTelegramLinked          = newError(KindConflict, "telegram account is linked to another user")
	ErrStorageUnavailable      = newError(KindUnavailable, "storage unavailable")
)

// KindOf возвращает класс ошибки, для неизвестных ошибок KindUnavailable
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnavailable
}

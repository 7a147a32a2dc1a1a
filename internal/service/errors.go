package service

import (
	"errors"
	"fmt"
)

// Kind вид ошибки сервиса. HTTP слой отображает его в код ответа.
type Kind string

const (
	KindInvalidInput          Kind = "invalid_input"
	KindForbidden             Kind = "forbidden"
	KindNotFound              Kind = "not_found"
	KindSlotUnavailable       Kind = "slot_unavailable"
	KindDuplicateStageBooking Kind = "duplicate_stage_booking"
	KindStoreFailure          Kind = "store_failure"
)

// Error типизированная ошибка сервиса.
// Message безопасно показывать клиенту, Err - только в логах.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает по виду, чтобы работало errors.Is(err, ErrSlotUnavailable)
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

var (
	ErrInvalidInput          = &Error{Kind: KindInvalidInput}
	ErrForbidden             = &Error{Kind: KindForbidden}
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrSlotUnavailable       = &Error{Kind: KindSlotUnavailable}
	ErrDuplicateStageBooking = &Error{Kind: KindDuplicateStageBooking}
	ErrStoreFailure          = &Error{Kind: KindStoreFailure}
)

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func invalidInput(format string, args ...any) *Error {
	return newError(KindInvalidInput, fmt.Sprintf(format, args...))
}

func forbidden(message string) *Error {
	return newError(KindForbidden, message)
}

func notFound(message string) *Error {
	return newError(KindNotFound, message)
}

func storeFailure(op string, err error) *Error {
	return &Error{Kind: KindStoreFailure, Message: op + " failed", Err: err}
}

// KindOf возвращает вид ошибки. Нетипизированные ошибки считаются сбоем хранилища.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStoreFailure
}

// MessageOf возвращает сообщение для клиента без внутренних деталей
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	switch KindOf(err) {
	case KindStoreFailure:
		return "internal error, please retry"
	default:
		return string(KindOf(err))
	}
}

// Package apperror описывает таксономию ошибок сервиса.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind - класс ошибки
type Kind string

const (
	KindUnknown    Kind = "unknown"
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindForbidden  Kind = "forbidden"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindTransient  Kind = "transient"
	// KindRateLimited - клиент превысил лимит запросов
	KindRateLimited Kind = "rate_limited"
)

// Машиночитаемые коды ответа
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeNoToken      = "NO_TOKEN"
	CodeInvalidToken = "INVALID_TOKEN"
	CodeForbidden    = "FORBIDDEN"
	CodeConflict     = "INVALID_STATUS_TRANSITION"
	CodeDuplicate    = "SUBMISSION_IN_PROGRESS"
	CodeNotFound     = "NOT_FOUND"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
	CodeServer       = "SERVER_ERROR"
	CodeRateLimited  = "RATE_LIMITED"
)

// Error - ошибка домена с классом и признаком повторяемости
type Error struct {
	Kind      Kind
	Code      string
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func Auth(code, message string) *Error {
	return &Error{Kind: KindAuth, Code: code, Message: message}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Code: CodeForbidden, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Transient оборачивает временный сбой хранилища или локатора
func Transient(err error, format string, args ...any) *Error {
	return &Error{Kind: KindTransient, Code: CodeUnavailable, Message: fmt.Sprintf(format, args...), Err: err}
}

// RateLimited - превышен лимит запросов; клиент может повторить позже
func RateLimited(message string) *Error {
	return &Error{Kind: KindRateLimited, Code: CodeRateLimited, Message: message, Retryable: true}
}

// WithRetryable отмечает, что клиент может безопасно повторить запрос
func (e *Error) WithRetryable() *Error {
	e.Retryable = true
	return e
}

// WithCode заменяет код ответа
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// KindOf возвращает класс ошибки; для ошибок вне таксономии - KindUnknown
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// Is сообщает, относится ли ошибка к классу kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable сообщает, можно ли повторить запрос
func IsRetryable(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// HTTPStatus сопоставляет класс ошибки HTTP-статусу
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindTransient:
		return http.StatusServiceUnavailable
	case KindRateLimited:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

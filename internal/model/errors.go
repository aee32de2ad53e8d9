package model

import (
	"fmt"
	"time"
)

// ErrorKind классифицирует ошибки бизнес-правил.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindConflict          ErrorKind = "conflict"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindState             ErrorKind = "state"
	KindNotFound          ErrorKind = "not_found"
	KindForbidden         ErrorKind = "forbidden"
	KindThrottled         ErrorKind = "throttled"
)

// Error описывает типизированную ошибку бизнес-правила с причиной, понятной вызывающему.
type Error struct {
	Kind   ErrorKind
	Reason string
	// RetryAfter заполняется для KindThrottled.
	RetryAfter time.Duration
	// Shortfall заполняется для KindInsufficientFunds.
	Shortfall int64
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Is позволяет сравнивать ошибку с сентинелями по виду через errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds}
	ErrState             = &Error{Kind: KindState}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrThrottled         = &Error{Kind: KindThrottled}
)

// Validationf создаёт ошибку валидации.
func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Reason: fmt.Sprintf(format, args...)}
}

// Conflictf создаёт ошибку конфликта (дубликат, повторное разрешение и т.п.).
func Conflictf(format string, args ...any) error {
	return &Error{Kind: KindConflict, Reason: fmt.Sprintf(format, args...)}
}

// Statef создаёт ошибку операции над сущностью в терминальном или закрытом состоянии.
func Statef(format string, args ...any) error {
	return &Error{Kind: KindState, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundf создаёт ошибку отсутствия сущности.
func NotFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Reason: fmt.Sprintf(format, args...)}
}

// Forbiddenf создаёт ошибку нехватки прав для роли.
func Forbiddenf(format string, args ...any) error {
	return &Error{Kind: KindForbidden, Reason: fmt.Sprintf(format, args...)}
}

// InsufficientFunds создаёт ошибку нехватки средств с указанием недостающей суммы.
func InsufficientFunds(shortfall int64) error {
	return &Error{
		Kind:      KindInsufficientFunds,
		Reason:    fmt.Sprintf("balance is short by %d", shortfall),
		Shortfall: shortfall,
	}
}

// Throttled создаёт ошибку превышения частоты с подсказкой, когда повторить.
func Throttled(retryAfter time.Duration) error {
	return &Error{
		Kind:       KindThrottled,
		Reason:     fmt.Sprintf("retry after %s", retryAfter.Round(time.Second)),
		RetryAfter: retryAfter,
	}
}

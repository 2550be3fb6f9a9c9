package apperrors

import (
	"context"
	"errors"
	"fmt"
)

// AppError - базовая ошибка приложения с кодом
type AppError struct {
	Err  error
	Msg  string
	Code string
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *AppError) Unwrap() error { return e.Err }

const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeTransientStorage = "TRANSIENT_STORAGE"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeForbidden        = "FORBIDDEN"
)

// ValidationError - некорректные входные данные, отбрасываются на входе
type ValidationError struct{ AppError }

// TransientStorageError - таймаут или обрыв соединения с хранилищем, можно повторить
type TransientStorageError struct{ AppError }

type NotFoundError struct{ AppError }
type ConflictError struct{ AppError }
type ForbiddenError struct{ AppError }

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{AppError{Msg: msg, Code: CodeValidation}}
}

func NewTransientStorageError(msg string, err error) *TransientStorageError {
	return &TransientStorageError{AppError{Err: err, Msg: msg, Code: CodeTransientStorage}}
}

func NewNotFoundError(msg string) *NotFoundError {
	return &NotFoundError{AppError{Msg: msg, Code: CodeNotFound}}
}

func NewConflictError(msg string) *ConflictError {
	return &ConflictError{AppError{Msg: msg, Code: CodeConflict}}
}

func NewForbiddenError(msg string) *ForbiddenError {
	return &ForbiddenError{AppError{Msg: msg, Code: CodeForbidden}}
}

var (
	// ErrAlreadyActive - для пары уже есть активная сессия, открытие не требуется
	ErrAlreadyActive = errors.New("session already active for pair")
	// ErrInvariantViolation - для одной пары найдено несколько активных сессий
	ErrInvariantViolation = errors.New("multiple active sessions for pair")
)

// Storage оборачивает ошибку хранилища во временную. Нарушения ограничений и
// "не найдено" слой db разбирает сам до вызова Storage.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var transient *TransientStorageError
	if errors.As(err, &transient) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTransientStorageError(op+": timeout", err)
	}
	return NewTransientStorageError(op, err)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsTransient(err error) bool {
	var target *TransientStorageError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsForbidden(err error) bool {
	var target *ForbiddenError
	return errors.As(err, &target)
}

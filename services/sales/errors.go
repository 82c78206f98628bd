package main

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifica um erro de negócio e carrega o status HTTP padrão
type ErrorKind struct {
	Name   string
	Status int
}

func (k *ErrorKind) Error() string { return k.Name }

var (
	ErrNotFound           = &ErrorKind{Name: "not found", Status: http.StatusNotFound}
	ErrValidation         = &ErrorKind{Name: "validation failed", Status: http.StatusBadRequest}
	ErrInvalidPayment     = &ErrorKind{Name: "invalid payment", Status: http.StatusBadRequest}
	ErrInsufficientStock  = &ErrorKind{Name: "insufficient stock", Status: http.StatusBadRequest}
	ErrConflictReferenced = &ErrorKind{Name: "referenced by other records", Status: http.StatusConflict}
	ErrStockConflict      = &ErrorKind{Name: "stock changed concurrently", Status: http.StatusConflict}
	ErrUpstream           = &ErrorKind{Name: "store error", Status: http.StatusInternalServerError}
	ErrUnauthorized       = &ErrorKind{Name: "authentication failed", Status: http.StatusUnauthorized}
)

// AppError é o erro que atravessa as camadas até o handler HTTP.
// Message vai para o cliente; Err fica apenas nos logs.
type AppError struct {
	Kind    *ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// Is permite errors.Is(err, ErrNotFound)
func (e *AppError) Is(target error) bool {
	kind, ok := target.(*ErrorKind)
	return ok && e.Kind == kind
}

func newAppError(kind *ErrorKind, message string, err error) *AppError {
	return &AppError{Kind: kind, Status: kind.Status, Message: message, Err: err}
}

// NewValidationError cria um erro 400 para entrada inválida
func NewValidationError(message string) *AppError {
	return newAppError(ErrValidation, message, nil)
}

// NewNotFoundError cria um erro 404
func NewNotFoundError(message string) *AppError {
	return newAppError(ErrNotFound, message, nil)
}

// NewStoreError encapsula uma falha do banco com o status da operação
func NewStoreError(status int, message string, err error) *AppError {
	return &AppError{Kind: ErrUpstream, Status: status, Message: message, Err: err}
}

// NewUnauthorizedError cria um erro 401
func NewUnauthorizedError(message string) *AppError {
	return newAppError(ErrUnauthorized, message, nil)
}

// AsAppError extrai o AppError de uma cadeia de erros
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

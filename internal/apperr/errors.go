// Package apperr defines the error taxonomy shared by the store, service and transport layers.
package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrPersistence  = errors.New("persistence failure")
	ErrConflict     = errors.New("conflict")
)

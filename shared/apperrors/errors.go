// Package apperrors holds the sentinel errors shared by every service layer.
// Services wrap them with context; handlers map them to HTTP statuses.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrForbidden           = errors.New("forbidden")
	ErrBadRequest          = errors.New("bad request")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnprocessable       = errors.New("unprocessable")
)

// NotFound builds an ErrNotFound for an entity looked up by a key.
func NotFound(entity, key string) error {
	return fmt.Errorf("%s %s: %w", entity, key, ErrNotFound)
}

// Conflict builds an ErrConflict naming the clashing field.
func Conflict(entity, field, value string) error {
	return fmt.Errorf("%s with %s %s already exists: %w", entity, field, value, ErrConflict)
}

func BadRequest(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrBadRequest)
}

func Forbidden(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrForbidden)
}

// Message strips the trailing sentinel text so the remaining context can be
// shown to API clients.
func Message(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{
		ErrNotFound, ErrConflict, ErrForbidden, ErrBadRequest,
		ErrUnauthorized, ErrInsufficientBalance, ErrUnprocessable,
	} {
		suffix := ": " + sentinel.Error()
		if len(msg) > len(suffix) && msg[len(msg)-len(suffix):] == suffix {
			return msg[:len(msg)-len(suffix)]
		}
	}
	return msg
}

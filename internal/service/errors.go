package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidCredentials is the single login failure; it never reveals
	// whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotOwner is returned when an authenticated user touches a
	// transaction owned by someone else.
	ErrNotOwner = errors.New("user not authorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")
)

// ValidationError collects every violated field of a write request.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Fields, ", "))
}

func validationError(fields ...string) error {
	return &ValidationError{Fields: fields}
}

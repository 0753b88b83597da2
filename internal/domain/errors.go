package domain

import "errors"

var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	// ErrPersistence - сбой хранилища, вызывающий может повторить запрос.
	ErrPersistence = errors.New("persistence failure")
)

// ErrMissingToken и ErrInvalidToken совпадают с ErrUnauthorized через errors.Is.
var (
	ErrMissingToken error = &authError{msg: "missing token"}
	ErrInvalidToken error = &authError{msg: "invalid token"}
)

type authError struct{ msg string }

func (e *authError) Error() string { return e.msg }

func (e *authError) Is(target error) bool { return target == ErrUnauthorized }

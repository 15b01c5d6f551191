package myerrors

import (
	"errors"
	"net/http"
)

// Business conditions are sentinel values, never panics: handlers branch on
// them to pick a status code, services return them without wrapping control
// flow in exceptions.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("state conflict")
)

// HTTPStatus maps the taxonomy to wire codes. Anything outside the taxonomy
// is an infrastructure failure and surfaces as 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

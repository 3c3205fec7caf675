package apierr

import (
	"fmt"
	"net/http"
)

// Kind partitions domain failures the way callers must handle them.
type Kind string

const (
	KindValidation       Kind = "VALIDATION"
	KindConflict         Kind = "CONFLICT"
	KindNotFound         Kind = "NOT_FOUND"
	KindCatalogIntegrity Kind = "CATALOG_INTEGRITY"
)

type Error struct {
	Status int
	Kind   Kind
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, kind Kind, code string, err error) *Error {
	return &Error{Status: status, Kind: kind, Code: code, Err: err}
}

func Validation(code string, err error) *Error {
	return New(http.StatusBadRequest, KindValidation, code, err)
}

func Conflict(code string, err error) *Error {
	return New(http.StatusConflict, KindConflict, code, err)
}

func NotFound(code string, err error) *Error {
	return New(http.StatusNotFound, KindNotFound, code, err)
}

func CatalogIntegrity(code string, err error) *Error {
	return New(http.StatusInternalServerError, KindCatalogIntegrity, code, err)
}

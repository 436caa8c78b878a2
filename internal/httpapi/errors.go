package httpapi

import "errors"

const (
	ErrInvalidJSON  = "invalid json"
	ErrInvalidID    = "invalid broadcast id"
	ErrDependency   = "dependency error"
	ErrUnauthorized = "unauthorized"
	ErrForbidden    = "forbidden"
)

var errUnauthorized = errors.New(ErrUnauthorized)

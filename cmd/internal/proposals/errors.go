package proposals

import "errors"

var (
	ErrInvalid      = errors.New("lawyer id and description are required")
	ErrTooLong      = errors.New("description is too long")
	ErrNotLawyer    = errors.New("addressee is not a lawyer")
	ErrNotFound     = errors.New("proposal not found")
	ErrForbidden    = errors.New("only the addressed lawyer may respond")
	ErrBadStatus    = errors.New("invalid proposal status")
)

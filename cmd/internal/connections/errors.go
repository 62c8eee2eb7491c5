package connections

import "errors"

var (
	ErrInvalid   = errors.New("invalid connection request")
	ErrSelf      = errors.New("cannot connect with yourself")
	ErrNotFound  = errors.New("connection not found")
	ErrConflict  = errors.New("a connection or request already exists")
	ErrForbidden = errors.New("only the recipient may respond")
)

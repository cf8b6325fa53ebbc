package xcache

import "errors"

var (
	ErrNilClient  = errors.New("xcache: nil client")
	ErrEmptyKey   = errors.New("xcache: empty key")
	ErrClosed     = errors.New("xcache: closed")
	ErrInvalidTTL = errors.New("xcache: ttl must be positive")
)

package xlru

import "errors"

var (
	// ErrInvalidSize Size 必须 > 0。
	ErrInvalidSize = errors.New("xlru: size must be positive")

	// ErrInvalidTTL TTL 不能为负。
	ErrInvalidTTL = errors.New("xlru: ttl must not be negative")
)

package xbreaker

import (
	"errors"
	"fmt"

	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/xdelay/pkg/resilience/xretry"
)

var (
	ErrNilBreaker = errors.New("xbreaker: nil breaker")
	ErrNilContext = errors.New("xbreaker: nil context")
	ErrNilFunc    = errors.New("xbreaker: nil func")

	// ErrOpenState 熔断器打开。
	ErrOpenState = gobreaker.ErrOpenState
	// ErrTooManyRequests HalfOpen 状态下探测请求已满。
	ErrTooManyRequests = gobreaker.ErrTooManyRequests
)

// BreakerError 熔断器拒绝执行时返回的错误。
type BreakerError struct {
	Err   error
	Name  string
	State State
}

func (e *BreakerError) Error() string {
	return fmt.Sprintf("breaker %s (%s): %v", e.Name, e.State, e.Err)
}

func (e *BreakerError) Unwrap() error { return e.Err }

func wrap(err error, name string, state State) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		// 熔断拒绝立即失败，不再交给重试器退避
		return xretry.Permanent(&BreakerError{Err: err, Name: name, State: state})
	}
	return err
}

// IsRejected 判断错误是否为熔断拒绝。
func IsRejected(err error) bool {
	var be *BreakerError
	return errors.As(err, &be)
}

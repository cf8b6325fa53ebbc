package xretry

import "errors"

var (
	// ErrNilRetryer Retryer 为 nil。
	ErrNilRetryer = errors.New("xretry: nil retryer")

	// ErrNilContext ctx 为 nil。
	ErrNilContext = errors.New("xretry: nil context")

	// ErrNilFunc 待执行函数为 nil。
	ErrNilFunc = errors.New("xretry: nil func")
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent 标记不可重试的错误，Retryer 遇到后立即返回原始错误。
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent 判断错误链中是否含有 Permanent 标记。
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

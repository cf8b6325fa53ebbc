package xsql

import "errors"

var (
	// ErrNilDB gorm.DB 为 nil。
	ErrNilDB = errors.New("xsql: nil db")

	// ErrEmptyDSN DSN 为空。
	ErrEmptyDSN = errors.New("xsql: empty dsn")

	// ErrClosed 台账已关闭。
	ErrClosed = errors.New("xsql: store closed")
)

package xsql

// Stats 台账统计。
type Stats struct {
	Operations  int64
	Errors      int64
	SlowQueries int64
	PingCount   int64
	PingErrors  int64
	// 以下来自 database/sql 连接池。
	OpenConnections int
	InUse           int
	Idle            int
	WaitCount       int64
}

package xmongo

// Stats 台账统计。
type Stats struct {
	Operations  int64
	Errors      int64
	SlowQueries int64
	PingCount   int64
	PingErrors  int64
}

package xbreaker

// ConsecutiveFailures 连续失败次数达到阈值即熔断。
type ConsecutiveFailures struct {
	threshold uint32
}

// NewConsecutiveFailures 阈值为 0 时按 1 处理。
func NewConsecutiveFailures(threshold uint32) *ConsecutiveFailures {
	return &ConsecutiveFailures{threshold: max(threshold, 1)}
}

func (p *ConsecutiveFailures) ReadyToTrip(c Counts) bool {
	return c.ConsecutiveFailures >= p.threshold
}

// FailureRatio 请求数不少于 minRequests 且失败率达到 ratio 时熔断。
type FailureRatio struct {
	ratio       float64
	minRequests uint32
}

// NewFailureRatio ratio 截断到 (0, 1]。
func NewFailureRatio(ratio float64, minRequests uint32) *FailureRatio {
	if ratio <= 0 || ratio > 1 {
		ratio = 0.5
	}
	return &FailureRatio{ratio: ratio, minRequests: max(minRequests, 1)}
}

func (p *FailureRatio) ReadyToTrip(c Counts) bool {
	if c.Requests < p.minRequests {
		return false
	}
	return float64(c.TotalFailures)/float64(c.Requests) >= p.ratio
}

var (
	_ TripPolicy = (*ConsecutiveFailures)(nil)
	_ TripPolicy = (*FailureRatio)(nil)
)

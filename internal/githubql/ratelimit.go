package githubql

import (
	"math"
	"time"

	"github.com/shurcooL/githubv4"
)

// RateLimit là fragment rateLimit đính kèm mọi query
type RateLimit struct {
	Limit     githubv4.Int
	Cost      githubv4.Int
	Used      githubv4.Int
	Remaining githubv4.Int
	ResetAt   githubv4.DateTime
}

// Snapshot là trạng thái rate limit đã chuyển về kiểu Go thuần
type Snapshot struct {
	Used      int
	Remaining int
	Limit     int
	Cost      int
	ResetAt   time.Time
}

func (r RateLimit) Snapshot() Snapshot {
	return Snapshot{
		Used:      int(r.Used),
		Remaining: int(r.Remaining),
		Limit:     int(r.Limit),
		Cost:      int(r.Cost),
		ResetAt:   r.ResetAt.Time,
	}
}

// PercentageUsed = used/limit*100, làm tròn 2 chữ số. Không clamp: used có thể
// cũ hơn cửa sổ vừa reset nên giá trị trên 100 vẫn được giữ nguyên để báo cáo.
func (s Snapshot) PercentageUsed() float64 {
	if s.Limit == 0 {
		return 0
	}
	p := float64(s.Used) / float64(s.Limit) * 100
	return math.Round(p*100) / 100
}

// SnapshotCarrier được implement bởi mọi query struct có fragment rateLimit
type SnapshotCarrier interface {
	RateLimitSnapshot() Snapshot
}

// ViewerCarrier được implement bởi query có field viewer
type ViewerCarrier interface {
	ViewerLogin() string
}

package ratelimit

import (
	"time"

	"gitee.com/flycash/push-relay/internal/domain"
)

const (
	DefaultPeriod      = time.Minute
	DefaultSingleLimit = 5
	DefaultFanoutLimit = 30
)

// Decision 一次限流判断的结果，Next 由调用方写回到所属实体上
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Next      domain.RateWindow
}

// FixedWindow 固定窗口限流器，本身无状态，窗口数据挂在推送目标上
type FixedWindow struct {
	Limit  int
	Period time.Duration
}

// NewFixedWindow 创建固定窗口限流器，非法参数退回默认值
func NewFixedWindow(limit int, period time.Duration) FixedWindow {
	if limit <= 0 {
		limit = DefaultSingleLimit
	}
	if period <= 0 {
		period = DefaultPeriod
	}
	return FixedWindow{Limit: limit, Period: period}
}

// Check 判断是否放行
// 窗口过期：放行并开启新窗口，count=1
// 窗口内未超限：放行，count+1，resetAt 不变
// 超限：拒绝，窗口原样返回
func (f FixedWindow) Check(window domain.RateWindow, now time.Time) Decision {
	if !now.Before(window.ResetAt) {
		next := domain.RateWindow{Count: 1, ResetAt: now.Add(f.Period)}
		return Decision{
			Allowed:   true,
			Remaining: f.remaining(next.Count),
			ResetAt:   next.ResetAt,
			Next:      next,
		}
	}
	if window.Count < f.Limit {
		next := domain.RateWindow{Count: window.Count + 1, ResetAt: window.ResetAt}
		return Decision{
			Allowed:   true,
			Remaining: f.remaining(next.Count),
			ResetAt:   next.ResetAt,
			Next:      next,
		}
	}
	return Decision{
		Allowed:   false,
		Remaining: 0,
		ResetAt:   window.ResetAt,
		Next:      window,
	}
}

func (f FixedWindow) remaining(count int) int {
	if count >= f.Limit {
		return 0
	}
	return f.Limit - count
}

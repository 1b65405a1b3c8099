package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/ecodeclub/ekit/retry"
)

const (
	TypeFixed       = "fixed"
	TypeExponential = "exponential"
)

type Config struct {
	Type               string                    `yaml:"type"` // 重试策略
	FixedInterval      *FixedIntervalConfig      `yaml:"fixedInterval"`
	ExponentialBackoff *ExponentialBackoffConfig `yaml:"exponentialBackoff"`
}

type ExponentialBackoffConfig struct {
	// 初始重试间隔
	InitialInterval time.Duration `yaml:"initialInterval"`
	// 最大重试间隔
	MaxInterval time.Duration `yaml:"maxInterval"`
	// 最大重试次数
	MaxRetries int32 `yaml:"maxRetries"`
}

type FixedIntervalConfig struct {
	MaxRetries int32         `yaml:"maxRetries"`
	Interval   time.Duration `yaml:"interval"`
}

// NewRetry 策略是有状态的，每次重试流程都要新建一个
func NewRetry(cfg Config) (retry.Strategy, error) {
	switch cfg.Type {
	case TypeFixed:
		if cfg.FixedInterval == nil {
			return nil, fmt.Errorf("retry type %s: missing fixedInterval", cfg.Type)
		}
		return retry.NewFixedIntervalRetryStrategy(cfg.FixedInterval.Interval, cfg.FixedInterval.MaxRetries)
	case TypeExponential:
		if cfg.ExponentialBackoff == nil {
			return nil, fmt.Errorf("retry type %s: missing exponentialBackoff", cfg.Type)
		}
		return retry.NewExponentialBackoffRetryStrategy(cfg.ExponentialBackoff.InitialInterval,
			cfg.ExponentialBackoff.MaxInterval, cfg.ExponentialBackoff.MaxRetries)
	default:
		return nil, fmt.Errorf("unknown retry type: %s", cfg.Type)
	}
}

// Do 执行 fn，失败且 retryable 返回 true 时按策略等待后重试
// 策略用完或者 ctx 结束时返回最后一次的错误
func Do(ctx context.Context, s retry.Strategy, fn func() error, retryable func(error) bool) error {
	for {
		err := fn()
		if err == nil || !retryable(err) {
			return err
		}
		next, ok := s.Next()
		if !ok {
			return err
		}
		timer := time.NewTimer(next)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

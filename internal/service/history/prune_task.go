package history

import (
	"context"
	"time"

	"github.com/gotomicro/ego/core/elog"
	"github.com/meoying/dlock-go"
)

const (
	pruneLockKey        = "push_relay_history_prune"
	defaultLockTimeout  = 3 * time.Second
	defaultLockDuration = 5 * time.Minute
)

// PruneTask 定时清理过期推送记录，多实例部署时用分布式锁保证只有一个实例在跑
type PruneTask struct {
	dclient       dlock.Client
	svc           Service
	retentionDays int
	logger        *elog.Component
}

func NewPruneTask(dclient dlock.Client, svc Service, cfg Config) *PruneTask {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = DefaultConfig().RetentionDays
	}
	return &PruneTask{
		dclient:       dclient,
		svc:           svc,
		retentionDays: cfg.RetentionDays,
		logger:        elog.DefaultLogger.With(elog.String("key", pruneLockKey)),
	}
}

// Do 没抢到锁说明别的实例在清理，直接返回
func (t *PruneTask) Do(ctx context.Context) error {
	lock, err := t.dclient.NewLock(ctx, pruneLockKey, defaultLockDuration)
	if err != nil {
		t.logger.Error("初始化分布式锁失败", elog.FieldErr(err))
		return err
	}
	lockCtx, cancel := context.WithTimeout(ctx, defaultLockTimeout)
	err = lock.Lock(lockCtx)
	cancel()
	if err != nil {
		t.logger.Warn("没有抢到分布式锁，跳过本次清理", elog.FieldErr(err))
		return nil
	}
	defer func() {
		// ctx 可能已经被取消了，仍然要尝试解锁
		unCtx, cancel := context.WithTimeout(context.Background(), defaultLockTimeout)
		//nolint:contextcheck // 原始 ctx 可能已被取消
		if unErr := lock.Unlock(unCtx); unErr != nil {
			t.logger.Error("释放分布式锁失败", elog.FieldErr(unErr))
		}
		cancel()
	}()

	cnt, err := t.svc.Prune(ctx, t.retentionDays)
	if err != nil {
		t.logger.Error("清理过期推送记录失败", elog.FieldErr(err))
		return err
	}
	t.logger.Info("清理过期推送记录完成", elog.Int("count", cnt))
	return nil
}

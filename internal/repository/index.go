package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"gitee.com/flycash/push-relay/internal/repository/store"
	"github.com/pkg/errors"
)

// key 布局
const (
	channelKeyPrefix          = "channel:"
	channelListKey            = "channels"
	targetKeyPrefix           = "target:"
	targetKeyIndexPrefix      = "target_key:"
	targetListKey             = "targets"
	recipientKeyPrefix        = "recipient:"
	recipientIndexPrefix      = "recipient_idx:"
	targetRecipientListPrefix = "target_recipients:"
	bindStateKeyPrefix        = "bindstate:"
	bindCodeKeyPrefix         = "bindcode:"
	deliveryKeyPrefix         = "delivery:"
	deliveryListKey           = "deliveries"
	deliveryTargetListPrefix  = "deliveries_target:"
)

func getJSON[T any](ctx context.Context, s store.Store, key string) (T, error) {
	var val T
	data, err := s.Get(ctx, key)
	if err != nil {
		return val, err
	}
	if err = json.Unmarshal(data, &val); err != nil {
		return val, errors.Wrapf(err, "failed to unmarshal %s", key)
	}
	return val, nil
}

func putJSON(ctx context.Context, s store.Store, key string, val any, ttl time.Duration) error {
	data, err := json.Marshal(val)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s", key)
	}
	return s.Put(ctx, key, data, ttl)
}

// idIndex 有序的 id 索引，分数是记录的创建时间，精确到微秒
// 读写都是存储上的原子操作，不需要加锁
type idIndex struct {
	store store.Store
}

func newIDIndex(s store.Store) idIndex {
	return idIndex{store: s}
}

func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}

// Add 已经存在时保持原来的位置
func (x idIndex) Add(ctx context.Context, key, id string, createdAt time.Time) error {
	return x.store.ZAdd(ctx, key, store.Z{Score: score(createdAt), Member: id})
}

func (x idIndex) Remove(ctx context.Context, key string, ids ...string) error {
	return x.store.ZRem(ctx, key, ids...)
}

// All 按创建时间正序返回全部 id
func (x idIndex) All(ctx context.Context, key string) ([]string, error) {
	return x.store.ZRange(ctx, key, store.ZAll())
}

func (x idIndex) Range(ctx context.Context, key string, q store.ZQuery) ([]string, error) {
	return x.store.ZRange(ctx, key, q)
}

func (x idIndex) Count(ctx context.Context, key string, lo, hi float64) (int, error) {
	cnt, err := x.store.ZCount(ctx, key, lo, hi)
	return int(cnt), err
}

// monotonic 同一进程内连续取到的时间严格递增，保证索引里按写入顺序排列
func monotonic(now func() time.Time) func() time.Time {
	var last atomic.Int64
	return func() time.Time {
		for {
			t := now()
			prev := last.Load()
			if t.UnixMicro() <= prev {
				t = time.UnixMicro(prev + 1)
			}
			if last.CompareAndSwap(prev, t.UnixMicro()) {
				return t
			}
		}
	}
}

// batchGet 按 id 批量读取，丢失的记录直接跳过
func batchGet[T any](ctx context.Context, s store.Store, prefix string, ids []string) ([]T, []string, error) {
	res := make([]T, 0, len(ids))
	var missing []string
	for _, id := range ids {
		val, err := getJSON[T](ctx, s, prefix+id)
		if err != nil {
			if errors.Is(err, store.ErrKeyNotFound) {
				missing = append(missing, id)
				continue
			}
			return nil, nil, err
		}
		res = append(res, val)
	}
	return res, missing, nil
}

func wrapErr(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

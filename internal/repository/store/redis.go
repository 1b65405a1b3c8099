package store

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var (
	_ Store = (*RedisStore)(nil)
	_ Taker = (*RedisStore)(nil)
)

// RedisStore 基于 Redis 的 Store 实现，所有 key 都加上命名空间前缀
type RedisStore struct {
	rdb       redis.Cmdable
	namespace string
}

func NewRedisStore(rdb redis.Cmdable, namespace string) *RedisStore {
	if namespace != "" && !strings.HasSuffix(namespace, ":") {
		namespace += ":"
	}
	return &RedisStore{rdb: rdb, namespace: namespace}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.rdb.Get(ctx, s.fullKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound
		}
		return nil, errors.Wrapf(err, "failed to get %s from redis", key)
	}
	return val, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	err := s.rdb.Set(ctx, s.fullKey(key), val, ttl).Err()
	if err != nil {
		return errors.Wrapf(err, "failed to set %s to redis", key)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	err := s.rdb.Del(ctx, s.fullKey(key)).Err()
	if err != nil {
		return errors.Wrapf(err, "failed to delete %s from redis", key)
	}
	return nil
}

// Take 使用 GETDEL，保证同一个 key 只会被一个调用方取到
func (s *RedisStore) Take(ctx context.Context, key string) ([]byte, error) {
	val, err := s.rdb.GetDel(ctx, s.fullKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound
		}
		return nil, errors.Wrapf(err, "failed to getdel %s from redis", key)
	}
	return val, nil
}

// List 基于 SCAN，cursor 为 "0" 或空串表示从头开始
// SCAN 每次返回的数量只是近似值，可能多于或少于 limit
func (s *RedisStore) List(ctx context.Context, prefix string, limit int, cursor string) (ListResult, error) {
	var cur uint64
	if cursor != "" {
		c, err := strconv.ParseUint(cursor, 10, 64)
		if err != nil {
			return ListResult{}, errors.Wrapf(err, "invalid cursor %q", cursor)
		}
		cur = c
	}
	if limit <= 0 {
		limit = defaultListBatch
	}
	keys, next, err := s.rdb.Scan(ctx, cur, s.fullKey(prefix)+"*", int64(limit)).Result()
	if err != nil {
		return ListResult{}, errors.Wrapf(err, "failed to scan %s", prefix)
	}
	res := ListResult{
		Keys:     make([]string, 0, len(keys)),
		Complete: next == 0,
	}
	for _, k := range keys {
		res.Keys = append(res.Keys, strings.TrimPrefix(k, s.namespace))
	}
	if !res.Complete {
		res.Cursor = strconv.FormatUint(next, 10)
	}
	return res, nil
}

// ZAdd 使用 ZADD NX，重复写入不会改变成员原来的位置
func (s *RedisStore) ZAdd(ctx context.Context, key string, members ...Z) error {
	if len(members) == 0 {
		return nil
	}
	zs := make([]redis.Z, 0, len(members))
	for _, m := range members {
		zs = append(zs, redis.Z{Score: m.Score, Member: m.Member})
	}
	if err := s.rdb.ZAddNX(ctx, s.fullKey(key), zs...).Err(); err != nil {
		return errors.Wrapf(err, "failed to zadd %s", key)
	}
	return nil
}

func (s *RedisStore) ZRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, 0, len(members))
	for _, m := range members {
		args = append(args, m)
	}
	if err := s.rdb.ZRem(ctx, s.fullKey(key), args...).Err(); err != nil {
		return errors.Wrapf(err, "failed to zrem %s", key)
	}
	return nil
}

func (s *RedisStore) ZRange(ctx context.Context, key string, q ZQuery) ([]string, error) {
	opt := &redis.ZRangeBy{
		Min:    formatScore(q.Min),
		Max:    formatScore(q.Max),
		Offset: q.Offset,
		Count:  q.Count,
	}
	// LIMIT 的 count 为负数表示取到末尾
	if opt.Count <= 0 {
		opt.Count = 0
		if opt.Offset > 0 {
			opt.Count = -1
		}
	}
	var (
		res []string
		err error
	)
	if q.Rev {
		res, err = s.rdb.ZRevRangeByScore(ctx, s.fullKey(key), opt).Result()
	} else {
		res, err = s.rdb.ZRangeByScore(ctx, s.fullKey(key), opt).Result()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to zrange %s", key)
	}
	return res, nil
}

func (s *RedisStore) ZCount(ctx context.Context, key string, lo, hi float64) (int64, error) {
	cnt, err := s.rdb.ZCount(ctx, s.fullKey(key), formatScore(lo), formatScore(hi)).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "failed to zcount %s", key)
	}
	return cnt, nil
}

func formatScore(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "+inf"
	case math.IsInf(f, -1):
		return "-inf"
	default:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
}

func (s *RedisStore) fullKey(key string) string {
	return s.namespace + key
}

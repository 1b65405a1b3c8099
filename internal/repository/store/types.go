package store

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
)

var ErrKeyNotFound = errors.New("key not found")

// ListResult 一页 key，Complete 为 true 时说明已经遍历完
type ListResult struct {
	Keys     []string
	Complete bool
	Cursor   string
}

// Store 底层 KV 存储能力
type Store interface {
	// Get key 不存在时返回 ErrKeyNotFound
	Get(ctx context.Context, key string) ([]byte, error)
	// Put ttl 为 0 表示不过期
	Put(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// List 按前缀分页列出 key，调用方需要按 Cursor 循环直到 Complete
	List(ctx context.Context, prefix string, limit int, cursor string) (ListResult, error)

	SortedIndex
}

// Z 有序索引中的一个成员
type Z struct {
	Score  float64
	Member string
}

// ZQuery 有序索引的查询条件，分数区间是闭区间
type ZQuery struct {
	Min float64
	Max float64
	// Rev 为 true 时按分数从高到低
	Rev    bool
	Offset int64
	// Count 小于等于 0 表示不限
	Count int64
}

// ZAll 全部成员，按分数从低到高
func ZAll() ZQuery {
	return ZQuery{Min: math.Inf(-1), Max: math.Inf(1)}
}

// SortedIndex 有序索引，每个操作在存储上都是原子的，
// 多个实例并发写入同一个索引不会互相覆盖
type SortedIndex interface {
	// ZAdd 成员已经存在时保留原来的分数
	ZAdd(ctx context.Context, key string, members ...Z) error
	ZRem(ctx context.Context, key string, members ...string) error
	ZRange(ctx context.Context, key string, q ZQuery) ([]string, error)
	// ZCount 统计分数在 [lo, hi] 内的成员数
	ZCount(ctx context.Context, key string, lo, hi float64) (int64, error)
}

// Taker 原子地读取并删除，用于只能使用一次的数据
type Taker interface {
	Take(ctx context.Context, key string) ([]byte, error)
}

const defaultListBatch = 100

// ListAll 循环 cursor 取出全部匹配的 key
func ListAll(ctx context.Context, s Store, prefix string) ([]string, error) {
	var (
		keys   []string
		cursor string
	)
	for {
		res, err := s.List(ctx, prefix, defaultListBatch, cursor)
		if err != nil {
			return nil, err
		}
		keys = append(keys, res.Keys...)
		if res.Complete {
			return keys, nil
		}
		cursor = res.Cursor
	}
}

// Take 优先使用存储自身的原子能力，不支持时退化为先读后删
func Take(ctx context.Context, s Store, key string) ([]byte, error) {
	if t, ok := s.(Taker); ok {
		return t.Take(ctx, key)
	}
	val, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err = s.Delete(ctx, key); err != nil {
		return nil, err
	}
	return val, nil
}

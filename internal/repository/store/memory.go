package store

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
)

var (
	_ Store = (*MemoryStore)(nil)
	_ Taker = (*MemoryStore)(nil)
)

// MemoryStore 进程内存储，过期依赖 go-cache，适合单机部署和测试
// 有序索引不过期，保存在单独的 map 里
type MemoryStore struct {
	mu     sync.Mutex
	c      *cache.Cache
	sorted map[string]map[string]float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		c:      cache.New(cache.NoExpiration, time.Minute),
		sorted: make(map[string]map[string]float64),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	return clone(v.([]byte)), nil
}

func (s *MemoryStore) Put(_ context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	s.c.Set(key, clone(val), ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.c.Delete(key)
	s.mu.Lock()
	delete(s.sorted, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Take(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.c.Get(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	s.c.Delete(key)
	return v.([]byte), nil
}

// List cursor 是上一页最后一个 key 的下标
func (s *MemoryStore) List(_ context.Context, prefix string, limit int, cursor string) (ListResult, error) {
	offset := 0
	if cursor != "" {
		o, err := strconv.Atoi(cursor)
		if err != nil || o < 0 {
			return ListResult{}, errors.Errorf("invalid cursor %q", cursor)
		}
		offset = o
	}
	if limit <= 0 {
		limit = defaultListBatch
	}
	keys := make([]string, 0)
	for k := range s.c.Items() {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	s.mu.Lock()
	for k := range s.sorted {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	s.mu.Unlock()
	sort.Strings(keys)
	if offset >= len(keys) {
		return ListResult{Keys: []string{}, Complete: true}, nil
	}
	end := min(offset+limit, len(keys))
	res := ListResult{Keys: keys[offset:end], Complete: end == len(keys)}
	if !res.Complete {
		res.Cursor = strconv.Itoa(end)
	}
	return res, nil
}

func (s *MemoryStore) ZAdd(_ context.Context, key string, members ...Z) error {
	if len(members) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sorted[key]
	if !ok {
		set = make(map[string]float64, len(members))
		s.sorted[key] = set
	}
	for _, m := range members {
		if _, exist := set[m.Member]; !exist {
			set[m.Member] = m.Score
		}
	}
	return nil
}

func (s *MemoryStore) ZRem(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sorted[key]
	if !ok {
		return nil
	}
	for _, m := range members {
		delete(set, m)
	}
	if len(set) == 0 {
		delete(s.sorted, key)
	}
	return nil
}

// ZRange 分数相同的成员按字典序排列，和 Redis 一致
func (s *MemoryStore) ZRange(_ context.Context, key string, q ZQuery) ([]string, error) {
	s.mu.Lock()
	zs := make([]Z, 0, len(s.sorted[key]))
	for m, score := range s.sorted[key] {
		if score >= q.Min && score <= q.Max {
			zs = append(zs, Z{Score: score, Member: m})
		}
	}
	s.mu.Unlock()

	sort.Slice(zs, func(i, j int) bool {
		if zs[i].Score != zs[j].Score {
			return zs[i].Score < zs[j].Score
		}
		return zs[i].Member < zs[j].Member
	})
	if q.Rev {
		for i, j := 0, len(zs)-1; i < j; i, j = i+1, j-1 {
			zs[i], zs[j] = zs[j], zs[i]
		}
	}
	if q.Offset > 0 {
		if q.Offset >= int64(len(zs)) {
			return []string{}, nil
		}
		zs = zs[q.Offset:]
	}
	if q.Count > 0 && q.Count < int64(len(zs)) {
		zs = zs[:q.Count]
	}
	res := make([]string, 0, len(zs))
	for _, z := range zs {
		res = append(res, z.Member)
	}
	return res, nil
}

func (s *MemoryStore) ZCount(_ context.Context, key string, lo, hi float64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cnt int64
	for _, score := range s.sorted[key] {
		if score >= lo && score <= hi {
			cnt++
		}
	}
	return cnt, nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

package repository

import (
	"context"
	"encoding/json"
	"time"

	"gitee.com/flycash/push-relay/internal/domain"
	"gitee.com/flycash/push-relay/internal/errs"
	"gitee.com/flycash/push-relay/internal/repository/store"
	"github.com/pkg/errors"
)

// BindStateRepository 绑定状态，过期由存储的 TTL 保证，只能取出一次
type BindStateRepository interface {
	Save(ctx context.Context, state domain.BindState, ttl time.Duration) error
	// Take 原子地取出并删除，不存在返回 errs.ErrStateExpired
	Take(ctx context.Context, token string) (domain.BindState, error)
	// SaveCode 文本指令绑定用的短码
	SaveCode(ctx context.Context, code string, state domain.BindState, ttl time.Duration) error
	TakeCode(ctx context.Context, code string) (domain.BindState, error)
}

type bindStateRepository struct {
	store store.Store
}

func NewBindStateRepository(s store.Store) BindStateRepository {
	return &bindStateRepository{store: s}
}

func (r *bindStateRepository) Save(ctx context.Context, state domain.BindState, ttl time.Duration) error {
	return putJSON(ctx, r.store, bindStateKeyPrefix+state.Token, state, ttl)
}

func (r *bindStateRepository) Take(ctx context.Context, token string) (domain.BindState, error) {
	return r.take(ctx, bindStateKeyPrefix+token)
}

func (r *bindStateRepository) SaveCode(ctx context.Context, code string, state domain.BindState, ttl time.Duration) error {
	return putJSON(ctx, r.store, bindCodeKeyPrefix+code, state, ttl)
}

func (r *bindStateRepository) TakeCode(ctx context.Context, code string) (domain.BindState, error) {
	return r.take(ctx, bindCodeKeyPrefix+code)
}

func (r *bindStateRepository) take(ctx context.Context, key string) (domain.BindState, error) {
	data, err := store.Take(ctx, r.store, key)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return domain.BindState{}, errs.ErrStateExpired
		}
		return domain.BindState{}, err
	}
	var state domain.BindState
	if err = json.Unmarshal(data, &state); err != nil {
		return domain.BindState{}, errors.Wrapf(err, "failed to unmarshal %s", key)
	}
	return state, nil
}

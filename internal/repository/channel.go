package repository

import (
	"context"
	"time"

	"gitee.com/flycash/push-relay/internal/domain"
	"gitee.com/flycash/push-relay/internal/errs"
	"gitee.com/flycash/push-relay/internal/pkg/keygen"
	"gitee.com/flycash/push-relay/internal/repository/store"
	"github.com/pkg/errors"
)

// ChannelRepository 渠道仓储
type ChannelRepository interface {
	// Create 生成 ID 后写入，返回写入后的渠道
	Create(ctx context.Context, ch domain.Channel) (domain.Channel, error)
	GetByID(ctx context.Context, id string) (domain.Channel, error)
	List(ctx context.Context) ([]domain.Channel, error)
	Update(ctx context.Context, ch domain.Channel) (domain.Channel, error)
	Delete(ctx context.Context, id string) error
}

type channelRepository struct {
	store store.Store
	ids   idIndex
	now   func() time.Time
}

func NewChannelRepository(s store.Store) ChannelRepository {
	return &channelRepository{store: s, ids: newIDIndex(s), now: monotonic(time.Now)}
}

func (r *channelRepository) Create(ctx context.Context, ch domain.Channel) (domain.Channel, error) {
	now := r.now()
	if ch.ID == "" {
		ch.ID = keygen.NewID(keygen.PrefixChannel)
	}
	ch.CreatedAt, ch.UpdatedAt = now, now
	if err := putJSON(ctx, r.store, channelKeyPrefix+ch.ID, ch, 0); err != nil {
		return domain.Channel{}, err
	}
	if err := r.ids.Add(ctx, channelListKey, ch.ID, ch.CreatedAt); err != nil {
		return domain.Channel{}, err
	}
	return ch, nil
}

func (r *channelRepository) GetByID(ctx context.Context, id string) (domain.Channel, error) {
	ch, err := getJSON[domain.Channel](ctx, r.store, channelKeyPrefix+id)
	if errors.Is(err, store.ErrKeyNotFound) {
		return domain.Channel{}, wrapErr(errs.ErrChannelNotFound, "id = %s", id)
	}
	return ch, err
}

func (r *channelRepository) List(ctx context.Context) ([]domain.Channel, error) {
	ids, err := r.ids.All(ctx, channelListKey)
	if err != nil {
		return nil, err
	}
	chs, missing, err := batchGet[domain.Channel](ctx, r.store, channelKeyPrefix, ids)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		// 顺手清掉悬挂的 id
		_ = r.ids.Remove(ctx, channelListKey, missing...)
	}
	return chs, nil
}

// Update 只允许修改名称和凭证，类型和创建时间保持不变
func (r *channelRepository) Update(ctx context.Context, ch domain.Channel) (domain.Channel, error) {
	old, err := r.GetByID(ctx, ch.ID)
	if err != nil {
		return domain.Channel{}, err
	}
	if ch.Name != "" {
		old.Name = ch.Name
	}
	if ch.Config.AppID != "" {
		old.Config.AppID = ch.Config.AppID
	}
	if ch.Config.AppSecret != "" {
		old.Config.AppSecret = ch.Config.AppSecret
	}
	old.UpdatedAt = r.now()
	if err = putJSON(ctx, r.store, channelKeyPrefix+old.ID, old, 0); err != nil {
		return domain.Channel{}, err
	}
	return old, nil
}

// Delete 先摘索引再删主记录，List 不会看到悬挂 id
func (r *channelRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	if err := r.ids.Remove(ctx, channelListKey, id); err != nil {
		return err
	}
	return r.store.Delete(ctx, channelKeyPrefix+id)
}

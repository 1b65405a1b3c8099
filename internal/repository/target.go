package repository

import (
	"context"
	"strings"
	"time"

	"gitee.com/flycash/push-relay/internal/domain"
	"gitee.com/flycash/push-relay/internal/errs"
	"gitee.com/flycash/push-relay/internal/pkg/keygen"
	"gitee.com/flycash/push-relay/internal/repository/store"
	"github.com/ecodeclub/ekit/slice"
	"github.com/gotomicro/ego/core/elog"
	"github.com/pkg/errors"
)

// TargetRepository 推送目标仓储
// 主记录、key 索引和 id 列表是分开的几次写入，中间失败会留下不一致的窗口，
// 读路径会校验索引指向的记录，Repair 负责从主记录重建索引
type TargetRepository interface {
	// Create 生成 ID 和推送 key 后写入
	Create(ctx context.Context, t domain.PushTarget) (domain.PushTarget, error)
	GetByID(ctx context.Context, id string) (domain.PushTarget, error)
	// GetByKey 通过推送 key 查找，索引缺失或者过期都视为不存在
	GetByKey(ctx context.Context, key string) (domain.PushTarget, error)
	List(ctx context.Context) ([]domain.PushTarget, error)
	ListByChannel(ctx context.Context, channelID string) ([]domain.PushTarget, error)
	// Update key、创建时间和速率窗口不会被修改
	Update(ctx context.Context, t domain.PushTarget) (domain.PushTarget, error)
	UpdateRateWindow(ctx context.Context, id string, window domain.RateWindow) error
	// Delete 级联删除接收者，接收者删除失败时目标保留，可以重试
	Delete(ctx context.Context, id string) error
	// Verify 扫描主记录检查索引，不做修改
	Verify(ctx context.Context) (RepairResult, error)
	// Repair 扫描主记录重建 key 索引和 id 列表
	Repair(ctx context.Context) (RepairResult, error)
}

// RepairResult 索引校验结果
type RepairResult struct {
	Scanned        int
	KeyIndexBad    []string
	MissingInList  []string
	DanglingInList []string
}

func (r RepairResult) Consistent() bool {
	return len(r.KeyIndexBad) == 0 && len(r.MissingInList) == 0 && len(r.DanglingInList) == 0
}

type targetRepository struct {
	store      store.Store
	ids        idIndex
	recipients RecipientRepository
	now        func() time.Time
	logger     *elog.Component
}

func NewTargetRepository(s store.Store, recipients RecipientRepository) TargetRepository {
	return &targetRepository{
		store:      s,
		ids:        newIDIndex(s),
		recipients: recipients,
		now:        monotonic(time.Now),
		logger:     elog.DefaultLogger,
	}
}

func (r *targetRepository) Create(ctx context.Context, t domain.PushTarget) (domain.PushTarget, error) {
	now := r.now()
	if t.ID == "" {
		t.ID = keygen.NewID(keygen.PrefixTarget)
	}
	if t.Key == "" {
		t.Key = keygen.NewKey(keygen.PrefixPushKey)
	}
	t.CreatedAt, t.UpdatedAt = now, now
	t.RateWindow = domain.RateWindow{}

	// 先主记录，再索引
	if err := putJSON(ctx, r.store, targetKeyPrefix+t.ID, t, 0); err != nil {
		return domain.PushTarget{}, err
	}
	if err := r.store.Put(ctx, targetKeyIndexPrefix+t.Key, []byte(t.ID), 0); err != nil {
		return domain.PushTarget{}, err
	}
	if err := r.ids.Add(ctx, targetListKey, t.ID, t.CreatedAt); err != nil {
		return domain.PushTarget{}, err
	}
	return t, nil
}

func (r *targetRepository) GetByID(ctx context.Context, id string) (domain.PushTarget, error) {
	t, err := getJSON[domain.PushTarget](ctx, r.store, targetKeyPrefix+id)
	if errors.Is(err, store.ErrKeyNotFound) {
		return domain.PushTarget{}, wrapErr(errs.ErrTargetNotFound, "id = %s", id)
	}
	return t, err
}

func (r *targetRepository) GetByKey(ctx context.Context, key string) (domain.PushTarget, error) {
	id, err := r.store.Get(ctx, targetKeyIndexPrefix+key)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return domain.PushTarget{}, wrapErr(errs.ErrKeyNotFound, "%s", key)
		}
		return domain.PushTarget{}, err
	}
	t, err := getJSON[domain.PushTarget](ctx, r.store, targetKeyPrefix+string(id))
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return domain.PushTarget{}, wrapErr(errs.ErrKeyNotFound, "%s", key)
		}
		return domain.PushTarget{}, err
	}
	if t.Key != key {
		r.logger.Warn("推送key索引指向的目标不匹配",
			elog.String("key", key),
			elog.String("targetID", t.ID))
		return domain.PushTarget{}, wrapErr(errs.ErrKeyNotFound, "%s", key)
	}
	return t, nil
}

func (r *targetRepository) List(ctx context.Context) ([]domain.PushTarget, error) {
	ids, err := r.ids.All(ctx, targetListKey)
	if err != nil {
		return nil, err
	}
	ts, missing, err := batchGet[domain.PushTarget](ctx, r.store, targetKeyPrefix, ids)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		_ = r.ids.Remove(ctx, targetListKey, missing...)
	}
	return ts, nil
}

func (r *targetRepository) ListByChannel(ctx context.Context, channelID string) ([]domain.PushTarget, error) {
	ts, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	return slice.FilterDelete(ts, func(_ int, src domain.PushTarget) bool {
		return src.ChannelID != channelID
	}), nil
}

func (r *targetRepository) Update(ctx context.Context, t domain.PushTarget) (domain.PushTarget, error) {
	old, err := r.GetByID(ctx, t.ID)
	if err != nil {
		return domain.PushTarget{}, err
	}
	t.Key = old.Key
	t.CreatedAt = old.CreatedAt
	t.RateWindow = old.RateWindow
	t.UpdatedAt = r.now()
	if err = putJSON(ctx, r.store, targetKeyPrefix+t.ID, t, 0); err != nil {
		return domain.PushTarget{}, err
	}
	return t, nil
}

// UpdateRateWindow 重新读取后只覆盖速率窗口，并发下后写者胜出
func (r *targetRepository) UpdateRateWindow(ctx context.Context, id string, window domain.RateWindow) error {
	t, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	t.RateWindow = window
	return putJSON(ctx, r.store, targetKeyPrefix+id, t, 0)
}

func (r *targetRepository) Delete(ctx context.Context, id string) error {
	t, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err = r.recipients.DeleteByParent(ctx, id); err != nil {
		return errors.Wrapf(err, "failed to cascade recipients of target %s", id)
	}
	if err = r.ids.Remove(ctx, targetListKey, id); err != nil {
		return err
	}
	if err = r.store.Delete(ctx, targetKeyIndexPrefix+t.Key); err != nil {
		return err
	}
	// 主记录最后删，前面失败时可以重试
	return r.store.Delete(ctx, targetKeyPrefix+id)
}

func (r *targetRepository) Verify(ctx context.Context) (RepairResult, error) {
	return r.reconcile(ctx, false)
}

func (r *targetRepository) Repair(ctx context.Context) (RepairResult, error) {
	return r.reconcile(ctx, true)
}

func (r *targetRepository) reconcile(ctx context.Context, fix bool) (RepairResult, error) {
	var res RepairResult
	keys, err := store.ListAll(ctx, r.store, targetKeyPrefix)
	if err != nil {
		return res, err
	}
	primaryIDs := make([]string, 0, len(keys))
	createdAt := make(map[string]time.Time, len(keys))
	for _, k := range keys {
		id := strings.TrimPrefix(k, targetKeyPrefix)
		t, err1 := getJSON[domain.PushTarget](ctx, r.store, k)
		if err1 != nil {
			if errors.Is(err1, store.ErrKeyNotFound) {
				// 扫描过程中被删除了
				continue
			}
			return res, err1
		}
		res.Scanned++
		primaryIDs = append(primaryIDs, id)
		createdAt[id] = t.CreatedAt

		indexed, err1 := r.store.Get(ctx, targetKeyIndexPrefix+t.Key)
		if err1 != nil && !errors.Is(err1, store.ErrKeyNotFound) {
			return res, err1
		}
		if string(indexed) == id {
			continue
		}
		res.KeyIndexBad = append(res.KeyIndexBad, id)
		if fix {
			if err1 = r.store.Put(ctx, targetKeyIndexPrefix+t.Key, []byte(id), 0); err1 != nil {
				return res, err1
			}
		}
	}

	listed, err := r.ids.All(ctx, targetListKey)
	if err != nil {
		return res, err
	}
	for _, id := range primaryIDs {
		if !slice.Contains(listed, id) {
			res.MissingInList = append(res.MissingInList, id)
		}
	}
	for _, id := range listed {
		if !slice.Contains(primaryIDs, id) {
			res.DanglingInList = append(res.DanglingInList, id)
		}
	}
	if fix {
		if err = r.ids.Remove(ctx, targetListKey, res.DanglingInList...); err != nil {
			return res, err
		}
		for _, id := range res.MissingInList {
			if err = r.ids.Add(ctx, targetListKey, id, createdAt[id]); err != nil {
				return res, err
			}
		}
	}
	if !res.Consistent() {
		r.logger.Warn("推送目标索引不一致",
			elog.Int("scanned", res.Scanned),
			elog.Int("keyIndexBad", len(res.KeyIndexBad)),
			elog.Int("missingInList", len(res.MissingInList)),
			elog.Int("danglingInList", len(res.DanglingInList)),
			elog.Any("fixed", fix))
	}
	return res, nil
}

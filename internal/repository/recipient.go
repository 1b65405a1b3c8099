package repository

import (
	"context"
	"time"

	"gitee.com/flycash/push-relay/internal/domain"
	"gitee.com/flycash/push-relay/internal/errs"
	"gitee.com/flycash/push-relay/internal/pkg/keygen"
	"gitee.com/flycash/push-relay/internal/repository/store"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// RecipientRepository 接收者仓储，(ParentID, PlatformUserID) 唯一
type RecipientRepository interface {
	// Create 重复绑定返回 errs.ErrDuplicateBinding
	Create(ctx context.Context, rec domain.Recipient) (domain.Recipient, error)
	GetByID(ctx context.Context, id string) (domain.Recipient, error)
	GetByPlatformUser(ctx context.Context, parentID, platformUserID string) (domain.Recipient, error)
	// ListByParent 按绑定顺序返回
	ListByParent(ctx context.Context, parentID string) ([]domain.Recipient, error)
	// Update 只更新昵称和备注
	Update(ctx context.Context, rec domain.Recipient) (domain.Recipient, error)
	Delete(ctx context.Context, id string) error
	DeleteByParent(ctx context.Context, parentID string) error
	// Attach 不存在时创建，已经存在时直接返回，created 表示是否新建
	Attach(ctx context.Context, rec domain.Recipient) (res domain.Recipient, created bool, err error)
	// SetSingle 绑定 rec 并移除同一目标下的其他接收者
	SetSingle(ctx context.Context, rec domain.Recipient) (domain.Recipient, error)
}

type recipientRepository struct {
	store store.Store
	ids   idIndex
	now   func() time.Time
}

func NewRecipientRepository(s store.Store) RecipientRepository {
	return &recipientRepository{store: s, ids: newIDIndex(s), now: monotonic(time.Now)}
}

func (r *recipientRepository) Create(ctx context.Context, rec domain.Recipient) (domain.Recipient, error) {
	if rec.ParentID == "" || rec.PlatformUserID == "" {
		return domain.Recipient{}, wrapErr(errs.ErrInvalidParameter, "缺少 parentId 或 platformUserId")
	}
	_, err := r.GetByPlatformUser(ctx, rec.ParentID, rec.PlatformUserID)
	switch {
	case err == nil:
		return domain.Recipient{}, wrapErr(errs.ErrDuplicateBinding, "target = %s, user = %s", rec.ParentID, rec.PlatformUserID)
	case !errors.Is(err, errs.ErrRecipientNotFound):
		return domain.Recipient{}, err
	}

	now := r.now()
	if rec.ID == "" {
		rec.ID = keygen.NewID(keygen.PrefixRecipient)
	}
	rec.CreatedAt, rec.UpdatedAt = now, now
	if err = putJSON(ctx, r.store, recipientKeyPrefix+rec.ID, rec, 0); err != nil {
		return domain.Recipient{}, err
	}
	if err = r.store.Put(ctx, r.indexKey(rec.ParentID, rec.PlatformUserID), []byte(rec.ID), 0); err != nil {
		return domain.Recipient{}, err
	}
	if err = r.ids.Add(ctx, targetRecipientListPrefix+rec.ParentID, rec.ID, rec.CreatedAt); err != nil {
		return domain.Recipient{}, err
	}
	return rec, nil
}

func (r *recipientRepository) GetByID(ctx context.Context, id string) (domain.Recipient, error) {
	rec, err := getJSON[domain.Recipient](ctx, r.store, recipientKeyPrefix+id)
	if errors.Is(err, store.ErrKeyNotFound) {
		return domain.Recipient{}, wrapErr(errs.ErrRecipientNotFound, "id = %s", id)
	}
	return rec, err
}

func (r *recipientRepository) GetByPlatformUser(ctx context.Context, parentID, platformUserID string) (domain.Recipient, error) {
	id, err := r.store.Get(ctx, r.indexKey(parentID, platformUserID))
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return domain.Recipient{}, wrapErr(errs.ErrRecipientNotFound, "target = %s, user = %s", parentID, platformUserID)
		}
		return domain.Recipient{}, err
	}
	rec, err := r.GetByID(ctx, string(id))
	if err != nil {
		return domain.Recipient{}, err
	}
	// 索引过期
	if rec.ParentID != parentID || rec.PlatformUserID != platformUserID {
		return domain.Recipient{}, wrapErr(errs.ErrRecipientNotFound, "target = %s, user = %s", parentID, platformUserID)
	}
	return rec, nil
}

func (r *recipientRepository) ListByParent(ctx context.Context, parentID string) ([]domain.Recipient, error) {
	listKey := targetRecipientListPrefix + parentID
	ids, err := r.ids.All(ctx, listKey)
	if err != nil {
		return nil, err
	}
	recs, missing, err := batchGet[domain.Recipient](ctx, r.store, recipientKeyPrefix, ids)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		_ = r.ids.Remove(ctx, listKey, missing...)
	}
	return recs, nil
}

func (r *recipientRepository) Update(ctx context.Context, rec domain.Recipient) (domain.Recipient, error) {
	old, err := r.GetByID(ctx, rec.ID)
	if err != nil {
		return domain.Recipient{}, err
	}
	old.Nickname = rec.Nickname
	old.Remark = rec.Remark
	old.UpdatedAt = r.now()
	if err = putJSON(ctx, r.store, recipientKeyPrefix+old.ID, old, 0); err != nil {
		return domain.Recipient{}, err
	}
	return old, nil
}

func (r *recipientRepository) Delete(ctx context.Context, id string) error {
	rec, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err = r.ids.Remove(ctx, targetRecipientListPrefix+rec.ParentID, id); err != nil {
		return err
	}
	return r.deleteRecord(ctx, rec)
}

// DeleteByParent 逐个删除，汇总全部错误；删除成功的才会从列表中移除
func (r *recipientRepository) DeleteByParent(ctx context.Context, parentID string) error {
	listKey := targetRecipientListPrefix + parentID
	ids, err := r.ids.All(ctx, listKey)
	if err != nil {
		return err
	}
	var (
		result  *multierror.Error
		removed = make([]string, 0, len(ids))
	)
	for _, id := range ids {
		rec, err1 := r.GetByID(ctx, id)
		if err1 != nil {
			if errors.Is(err1, errs.ErrRecipientNotFound) {
				removed = append(removed, id)
				continue
			}
			result = multierror.Append(result, err1)
			continue
		}
		if err1 = r.deleteRecord(ctx, rec); err1 != nil {
			result = multierror.Append(result, err1)
			continue
		}
		removed = append(removed, id)
	}
	if err = r.ids.Remove(ctx, listKey, removed...); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (r *recipientRepository) Attach(ctx context.Context, rec domain.Recipient) (domain.Recipient, bool, error) {
	existing, err := r.GetByPlatformUser(ctx, rec.ParentID, rec.PlatformUserID)
	if err != nil {
		if !errors.Is(err, errs.ErrRecipientNotFound) {
			return domain.Recipient{}, false, err
		}
		created, err1 := r.Create(ctx, rec)
		return created, err1 == nil, err1
	}
	if rec.Nickname != "" && rec.Nickname != existing.Nickname {
		existing.Nickname = rec.Nickname
		existing.UpdatedAt = r.now()
		if err = putJSON(ctx, r.store, recipientKeyPrefix+existing.ID, existing, 0); err != nil {
			return domain.Recipient{}, false, err
		}
	}
	// 修复列表中缺失的情况
	if err = r.ids.Add(ctx, targetRecipientListPrefix+rec.ParentID, existing.ID, existing.CreatedAt); err != nil {
		return domain.Recipient{}, false, err
	}
	return existing, false, nil
}

func (r *recipientRepository) SetSingle(ctx context.Context, rec domain.Recipient) (domain.Recipient, error) {
	cur, _, err := r.Attach(ctx, rec)
	if err != nil {
		return domain.Recipient{}, err
	}
	listKey := targetRecipientListPrefix + rec.ParentID
	ids, err := r.ids.All(ctx, listKey)
	if err != nil {
		return domain.Recipient{}, err
	}
	var (
		result *multierror.Error
		stale  = make([]string, 0, len(ids))
	)
	for _, id := range ids {
		if id == cur.ID {
			continue
		}
		stale = append(stale, id)
		if err1 := r.Delete(ctx, id); err1 != nil && !errors.Is(err1, errs.ErrRecipientNotFound) {
			result = multierror.Append(result, err1)
		}
	}
	if err = result.ErrorOrNil(); err != nil {
		return domain.Recipient{}, err
	}
	// 主记录已经不存在的 id 也从列表中摘掉
	if err = r.ids.Remove(ctx, listKey, stale...); err != nil {
		return domain.Recipient{}, err
	}
	return cur, nil
}

func (r *recipientRepository) deleteRecord(ctx context.Context, rec domain.Recipient) error {
	idxKey := r.indexKey(rec.ParentID, rec.PlatformUserID)
	indexed, err := r.store.Get(ctx, idxKey)
	switch {
	case err == nil && string(indexed) == rec.ID:
		if err = r.store.Delete(ctx, idxKey); err != nil {
			return err
		}
	case err != nil && !errors.Is(err, store.ErrKeyNotFound):
		return err
	}
	return r.store.Delete(ctx, recipientKeyPrefix+rec.ID)
}

func (r *recipientRepository) indexKey(parentID, platformUserID string) string {
	return recipientIndexPrefix + parentID + ":" + platformUserID
}

package repository

import (
	"context"
	"math"
	"time"

	"gitee.com/flycash/push-relay/internal/domain"
	"gitee.com/flycash/push-relay/internal/errs"
	"gitee.com/flycash/push-relay/internal/pkg/keygen"
	"gitee.com/flycash/push-relay/internal/repository/store"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// DeliveryRepository 推送记录仓储
// 全局索引和按目标的索引都以创建时间为分数，分页和时间过滤直接在索引上完成
type DeliveryRepository interface {
	Append(ctx context.Context, record domain.DeliveryRecord) (domain.DeliveryRecord, error)
	Get(ctx context.Context, id string) (domain.DeliveryRecord, error)
	// Count 满足 q 中目标和时间范围的记录数
	Count(ctx context.Context, q domain.DeliveryQuery) (int, error)
	// ListIDs 按创建时间倒序取 q 指定的一页，PageSize 小于等于 0 时返回全部
	ListIDs(ctx context.Context, q domain.DeliveryQuery) ([]string, error)
	// BatchGet targetID 是 ids 所在的索引，为空表示全局索引，悬挂的 id 会从这个索引里摘掉
	BatchGet(ctx context.Context, targetID string, ids []string) ([]domain.DeliveryRecord, error)
	// ScanBefore 遍历主记录而不是索引，返回 before 之前创建的记录
	ScanBefore(ctx context.Context, before time.Time) ([]domain.DeliveryRecord, error)
	// Remove 先从所有索引中摘掉，再删除主记录
	Remove(ctx context.Context, records ...domain.DeliveryRecord) error
}

type deliveryRepository struct {
	store store.Store
	ids   idIndex
}

func NewDeliveryRepository(s store.Store) DeliveryRepository {
	return &deliveryRepository{store: s, ids: newIDIndex(s)}
}

func (r *deliveryRepository) Append(ctx context.Context, record domain.DeliveryRecord) (domain.DeliveryRecord, error) {
	if record.ID == "" {
		record.ID = keygen.NewID(keygen.PrefixDelivery)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	if err := putJSON(ctx, r.store, deliveryKeyPrefix+record.ID, record, 0); err != nil {
		return domain.DeliveryRecord{}, err
	}
	if err := r.ids.Add(ctx, deliveryListKey, record.ID, record.CreatedAt); err != nil {
		return domain.DeliveryRecord{}, err
	}
	if record.TargetID != "" {
		if err := r.ids.Add(ctx, deliveryTargetListPrefix+record.TargetID, record.ID, record.CreatedAt); err != nil {
			return domain.DeliveryRecord{}, err
		}
	}
	return record, nil
}

func (r *deliveryRepository) Get(ctx context.Context, id string) (domain.DeliveryRecord, error) {
	rec, err := getJSON[domain.DeliveryRecord](ctx, r.store, deliveryKeyPrefix+id)
	if errors.Is(err, store.ErrKeyNotFound) {
		return domain.DeliveryRecord{}, wrapErr(errs.ErrRecordNotFound, "id = %s", id)
	}
	return rec, err
}

func (r *deliveryRepository) Count(ctx context.Context, q domain.DeliveryQuery) (int, error) {
	lo, hi := scoreRange(q)
	return r.ids.Count(ctx, r.listKey(q.TargetID), lo, hi)
}

func (r *deliveryRepository) ListIDs(ctx context.Context, q domain.DeliveryQuery) ([]string, error) {
	lo, hi := scoreRange(q)
	zq := store.ZQuery{Min: lo, Max: hi, Rev: true}
	if q.PageSize > 0 {
		page := max(q.Page, 1)
		zq.Offset = int64((page - 1) * q.PageSize)
		zq.Count = int64(q.PageSize)
	}
	return r.ids.Range(ctx, r.listKey(q.TargetID), zq)
}

func (r *deliveryRepository) BatchGet(ctx context.Context, targetID string, ids []string) ([]domain.DeliveryRecord, error) {
	recs, missing, err := batchGet[domain.DeliveryRecord](ctx, r.store, deliveryKeyPrefix, ids)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		_ = r.ids.Remove(ctx, r.listKey(targetID), missing...)
	}
	return recs, nil
}

func (r *deliveryRepository) ScanBefore(ctx context.Context, before time.Time) ([]domain.DeliveryRecord, error) {
	keys, err := store.ListAll(ctx, r.store, deliveryKeyPrefix)
	if err != nil {
		return nil, err
	}
	var res []domain.DeliveryRecord
	for _, k := range keys {
		rec, err1 := getJSON[domain.DeliveryRecord](ctx, r.store, k)
		if err1 != nil {
			if errors.Is(err1, store.ErrKeyNotFound) {
				continue
			}
			return nil, err1
		}
		if rec.CreatedAt.Before(before) {
			res = append(res, rec)
		}
	}
	return res, nil
}

func (r *deliveryRepository) Remove(ctx context.Context, records ...domain.DeliveryRecord) error {
	if len(records) == 0 {
		return nil
	}
	all := make([]string, 0, len(records))
	byTarget := make(map[string][]string)
	for i := range records {
		all = append(all, records[i].ID)
		if records[i].TargetID != "" {
			byTarget[records[i].TargetID] = append(byTarget[records[i].TargetID], records[i].ID)
		}
	}
	if err := r.ids.Remove(ctx, deliveryListKey, all...); err != nil {
		return err
	}
	var result *multierror.Error
	for targetID, ids := range byTarget {
		if err := r.ids.Remove(ctx, deliveryTargetListPrefix+targetID, ids...); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, id := range all {
		if err := r.store.Delete(ctx, deliveryKeyPrefix+id); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (r *deliveryRepository) listKey(targetID string) string {
	if targetID == "" {
		return deliveryListKey
	}
	return deliveryTargetListPrefix + targetID
}

// scoreRange 查询的时间范围换算成索引分数，精确到微秒
func scoreRange(q domain.DeliveryQuery) (float64, float64) {
	lo, hi := math.Inf(-1), math.Inf(1)
	if q.StartDate != nil {
		lo = score(*q.StartDate)
	}
	if q.EndDate != nil {
		hi = score(*q.EndDate)
	}
	return lo, hi
}

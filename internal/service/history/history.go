package history

import (
	"context"
	"fmt"
	"time"

	"gitee.com/flycash/push-relay/internal/domain"
	"gitee.com/flycash/push-relay/internal/errs"
	"gitee.com/flycash/push-relay/internal/repository"
	"github.com/gotomicro/ego/core/elog"
)

// Config 推送历史配置
type Config struct {
	DefaultPageSize int `yaml:"defaultPageSize"`
	MaxPageSize     int `yaml:"maxPageSize"`
	// RetentionDays 定时清理保留的天数
	RetentionDays int `yaml:"retentionDays"`
}

func DefaultConfig() Config {
	return Config{
		DefaultPageSize: 20,
		MaxPageSize:     100,
		RetentionDays:   30,
	}
}

// Service 推送历史，只追加，除了过期清理不会修改
type Service interface {
	Append(ctx context.Context, record domain.DeliveryRecord) (domain.DeliveryRecord, error)
	Get(ctx context.Context, id string) (domain.DeliveryRecord, error)
	// List 按创建时间倒序分页，Page 从 1 开始，Total 是过滤后的总数
	List(ctx context.Context, q domain.DeliveryQuery) (domain.DeliveryPage, error)
	// Prune 删除 retentionDays 天以前的记录，返回删除的条数
	Prune(ctx context.Context, retentionDays int) (int, error)
}

type service struct {
	repo   repository.DeliveryRepository
	cfg    Config
	now    func() time.Time
	logger *elog.Component
}

func NewService(repo repository.DeliveryRepository, cfg Config) Service {
	return newService(repo, cfg, time.Now)
}

func newService(repo repository.DeliveryRepository, cfg Config, now func() time.Time) *service {
	def := DefaultConfig()
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = def.DefaultPageSize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = def.MaxPageSize
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = def.RetentionDays
	}
	return &service{repo: repo, cfg: cfg, now: now, logger: elog.DefaultLogger}
}

func (s *service) Append(ctx context.Context, record domain.DeliveryRecord) (domain.DeliveryRecord, error) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	if record.Direction == "" {
		record.Direction = domain.DirectionOutbound
	}
	if record.Results == nil {
		record.Results = []domain.DeliveryResult{}
	}
	return s.repo.Append(ctx, record)
}

func (s *service) Get(ctx context.Context, id string) (domain.DeliveryRecord, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) List(ctx context.Context, q domain.DeliveryQuery) (domain.DeliveryPage, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = s.cfg.DefaultPageSize
	}
	if q.PageSize > s.cfg.MaxPageSize {
		q.PageSize = s.cfg.MaxPageSize
	}
	if q.StartDate != nil && q.EndDate != nil && q.EndDate.Before(*q.StartDate) {
		return domain.DeliveryPage{}, fmt.Errorf("%w: endDate 早于 startDate", errs.ErrInvalidParameter)
	}

	total, err := s.repo.Count(ctx, q)
	if err != nil {
		return domain.DeliveryPage{}, err
	}
	page := domain.DeliveryPage{
		Total:    total,
		Page:     q.Page,
		PageSize: q.PageSize,
		Items:    []domain.DeliveryRecord{},
	}
	if (q.Page-1)*q.PageSize >= total {
		return page, nil
	}
	// 索引按创建时间排序，只需要读当前页
	ids, err := s.repo.ListIDs(ctx, q)
	if err != nil {
		return domain.DeliveryPage{}, err
	}
	records, err := s.repo.BatchGet(ctx, q.TargetID, ids)
	if err != nil {
		return domain.DeliveryPage{}, err
	}
	page.Items = append(page.Items, records...)
	return page, nil
}

func (s *service) Prune(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("%w: retentionDays = %d", errs.ErrInvalidParameter, retentionDays)
	}
	cutoff := s.now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	// 遍历主记录，索引写入失败留下的记录也能被清理
	expired, err := s.repo.ScanBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}
	if err = s.repo.Remove(ctx, expired...); err != nil {
		return 0, err
	}
	s.logger.Info("清理过期推送记录",
		elog.Int("count", len(expired)),
		elog.Int("retentionDays", retentionDays))
	return len(expired), nil
}

package manage

import (
	"context"
	"fmt"

	"gitee.com/flycash/push-relay/internal/domain"
	"gitee.com/flycash/push-relay/internal/errs"
	"gitee.com/flycash/push-relay/internal/repository"
	"gitee.com/flycash/push-relay/internal/service/channel"
	"github.com/ecodeclub/ekit/slice"
	"github.com/gotomicro/ego/core/elog"
)

// Service 渠道、推送目标和接收者的管理接口
type Service interface {
	// CreateChannel 写入前先用适配器校验凭证
	CreateChannel(ctx context.Context, ch domain.Channel) (ChannelView, error)
	GetChannel(ctx context.Context, id string) (ChannelView, error)
	ListChannels(ctx context.Context) ([]ChannelView, error)
	// UpdateChannel 只更新非零字段，凭证变化时重新校验
	UpdateChannel(ctx context.Context, ch domain.Channel) (ChannelView, error)
	// DeleteChannel 仍被推送目标引用时拒绝删除
	DeleteChannel(ctx context.Context, id string) error

	CreateTarget(ctx context.Context, t domain.PushTarget) (domain.PushTarget, error)
	GetTarget(ctx context.Context, id string) (domain.PushTarget, error)
	GetTargetByKey(ctx context.Context, key string) (domain.PushTarget, error)
	ListTargets(ctx context.Context) ([]domain.PushTarget, error)
	// UpdateTarget 推送模式不能修改
	UpdateTarget(ctx context.Context, t domain.PushTarget) (domain.PushTarget, error)
	// DeleteTarget 级联删除接收者
	DeleteTarget(ctx context.Context, id string) error
	// RepairTargets fix 为 false 时只检查不修复
	RepairTargets(ctx context.Context, fix bool) (repository.RepairResult, error)

	CreateRecipient(ctx context.Context, rec domain.Recipient) (domain.Recipient, error)
	GetRecipient(ctx context.Context, id string) (domain.Recipient, error)
	ListRecipients(ctx context.Context, targetID string) ([]domain.Recipient, error)
	UpdateRecipient(ctx context.Context, rec domain.Recipient) (domain.Recipient, error)
	DeleteRecipient(ctx context.Context, id string) error
}

type service struct {
	channels   repository.ChannelRepository
	targets    repository.TargetRepository
	recipients repository.RecipientRepository
	dispatcher *channel.Dispatcher
	logger     *elog.Component
}

func NewService(
	channels repository.ChannelRepository,
	targets repository.TargetRepository,
	recipients repository.RecipientRepository,
	dispatcher *channel.Dispatcher,
) Service {
	return &service{
		channels:   channels,
		targets:    targets,
		recipients: recipients,
		dispatcher: dispatcher,
		logger:     elog.DefaultLogger,
	}
}

func (s *service) CreateChannel(ctx context.Context, ch domain.Channel) (ChannelView, error) {
	if err := ch.Validate(); err != nil {
		return ChannelView{}, err
	}
	if err := s.validateCredentials(ctx, ch); err != nil {
		return ChannelView{}, err
	}
	ch.ID = ""
	created, err := s.channels.Create(ctx, ch)
	if err != nil {
		return ChannelView{}, err
	}
	return newChannelView(created), nil
}

func (s *service) GetChannel(ctx context.Context, id string) (ChannelView, error) {
	ch, err := s.channels.GetByID(ctx, id)
	if err != nil {
		return ChannelView{}, err
	}
	return newChannelView(ch), nil
}

func (s *service) ListChannels(ctx context.Context) ([]ChannelView, error) {
	chs, err := s.channels.List(ctx)
	if err != nil {
		return nil, err
	}
	return slice.Map(chs, func(_ int, src domain.Channel) ChannelView {
		return newChannelView(src)
	}), nil
}

func (s *service) UpdateChannel(ctx context.Context, ch domain.Channel) (ChannelView, error) {
	old, err := s.channels.GetByID(ctx, ch.ID)
	if err != nil {
		return ChannelView{}, err
	}
	if ch.Type != "" && ch.Type != old.Type {
		return ChannelView{}, fmt.Errorf("%w: 渠道类型不能修改", errs.ErrInvalidParameter)
	}
	merged := old
	if ch.Config.AppID != "" {
		merged.Config.AppID = ch.Config.AppID
	}
	if ch.Config.AppSecret != "" {
		merged.Config.AppSecret = ch.Config.AppSecret
	}
	if merged.Config != old.Config {
		if err = s.validateCredentials(ctx, merged); err != nil {
			return ChannelView{}, err
		}
	}
	updated, err := s.channels.Update(ctx, ch)
	if err != nil {
		return ChannelView{}, err
	}
	return newChannelView(updated), nil
}

func (s *service) DeleteChannel(ctx context.Context, id string) error {
	ts, err := s.targets.ListByChannel(ctx, id)
	if err != nil {
		return err
	}
	if len(ts) > 0 {
		return fmt.Errorf("%w: 被 %d 个推送目标引用", errs.ErrChannelInUse, len(ts))
	}
	return s.channels.Delete(ctx, id)
}

// validateCredentials 上游拒绝凭证属于参数错误，调用失败原样返回
func (s *service) validateCredentials(ctx context.Context, ch domain.Channel) error {
	res, err := s.dispatcher.Validate(ctx, ch)
	if err != nil {
		s.logger.Error("校验渠道凭证失败",
			elog.String("appId", ch.Config.AppID),
			elog.FieldErr(err))
		return err
	}
	if !res.Valid {
		return fmt.Errorf("%w: 凭证无效 %s", errs.ErrInvalidParameter, res.Error)
	}
	return nil
}

func (s *service) CreateTarget(ctx context.Context, t domain.PushTarget) (domain.PushTarget, error) {
	if err := t.Validate(); err != nil {
		return domain.PushTarget{}, err
	}
	if _, err := s.channels.GetByID(ctx, t.ChannelID); err != nil {
		return domain.PushTarget{}, err
	}
	t.ID = ""
	return s.targets.Create(ctx, t)
}

func (s *service) GetTarget(ctx context.Context, id string) (domain.PushTarget, error) {
	return s.targets.GetByID(ctx, id)
}

func (s *service) GetTargetByKey(ctx context.Context, key string) (domain.PushTarget, error) {
	return s.targets.GetByKey(ctx, key)
}

func (s *service) ListTargets(ctx context.Context) ([]domain.PushTarget, error) {
	return s.targets.List(ctx)
}

func (s *service) UpdateTarget(ctx context.Context, t domain.PushTarget) (domain.PushTarget, error) {
	old, err := s.targets.GetByID(ctx, t.ID)
	if err != nil {
		return domain.PushTarget{}, err
	}
	if t.PushMode != old.PushMode {
		return domain.PushTarget{}, fmt.Errorf("%w: 推送模式不能修改", errs.ErrInvalidParameter)
	}
	if err = t.Validate(); err != nil {
		return domain.PushTarget{}, err
	}
	if t.ChannelID != old.ChannelID {
		if _, err = s.channels.GetByID(ctx, t.ChannelID); err != nil {
			return domain.PushTarget{}, err
		}
	}
	return s.targets.Update(ctx, t)
}

func (s *service) DeleteTarget(ctx context.Context, id string) error {
	return s.targets.Delete(ctx, id)
}

func (s *service) RepairTargets(ctx context.Context, fix bool) (repository.RepairResult, error) {
	var (
		res repository.RepairResult
		err error
	)
	if fix {
		res, err = s.targets.Repair(ctx)
	} else {
		res, err = s.targets.Verify(ctx)
	}
	if err != nil {
		return res, err
	}
	if !res.Consistent() {
		s.logger.Info("推送目标索引不一致",
			elog.Any("fixed", fix),
			elog.Int("scanned", res.Scanned),
			elog.Any("keyIndexBad", res.KeyIndexBad),
			elog.Any("missingInList", res.MissingInList),
			elog.Any("danglingInList", res.DanglingInList))
	}
	return res, nil
}

func (s *service) CreateRecipient(ctx context.Context, rec domain.Recipient) (domain.Recipient, error) {
	if rec.ParentID == "" || rec.PlatformUserID == "" {
		return domain.Recipient{}, fmt.Errorf("%w: 缺少 parentId 或 platformUserId", errs.ErrInvalidParameter)
	}
	target, err := s.targets.GetByID(ctx, rec.ParentID)
	if err != nil {
		return domain.Recipient{}, err
	}
	// 单接收者目标最多绑定一个，换绑走绑定流程
	if target.PushMode == domain.PushModeSingle {
		existing, err1 := s.recipients.ListByParent(ctx, target.ID)
		if err1 != nil {
			return domain.Recipient{}, err1
		}
		if len(existing) > 0 {
			return domain.Recipient{}, fmt.Errorf("%w: 目标 %s 已经绑定了接收者 %s",
				errs.ErrDuplicateBinding, target.ID, existing[0].ID)
		}
	}
	rec.ID = ""
	return s.recipients.Create(ctx, rec)
}

func (s *service) GetRecipient(ctx context.Context, id string) (domain.Recipient, error) {
	return s.recipients.GetByID(ctx, id)
}

func (s *service) ListRecipients(ctx context.Context, targetID string) ([]domain.Recipient, error) {
	if _, err := s.targets.GetByID(ctx, targetID); err != nil {
		return nil, err
	}
	return s.recipients.ListByParent(ctx, targetID)
}

func (s *service) UpdateRecipient(ctx context.Context, rec domain.Recipient) (domain.Recipient, error) {
	return s.recipients.Update(ctx, rec)
}

func (s *service) DeleteRecipient(ctx context.Context, id string) error {
	return s.recipients.Delete(ctx, id)
}

package push

import (
	"context"
	"fmt"
	"time"

	"gitee.com/flycash/push-relay/internal/domain"
	"gitee.com/flycash/push-relay/internal/errs"
	"gitee.com/flycash/push-relay/internal/pkg/keygen"
	"gitee.com/flycash/push-relay/internal/pkg/ratelimit"
	"gitee.com/flycash/push-relay/internal/repository"
	"gitee.com/flycash/push-relay/internal/service/channel"
	"gitee.com/flycash/push-relay/internal/service/history"
	"github.com/gotomicro/ego/core/elog"
	"golang.org/x/sync/errgroup"
)

// Config 推送配置
type Config struct {
	// Concurrency 群发时同时发送的最大数量
	Concurrency int `yaml:"concurrency"`
	// Period 限流窗口
	Period time.Duration `yaml:"period"`
	// SingleLimit 单接收者目标每个窗口的默认推送次数
	SingleLimit int `yaml:"singleLimit"`
	// FanoutLimit 群发目标每个窗口的默认推送次数
	FanoutLimit int `yaml:"fanoutLimit"`
}

func DefaultConfig() Config {
	return Config{
		Concurrency: 8,
		Period:      ratelimit.DefaultPeriod,
		SingleLimit: ratelimit.DefaultSingleLimit,
		FanoutLimit: ratelimit.DefaultFanoutLimit,
	}
}

// Request 推送内容
type Request struct {
	Title string
	Body  string
	URL   string
}

// Service 推送入口
type Service interface {
	// PushByKey 通过推送 key 推送，接收者级别的失败记录在结果里，不返回 error
	PushByKey(ctx context.Context, key string, req Request) (domain.PushResult, error)
	// PushByTarget 管理端的测试推送，和 PushByKey 走同一套流程
	PushByTarget(ctx context.Context, targetID string, req Request) (domain.PushResult, error)
}

type service struct {
	targets    repository.TargetRepository
	recipients repository.RecipientRepository
	channels   repository.ChannelRepository
	dispatcher *channel.Dispatcher
	history    history.Service
	cfg        Config
	now        func() time.Time
	logger     *elog.Component
}

func NewService(
	targets repository.TargetRepository,
	recipients repository.RecipientRepository,
	channels repository.ChannelRepository,
	dispatcher *channel.Dispatcher,
	historySvc history.Service,
	cfg Config,
) Service {
	return newService(targets, recipients, channels, dispatcher, historySvc, cfg, time.Now)
}

func newService(
	targets repository.TargetRepository,
	recipients repository.RecipientRepository,
	channels repository.ChannelRepository,
	dispatcher *channel.Dispatcher,
	historySvc history.Service,
	cfg Config,
	now func() time.Time,
) *service {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Period <= 0 {
		cfg.Period = def.Period
	}
	if cfg.SingleLimit <= 0 {
		cfg.SingleLimit = def.SingleLimit
	}
	if cfg.FanoutLimit <= 0 {
		cfg.FanoutLimit = def.FanoutLimit
	}
	return &service{
		targets:    targets,
		recipients: recipients,
		channels:   channels,
		dispatcher: dispatcher,
		history:    historySvc,
		cfg:        cfg,
		now:        now,
		logger:     elog.DefaultLogger,
	}
}

func (s *service) PushByKey(ctx context.Context, key string, req Request) (domain.PushResult, error) {
	// 格式不对的 key 不用查存储
	if !keygen.IsValidKey(key) {
		return domain.PushResult{}, fmt.Errorf("%w: %s", errs.ErrInvalidKey, key)
	}
	if err := s.checkRequest(req); err != nil {
		return domain.PushResult{}, err
	}
	target, err := s.targets.GetByKey(ctx, key)
	if err != nil {
		return domain.PushResult{}, err
	}
	return s.push(ctx, target, req)
}

func (s *service) PushByTarget(ctx context.Context, targetID string, req Request) (domain.PushResult, error) {
	if err := s.checkRequest(req); err != nil {
		return domain.PushResult{}, err
	}
	target, err := s.targets.GetByID(ctx, targetID)
	if err != nil {
		return domain.PushResult{}, err
	}
	return s.push(ctx, target, req)
}

func (s *service) checkRequest(req Request) error {
	if req.Title == "" {
		return fmt.Errorf("%w: title 不能为空", errs.ErrInvalidParameter)
	}
	return nil
}

// push 限流判断 -> 解析接收者 -> 加载渠道 -> 记录限流窗口 -> 发送 -> 写历史
// 接收者和渠道都解析成功之后才消耗配额，发送失败也算一次
func (s *service) push(ctx context.Context, target domain.PushTarget, req Request) (domain.PushResult, error) {
	empty := domain.PushResult{TargetID: target.ID, Results: []domain.DeliveryResult{}}

	decision := s.limiter(target).Check(target.RateWindow, s.now())
	if !decision.Allowed {
		return empty, fmt.Errorf("%w: target = %s, 重置时间 %s",
			errs.ErrRateLimited, target.ID, decision.ResetAt.Format(time.RFC3339))
	}

	recipients, err := s.resolveRecipients(ctx, target)
	if err != nil {
		return empty, err
	}
	ch, err := s.loadChannel(ctx, target)
	if err != nil {
		return empty, err
	}

	if err = s.targets.UpdateRateWindow(ctx, target.ID, decision.Next); err != nil {
		return empty, err
	}

	// 开始发送之后就不受调用方取消的影响了
	dctx := context.WithoutCancel(ctx)
	results := s.dispatch(dctx, ch, target, recipients, req)

	record := domain.DeliveryRecord{
		ID:        keygen.NewID(keygen.PrefixDelivery),
		Direction: domain.DirectionOutbound,
		ChannelID: ch.ID,
		TargetID:  target.ID,
		Title:     req.Title,
		Body:      req.Body,
		Results:   results,
		CreatedAt: s.now(),
	}
	res := domain.NewPushResult(record.ID, target.ID, results)
	record.Total, record.SuccessCount, record.FailedCount = res.Total, res.SuccessCount, res.FailedCount

	// 消息已经发出去了，历史写失败不能让调用方重试
	if _, err = s.history.Append(dctx, record); err != nil {
		s.logger.Error("写入推送记录失败",
			elog.String("pushID", record.ID),
			elog.String("targetID", target.ID),
			elog.FieldErr(err))
	}
	return res, nil
}

func (s *service) limiter(target domain.PushTarget) ratelimit.FixedWindow {
	limit := target.RateLimit
	if limit <= 0 {
		limit = s.cfg.SingleLimit
		if target.PushMode == domain.PushModeFanout {
			limit = s.cfg.FanoutLimit
		}
	}
	return ratelimit.NewFixedWindow(limit, s.cfg.Period)
}

func (s *service) resolveRecipients(ctx context.Context, target domain.PushTarget) ([]domain.Recipient, error) {
	recipients, err := s.recipients.ListByParent(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	switch target.PushMode {
	case domain.PushModeSingle:
		if len(recipients) == 0 {
			return nil, fmt.Errorf("%w: target = %s", errs.ErrOpenIDNotFound, target.ID)
		}
		return recipients[:1], nil
	case domain.PushModeFanout:
		if len(recipients) == 0 {
			return nil, fmt.Errorf("%w: target = %s", errs.ErrNoSubscribers, target.ID)
		}
		return recipients, nil
	default:
		return nil, fmt.Errorf("%w: PushMode = %q", errs.ErrInvalidConfig, target.PushMode)
	}
}

// loadChannel 渠道不存在、凭证不完整、类型不支持都是配置错误
func (s *service) loadChannel(ctx context.Context, target domain.PushTarget) (domain.Channel, error) {
	ch, err := s.channels.GetByID(ctx, target.ChannelID)
	if err != nil {
		if errs.CodeOf(err) == errs.CodeChannelNotFound {
			return domain.Channel{}, fmt.Errorf("%w: 渠道 %s 不存在", errs.ErrInvalidConfig, target.ChannelID)
		}
		return domain.Channel{}, err
	}
	if !ch.Config.IsComplete() {
		return domain.Channel{}, fmt.Errorf("%w: 渠道 %s 缺少凭证", errs.ErrInvalidConfig, ch.ID)
	}
	if _, err = s.dispatcher.Adapter(ch.Type); err != nil {
		return domain.Channel{}, err
	}
	return ch, nil
}

// dispatch 每个接收者独立发送，一个失败不影响其他人，等全部完成后返回
func (s *service) dispatch(ctx context.Context, ch domain.Channel, target domain.PushTarget,
	recipients []domain.Recipient, req Request) []domain.DeliveryResult {
	results := make([]domain.DeliveryResult, len(recipients))
	var eg errgroup.Group
	eg.SetLimit(s.cfg.Concurrency)
	for i := range recipients {
		rec := recipients[i]
		eg.Go(func() error {
			msg := domain.Message{
				ToUser:      rec.PlatformUserID,
				Title:       req.Title,
				Body:        req.Body,
				URL:         req.URL,
				MessageType: target.MessageType,
				TemplateID:  target.TemplateID,
			}
			result := domain.DeliveryResult{RecipientID: rec.ID, PlatformUserID: rec.PlatformUserID}
			resp, err := s.dispatcher.Send(ctx, ch, msg)
			switch {
			case err != nil:
				s.logger.Warn("推送给接收者失败",
					elog.String("targetID", target.ID),
					elog.String("recipientID", rec.ID),
					elog.FieldErr(err))
				result.Error = err.Error()
			default:
				result.Success = resp.Success
				result.ExternalID = resp.ExternalID
				result.Error = resp.Error
			}
			results[i] = result
			// 单个接收者的错误不向上传播
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

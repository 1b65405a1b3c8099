package binding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gitee.com/flycash/push-relay/internal/domain"
	"gitee.com/flycash/push-relay/internal/errs"
	"gitee.com/flycash/push-relay/internal/pkg/keygen"
	"gitee.com/flycash/push-relay/internal/repository"
	"gitee.com/flycash/push-relay/internal/service/channel"
	"gitee.com/flycash/push-relay/internal/service/history"
	"github.com/gotomicro/ego/core/elog"
)

// Service 绑定状态机：issued -> consumed，或者 issued -> expired/invalid
// state 先被原子地取出删除，然后才执行绑定，重复回调不会绑定两次
type Service interface {
	// IssueBindRedirect 生成 state 并返回上游授权地址
	IssueBindRedirect(ctx context.Context, kind domain.BindKind, targetID, redirectURI string) (Redirect, error)
	// HandleCallback 消费 state 并完成绑定，失败后 state 不会退回
	HandleCallback(ctx context.Context, cb Callback) (Binding, error)
	// IssueBindCode 生成文本指令绑定码
	IssueBindCode(ctx context.Context, kind domain.BindKind, targetID string) (BindCode, error)
	// HandleInboundCommand 处理用户发来的文本指令，每条消息都会写入历史
	HandleInboundCommand(ctx context.Context, msg InboundMessage) (Reply, error)
}

type service struct {
	targets    repository.TargetRepository
	recipients repository.RecipientRepository
	channels   repository.ChannelRepository
	states     repository.BindStateRepository
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
	states repository.BindStateRepository,
	dispatcher *channel.Dispatcher,
	historySvc history.Service,
	cfg Config,
) Service {
	return newService(targets, recipients, channels, states, dispatcher, historySvc, cfg, time.Now)
}

func newService(
	targets repository.TargetRepository,
	recipients repository.RecipientRepository,
	channels repository.ChannelRepository,
	states repository.BindStateRepository,
	dispatcher *channel.Dispatcher,
	historySvc history.Service,
	cfg Config,
	now func() time.Time,
) *service {
	def := DefaultConfig()
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = def.StateTTL
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = def.CodeTTL
	}
	return &service{
		targets:    targets,
		recipients: recipients,
		channels:   channels,
		states:     states,
		dispatcher: dispatcher,
		history:    historySvc,
		cfg:        cfg,
		now:        now,
		logger:     elog.DefaultLogger,
	}
}

func (s *service) IssueBindRedirect(ctx context.Context, kind domain.BindKind, targetID, redirectURI string) (Redirect, error) {
	if redirectURI == "" {
		return Redirect{}, fmt.Errorf("%w: redirectURI 不能为空", errs.ErrInvalidParameter)
	}
	target, ch, err := s.prepare(ctx, kind, targetID)
	if err != nil {
		return Redirect{}, err
	}
	state := domain.BindState{
		Token:    keygen.NewKey(keygen.PrefixState),
		Kind:     kind,
		TargetID: target.ID,
		IssuedAt: s.now(),
	}
	if err = s.states.Save(ctx, state, s.cfg.StateTTL); err != nil {
		return Redirect{}, err
	}
	u, err := s.dispatcher.AuthorizeURL(ch, redirectURI, state.Token)
	if err != nil {
		return Redirect{}, err
	}
	return Redirect{URL: u, State: state.Token, ExpiresAt: state.ExpiredAt(s.cfg.StateTTL)}, nil
}

func (s *service) HandleCallback(ctx context.Context, cb Callback) (Binding, error) {
	if !keygen.IsValidState(cb.State) {
		return Binding{}, fmt.Errorf("%w: state 格式错误", errs.ErrInvalidState)
	}
	// 取出即删除，后面任何一步失败都不会退回
	state, err := s.states.Take(ctx, cb.State)
	if err != nil {
		return Binding{}, err
	}
	if state.TargetID != cb.TargetID {
		s.logger.Warn("绑定回调的目标和 state 不一致",
			elog.String("stateTarget", state.TargetID),
			elog.String("callbackTarget", cb.TargetID))
		return Binding{}, fmt.Errorf("%w: 目标不匹配", errs.ErrInvalidState)
	}
	if err = s.checkExpiry(state, s.cfg.StateTTL); err != nil {
		return Binding{}, err
	}
	target, ch, err := s.prepareConsumed(ctx, state)
	if err != nil {
		return Binding{}, err
	}
	if cb.Code == "" {
		return Binding{}, fmt.Errorf("%w: 缺少授权 code", errs.ErrInvalidParameter)
	}
	openID, err := s.dispatcher.ResolveOAuthUser(ctx, ch, cb.Code)
	if err != nil {
		return Binding{}, err
	}
	return s.bind(ctx, state.Kind, target, ch, openID)
}

func (s *service) IssueBindCode(ctx context.Context, kind domain.BindKind, targetID string) (BindCode, error) {
	target, _, err := s.prepare(ctx, kind, targetID)
	if err != nil {
		return BindCode{}, err
	}
	code := keygen.NewCode()
	state := domain.BindState{
		Token:    code,
		Kind:     kind,
		TargetID: target.ID,
		IssuedAt: s.now(),
	}
	if err = s.states.SaveCode(ctx, code, state, s.cfg.CodeTTL); err != nil {
		return BindCode{}, err
	}
	return BindCode{
		Code:      code,
		Kind:      kind,
		TargetID:  target.ID,
		Command:   string(kind) + " " + code,
		ExpiresAt: state.ExpiredAt(s.cfg.CodeTTL),
	}, nil
}

// prepare 检查绑定类型和推送模式是否匹配，并加载渠道
func (s *service) prepare(ctx context.Context, kind domain.BindKind, targetID string) (domain.PushTarget, domain.Channel, error) {
	if !kind.IsValid() {
		return domain.PushTarget{}, domain.Channel{}, fmt.Errorf("%w: kind = %q", errs.ErrInvalidParameter, kind)
	}
	target, err := s.targets.GetByID(ctx, targetID)
	if err != nil {
		return domain.PushTarget{}, domain.Channel{}, err
	}
	if kind.PushMode() != target.PushMode {
		return domain.PushTarget{}, domain.Channel{}, fmt.Errorf("%w: %s 不能用于 %s 模式的目标",
			errs.ErrInvalidParameter, kind, target.PushMode)
	}
	ch, err := s.channels.GetByID(ctx, target.ChannelID)
	if err != nil {
		if errs.CodeOf(err) == errs.CodeChannelNotFound {
			return domain.PushTarget{}, domain.Channel{}, fmt.Errorf("%w: 渠道 %s 不存在", errs.ErrInvalidConfig, target.ChannelID)
		}
		return domain.PushTarget{}, domain.Channel{}, err
	}
	return target, ch, nil
}

// prepareConsumed state 已经被取出，目标被删除或者模式不匹配都算 state 无效
func (s *service) prepareConsumed(ctx context.Context, state domain.BindState) (domain.PushTarget, domain.Channel, error) {
	target, ch, err := s.prepare(ctx, state.Kind, state.TargetID)
	if err != nil {
		switch errs.CodeOf(err) {
		case errs.CodeInvalidParameter, errs.CodeTargetNotFound:
			return domain.PushTarget{}, domain.Channel{}, fmt.Errorf("%w: %s", errs.ErrInvalidState, err.Error())
		}
		return domain.PushTarget{}, domain.Channel{}, err
	}
	return target, ch, nil
}

// checkExpiry 存储的 TTL 之外再按签发时间校验一次
func (s *service) checkExpiry(state domain.BindState, ttl time.Duration) error {
	if !s.now().Before(state.ExpiredAt(ttl)) {
		return fmt.Errorf("%w: 签发于 %s", errs.ErrStateExpired, state.IssuedAt.Format(time.RFC3339))
	}
	return nil
}

// bind 检查关注状态后写入接收者，单接收者目标替换旧的，群发目标幂等追加
func (s *service) bind(ctx context.Context, kind domain.BindKind, target domain.PushTarget,
	ch domain.Channel, openID string) (Binding, error) {
	status, err := s.dispatcher.CheckFollowStatus(ctx, ch, openID)
	if err != nil {
		return Binding{}, err
	}
	if !status.Subscribed {
		return Binding{}, fmt.Errorf("%w: openid = %s", errs.ErrNotFollowed, openID)
	}
	rec := domain.Recipient{
		ParentID:       target.ID,
		PlatformUserID: openID,
		Nickname:       status.Nickname,
	}
	if target.PushMode == domain.PushModeSingle {
		rec, err = s.recipients.SetSingle(ctx, rec)
	} else {
		rec, _, err = s.recipients.Attach(ctx, rec)
	}
	if err != nil {
		return Binding{}, err
	}
	s.logger.Info("绑定成功",
		elog.String("kind", string(kind)),
		elog.String("targetID", target.ID),
		elog.String("recipientID", rec.ID))
	return Binding{Kind: kind, TargetID: target.ID, Recipient: rec}, nil
}

func (s *service) HandleInboundCommand(ctx context.Context, msg InboundMessage) (Reply, error) {
	reply, err := s.handleCommand(ctx, msg)
	if err != nil {
		reply = Reply{Content: errs.MessageOf(err)}
	}
	s.recordInbound(ctx, msg, err)
	return reply, err
}

func (s *service) handleCommand(ctx context.Context, msg InboundMessage) (Reply, error) {
	cmd, arg, ok := parseCommand(msg.Content)
	if !ok {
		return Reply{Content: helpText}, nil
	}
	switch cmd {
	case commandBind, commandSubscribe:
		return s.bindByCode(ctx, cmd, arg, msg)
	case commandUnsubscribe:
		return s.unsubscribe(ctx, arg, msg)
	default:
		return Reply{Content: helpText}, nil
	}
}

func (s *service) bindByCode(ctx context.Context, kind domain.BindKind, code string, msg InboundMessage) (Reply, error) {
	code = strings.ToUpper(code)
	if !keygen.IsValidCode(code) {
		return Reply{}, fmt.Errorf("%w: 绑定码格式错误", errs.ErrInvalidState)
	}
	state, err := s.states.TakeCode(ctx, code)
	if err != nil {
		return Reply{}, err
	}
	if state.Kind != kind {
		return Reply{}, fmt.Errorf("%w: 指令 %s 和绑定码类型 %s 不一致", errs.ErrInvalidState, kind, state.Kind)
	}
	if err = s.checkExpiry(state, s.cfg.CodeTTL); err != nil {
		return Reply{}, err
	}
	target, ch, err := s.prepareConsumed(ctx, state)
	if err != nil {
		return Reply{}, err
	}
	if ch.ID != msg.ChannelID {
		return Reply{}, fmt.Errorf("%w: 绑定码不属于当前公众号", errs.ErrInvalidState)
	}
	b, err := s.bind(ctx, kind, target, ch, msg.FromUser)
	if err != nil {
		return Reply{}, err
	}
	text := fmt.Sprintf("已绑定「%s」", target.Name)
	if kind == domain.BindKindSubscribe {
		text = fmt.Sprintf("已订阅「%s」", target.Name)
	}
	return Reply{Content: text, Binding: &b}, nil
}

func (s *service) unsubscribe(ctx context.Context, key string, msg InboundMessage) (Reply, error) {
	if !keygen.IsValidKey(key) {
		return Reply{}, fmt.Errorf("%w: %s", errs.ErrInvalidKey, key)
	}
	target, err := s.targets.GetByKey(ctx, key)
	if err != nil {
		return Reply{}, err
	}
	if target.ChannelID != msg.ChannelID {
		return Reply{}, fmt.Errorf("%w: %s", errs.ErrKeyNotFound, key)
	}
	rec, err := s.recipients.GetByPlatformUser(ctx, target.ID, msg.FromUser)
	if err != nil {
		return Reply{}, err
	}
	if err = s.recipients.Delete(ctx, rec.ID); err != nil {
		return Reply{}, err
	}
	return Reply{Content: fmt.Sprintf("已退订「%s」", target.Name)}, nil
}

// recordInbound 入站消息写入历史，失败只打日志
func (s *service) recordInbound(ctx context.Context, msg InboundMessage, cmdErr error) {
	result := domain.DeliveryResult{PlatformUserID: msg.FromUser, Success: cmdErr == nil}
	if cmdErr != nil {
		result.Error = cmdErr.Error()
	}
	record := domain.DeliveryRecord{
		Direction: domain.DirectionInbound,
		ChannelID: msg.ChannelID,
		Title:     firstLine(msg.Content),
		Body:      msg.Content,
		Results:   []domain.DeliveryResult{result},
		CreatedAt: s.now(),
	}
	record.Total = 1
	if result.Success {
		record.SuccessCount = 1
	} else {
		record.FailedCount = 1
	}
	if _, err := s.history.Append(context.WithoutCancel(ctx), record); err != nil {
		s.logger.Error("写入入站消息失败",
			elog.String("channelID", msg.ChannelID),
			elog.FieldErr(err))
	}
}

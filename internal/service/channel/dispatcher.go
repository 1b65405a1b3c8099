package channel

import (
	"context"
	"fmt"
	"sync"

	"gitee.com/flycash/push-relay/internal/domain"
	"gitee.com/flycash/push-relay/internal/errs"
)

// Dispatcher 按渠道类型找到适配器并转发，是渠道能力的统一入口
type Dispatcher struct {
	mu       sync.RWMutex
	adapters map[domain.ChannelType]Adapter
}

func NewDispatcher(adapters map[domain.ChannelType]Adapter) *Dispatcher {
	d := &Dispatcher{adapters: make(map[domain.ChannelType]Adapter, len(adapters))}
	for typ, a := range adapters {
		d.adapters[typ] = a
	}
	return d
}

func (d *Dispatcher) Register(typ domain.ChannelType, a Adapter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.adapters[typ] = a
}

// Adapter 未注册的类型属于配置错误，不应该重试
func (d *Dispatcher) Adapter(typ domain.ChannelType) (Adapter, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.adapters[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnknownChannelType, typ)
	}
	return a, nil
}

func (d *Dispatcher) Send(ctx context.Context, ch domain.Channel, msg domain.Message) (domain.SendResult, error) {
	a, err := d.resolve(ch)
	if err != nil {
		return domain.SendResult{}, err
	}
	return a.Send(ctx, msg, ch.Config)
}

func (d *Dispatcher) Validate(ctx context.Context, ch domain.Channel) (domain.ValidateResult, error) {
	a, err := d.resolve(ch)
	if err != nil {
		return domain.ValidateResult{}, err
	}
	return a.Validate(ctx, ch.Config)
}

func (d *Dispatcher) CheckFollowStatus(ctx context.Context, ch domain.Channel, platformUserID string) (domain.FollowStatus, error) {
	a, err := d.resolve(ch)
	if err != nil {
		return domain.FollowStatus{}, err
	}
	return a.CheckFollowStatus(ctx, ch.Config, platformUserID)
}

func (d *Dispatcher) AuthorizeURL(ch domain.Channel, redirectURI, state string) (string, error) {
	a, err := d.resolve(ch)
	if err != nil {
		return "", err
	}
	return a.AuthorizeURL(ch.Config, redirectURI, state), nil
}

func (d *Dispatcher) ResolveOAuthUser(ctx context.Context, ch domain.Channel, code string) (string, error) {
	a, err := d.resolve(ch)
	if err != nil {
		return "", err
	}
	return a.ResolveOAuthUser(ctx, ch.Config, code)
}

func (d *Dispatcher) resolve(ch domain.Channel) (Adapter, error) {
	if !ch.Config.IsComplete() {
		return nil, fmt.Errorf("%w: channel = %s", errs.ErrInvalidConfig, ch.ID)
	}
	return d.Adapter(ch.Type)
}

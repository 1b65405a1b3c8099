package ioc

import (
	"gitee.com/flycash/push-relay/internal/domain"
	"gitee.com/flycash/push-relay/internal/service/channel"
	"gitee.com/flycash/push-relay/internal/service/channel/metrics"
	"gitee.com/flycash/push-relay/internal/service/channel/tracing"
	"gitee.com/flycash/push-relay/internal/service/channel/wechat"
	"github.com/gotomicro/ego/core/econf"
)

func InitWechatAdapter() *wechat.Adapter {
	cfg := wechat.DefaultConfig()
	if err := econf.UnmarshalKey("wechat", &cfg); err != nil {
		panic(err)
	}
	return wechat.NewAdapter(cfg, wechat.NewTokenCache(cfg.TokenMargin))
}

// InitChannelDispatcher 适配器外面依次包上 tracing 和 metrics
func InitChannelDispatcher(wx *wechat.Adapter) *channel.Dispatcher {
	return channel.NewDispatcher(map[domain.ChannelType]channel.Adapter{
		domain.ChannelTypeWechat: decorate(domain.ChannelTypeWechat, wx),
	})
}

func decorate(typ domain.ChannelType, a channel.Adapter) channel.Adapter {
	return metrics.NewAdapter(typ, tracing.NewAdapter(typ, a))
}

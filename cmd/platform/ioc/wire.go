//go:build wireinject

package ioc

import (
	"gitee.com/flycash/push-relay/internal/ioc"
	"gitee.com/flycash/push-relay/internal/repository"
	"gitee.com/flycash/push-relay/internal/service/binding"
	"gitee.com/flycash/push-relay/internal/service/history"
	"gitee.com/flycash/push-relay/internal/service/manage"
	"gitee.com/flycash/push-relay/internal/service/push"
	"github.com/google/wire"
)

var (
	BaseSet = wire.NewSet(
		ioc.InitRedisClient,
		ioc.InitStore,
		ioc.InitDistributedLock,
	)
	repositorySet = wire.NewSet(
		repository.NewChannelRepository,
		repository.NewTargetRepository,
		repository.NewRecipientRepository,
		repository.NewBindStateRepository,
		repository.NewDeliveryRepository,
	)
	channelSet = wire.NewSet(
		ioc.InitWechatAdapter,
		ioc.InitChannelDispatcher,
	)
	historySvcSet = wire.NewSet(
		ioc.InitHistoryConfig,
		history.NewService,
		history.NewPruneTask,
	)
	pushSvcSet = wire.NewSet(
		ioc.InitPushConfig,
		push.NewService,
	)
	bindingSvcSet = wire.NewSet(
		ioc.InitBindingConfig,
		binding.NewService,
	)
)

func InitApp() *ioc.App {
	wire.Build(
		// 基础设施
		BaseSet,
		repositorySet,
		channelSet,

		// 服务
		historySvcSet,
		pushSvcSet,
		bindingSvcSet,
		manage.NewService,

		ioc.Crons,
		wire.Struct(new(ioc.App), "*"),
	)
	return new(ioc.App)
}

package ioc

import (
	"gitee.com/flycash/push-relay/internal/service/binding"
	"gitee.com/flycash/push-relay/internal/service/history"
	"gitee.com/flycash/push-relay/internal/service/manage"
	"gitee.com/flycash/push-relay/internal/service/push"
	"github.com/gotomicro/ego/task/ecron"
)

// App 对外暴露的服务，路由层按需取用
type App struct {
	Crons []ecron.Ecron

	PushSvc    push.Service
	BindingSvc binding.Service
	HistorySvc history.Service
	ManageSvc  manage.Service
}

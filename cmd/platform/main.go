package main

import (
	"gitee.com/flycash/push-relay/cmd/platform/ioc"
	"github.com/gotomicro/ego"
	"github.com/gotomicro/ego/core/elog"
	"github.com/gotomicro/ego/server/egovernor"
)

func main() {
	app := ioc.InitApp()
	if err := ego.New().
		Serve(egovernor.Load("server.governor").Build()).
		Cron(app.Crons...).
		Run(); err != nil {
		elog.Panic("startup", elog.FieldErr(err))
	}
}

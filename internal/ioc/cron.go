package ioc

import (
	"gitee.com/flycash/push-relay/internal/service/history"
	"github.com/gotomicro/ego/task/ecron"
)

func Crons(prune *history.PruneTask) []ecron.Ecron {
	c1 := ecron.Load("cron.prune").Build(ecron.WithJob(prune.Do))
	return []ecron.Ecron{c1}
}

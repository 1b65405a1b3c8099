package ioc

import (
	"gitee.com/flycash/push-relay/internal/service/binding"
	"gitee.com/flycash/push-relay/internal/service/history"
	"gitee.com/flycash/push-relay/internal/service/push"
	"github.com/gotomicro/ego/core/econf"
)

// 配置文件里的值覆盖默认值，没有配置的字段保留默认

func InitPushConfig() push.Config {
	cfg := push.DefaultConfig()
	if err := econf.UnmarshalKey("push", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func InitBindingConfig() binding.Config {
	cfg := binding.DefaultConfig()
	if err := econf.UnmarshalKey("binding", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func InitHistoryConfig() history.Config {
	cfg := history.DefaultConfig()
	if err := econf.UnmarshalKey("history", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

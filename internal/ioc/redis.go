package ioc

import (
	"gitee.com/flycash/push-relay/internal/pkg/redis/metrics"
	"gitee.com/flycash/push-relay/internal/repository/store"
	"github.com/gotomicro/ego/core/econf"
	"github.com/redis/go-redis/v9"
)

const (
	storeDriverRedis  = "redis"
	storeDriverMemory = "memory"

	defaultNamespace = "push_relay"
)

type storeConfig struct {
	// Driver redis 或者 memory，memory 只用于单机调试
	Driver    string `yaml:"driver"`
	Namespace string `yaml:"namespace"`
}

func loadStoreConfig() storeConfig {
	cfg := storeConfig{Driver: storeDriverRedis, Namespace: defaultNamespace}
	if err := econf.UnmarshalKey("store", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func InitRedisClient() *redis.Client {
	type Config struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	}
	var cfg Config
	err := econf.UnmarshalKey("redis", &cfg)
	if err != nil {
		panic(err)
	}
	cmd := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return metrics.WithMetrics(cmd, loadStoreConfig().Namespace)
}

func InitStore(rdb *redis.Client) store.Store {
	cfg := loadStoreConfig()
	switch cfg.Driver {
	case storeDriverMemory:
		return store.NewMemoryStore()
	case storeDriverRedis:
		return store.NewRedisStore(rdb, cfg.Namespace)
	default:
		panic("未知的存储类型: " + cfg.Driver)
	}
}

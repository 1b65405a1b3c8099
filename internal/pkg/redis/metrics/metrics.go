package metrics

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	familyUnknown = "unknown"
)

var (
	// 按命令和 key 族统计
	commandCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "push_relay",
			Subsystem: "store",
			Name:      "redis_commands_total",
			Help:      "Total number of Redis commands executed by the store",
		},
		[]string{"command", "family", "status"},
	)

	commandDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace:  "push_relay",
			Subsystem:  "store",
			Name:       "redis_command_duration_seconds",
			Help:       "Redis command execution time in seconds",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.95: 0.005, 0.99: 0.001},
		},
		[]string{"command", "family"},
	)

	pipelineCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "push_relay",
			Subsystem: "store",
			Name:      "redis_pipelines_total",
			Help:      "Total number of Redis pipeline executions",
		},
		[]string{"status"},
	)

	connectionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "push_relay",
			Subsystem: "store",
			Name:      "redis_connections_total",
			Help:      "Total number of Redis connections created",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		commandCounter,
		commandDuration,
		pipelineCounter,
		connectionCounter,
	)
}

// Hook 实现 redis.Hook，统计 Store 发出的 Redis 命令
// key 族取命名空间之后的第一段，比如 target:tg_xxx 的族是 target
type Hook struct {
	namespace string
}

func NewMetricsHook(namespace string) *Hook {
	if namespace != "" && !strings.HasSuffix(namespace, ":") {
		namespace += ":"
	}
	return &Hook{namespace: namespace}
}

func (h *Hook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		name := cmd.Name()
		family := h.Family(cmd)

		startTime := time.Now()
		err := next(ctx, cmd)
		commandDuration.WithLabelValues(name, family).Observe(time.Since(startTime).Seconds())

		// redis.Nil 只是 key 不存在
		status := statusSuccess
		if err != nil && !errors.Is(err, redis.Nil) {
			status = statusError
		}
		commandCounter.WithLabelValues(name, family, status).Inc()
		return err
	}
}

func (h *Hook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		if len(cmds) == 0 {
			return next(ctx, cmds)
		}
		err := next(ctx, cmds)
		status := statusSuccess
		if err != nil && !errors.Is(err, redis.Nil) {
			status = statusError
		}
		pipelineCounter.WithLabelValues(status).Inc()
		return err
	}
}

func (h *Hook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		status := statusSuccess
		if err != nil {
			status = statusError
		}
		connectionCounter.WithLabelValues(status).Inc()
		return conn, err
	}
}

// Family 计算命令操作的 key 族
func (h *Hook) Family(cmd redis.Cmder) string {
	args := cmd.Args()
	if len(args) < 2 {
		return familyUnknown
	}
	// SCAN cursor MATCH pattern
	if strings.EqualFold(cmd.Name(), "scan") {
		for i := 2; i+1 < len(args); i++ {
			if s, ok := args[i].(string); ok && strings.EqualFold(s, "match") {
				return h.family(args[i+1])
			}
		}
		return familyUnknown
	}
	return h.family(args[1])
}

func (h *Hook) family(arg any) string {
	key, ok := arg.(string)
	if !ok {
		return familyUnknown
	}
	key = strings.TrimPrefix(key, h.namespace)
	if idx := strings.IndexByte(key, ':'); idx > 0 {
		return key[:idx]
	}
	key = strings.TrimSuffix(key, "*")
	if key == "" {
		return familyUnknown
	}
	return key
}

// WithMetrics 为客户端挂上指标钩子
func WithMetrics(client *redis.Client, namespace string) *redis.Client {
	client.AddHook(NewMetricsHook(namespace))
	return client
}

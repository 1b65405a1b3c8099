package metrics

import (
	"context"
	"time"

	"gitee.com/flycash/push-relay/internal/domain"
	"gitee.com/flycash/push-relay/internal/service/channel"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	statusSuccess  = "success"
	statusRejected = "rejected"
	statusError    = "error"
)

var (
	callDurationSummary = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace:  "push_relay",
			Subsystem:  "channel",
			Name:       "call_duration_seconds",
			Help:       "渠道适配器调用耗时统计（秒）",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.95: 0.005, 0.99: 0.001},
			MaxAge:     time.Minute * 5,
		},
		[]string{"channel", "method", "status"},
	)

	callStatusCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "push_relay",
			Subsystem: "channel",
			Name:      "call_total",
			Help:      "渠道适配器调用状态统计",
		},
		[]string{"channel", "method", "status"},
	)
)

func init() {
	prometheus.MustRegister(callDurationSummary, callStatusCounter)
}

var _ channel.Adapter = (*Adapter)(nil)

// Adapter 为渠道适配器添加指标收集的装饰器
type Adapter struct {
	adapter channel.Adapter
	name    string
}

func NewAdapter(typ domain.ChannelType, a channel.Adapter) *Adapter {
	return &Adapter{adapter: a, name: typ.String()}
}

func (a *Adapter) Send(ctx context.Context, msg domain.Message, creds domain.Credentials) (domain.SendResult, error) {
	startTime := time.Now()
	res, err := a.adapter.Send(ctx, msg, creds)
	a.observe("send", startTime, statusOf(res.Success, err))
	return res, err
}

func (a *Adapter) Validate(ctx context.Context, creds domain.Credentials) (domain.ValidateResult, error) {
	startTime := time.Now()
	res, err := a.adapter.Validate(ctx, creds)
	a.observe("validate", startTime, statusOf(res.Valid, err))
	return res, err
}

func (a *Adapter) CheckFollowStatus(ctx context.Context, creds domain.Credentials, platformUserID string) (domain.FollowStatus, error) {
	startTime := time.Now()
	res, err := a.adapter.CheckFollowStatus(ctx, creds, platformUserID)
	a.observe("check_follow_status", startTime, statusOf(true, err))
	return res, err
}

func (a *Adapter) AuthorizeURL(creds domain.Credentials, redirectURI, state string) string {
	return a.adapter.AuthorizeURL(creds, redirectURI, state)
}

func (a *Adapter) ResolveOAuthUser(ctx context.Context, creds domain.Credentials, code string) (string, error) {
	startTime := time.Now()
	res, err := a.adapter.ResolveOAuthUser(ctx, creds, code)
	a.observe("resolve_oauth_user", startTime, statusOf(true, err))
	return res, err
}

func (a *Adapter) observe(method string, startTime time.Time, status string) {
	callDurationSummary.WithLabelValues(a.name, method, status).Observe(time.Since(startTime).Seconds())
	callStatusCounter.WithLabelValues(a.name, method, status).Inc()
}

func statusOf(ok bool, err error) string {
	switch {
	case err != nil:
		return statusError
	case !ok:
		return statusRejected
	default:
		return statusSuccess
	}
}

package binding

import (
	"time"

	"gitee.com/flycash/push-relay/internal/domain"
)

// Config 绑定配置
type Config struct {
	// StateTTL 网页授权 state 的有效期
	StateTTL time.Duration `yaml:"stateTTL"`
	// CodeTTL 文本指令绑定码的有效期
	CodeTTL time.Duration `yaml:"codeTTL"`
}

func DefaultConfig() Config {
	return Config{
		StateTTL: 300 * time.Second,
		CodeTTL:  300 * time.Second,
	}
}

// Redirect 跳转到上游授权页的地址
type Redirect struct {
	URL       string
	State     string
	ExpiresAt time.Time
}

// Callback 上游授权回调参数
type Callback struct {
	State    string
	TargetID string
	Code     string
}

// Binding 绑定结果
type Binding struct {
	Kind      domain.BindKind
	TargetID  string
	Recipient domain.Recipient
}

// BindCode 文本指令绑定码，用户发送 Command 完成绑定
type BindCode struct {
	Code      string
	Kind      domain.BindKind
	TargetID  string
	Command   string
	ExpiresAt time.Time
}

// InboundMessage 用户发给公众号的文本消息
type InboundMessage struct {
	ChannelID string
	FromUser  string
	Content   string
}

// Reply 回复给用户的文本，Binding 在绑定成功时不为空
type Reply struct {
	Content string
	Binding *Binding
}

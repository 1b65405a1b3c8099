package domain

import "time"

// BindKind 绑定意图
type BindKind string

const (
	BindKindBind      BindKind = "bind"      // 绑定单接收者目标
	BindKindSubscribe BindKind = "subscribe" // 订阅群发目标
)

func (k BindKind) IsValid() bool {
	return k == BindKindBind || k == BindKindSubscribe
}

// PushMode 绑定意图对应的推送模式
func (k BindKind) PushMode() PushMode {
	if k == BindKindBind {
		return PushModeSingle
	}
	return PushModeFanout
}

// BindState 短期有效、只能使用一次的绑定状态
type BindState struct {
	Token    string    `json:"token"`
	Kind     BindKind  `json:"kind"`
	TargetID string    `json:"targetId"`
	IssuedAt time.Time `json:"issuedAt"`
}

// ExpiredAt 按 ttl 计算过期时间
func (s BindState) ExpiredAt(ttl time.Duration) time.Time {
	return s.IssuedAt.Add(ttl)
}

package domain

import (
	"fmt"
	"time"

	"gitee.com/flycash/push-relay/internal/errs"
)

// PushMode 推送模式
type PushMode string

const (
	PushModeSingle PushMode = "single"  // 单接收者，对应旧版 SendKey
	PushModeFanout PushMode = "fan-out" // 群发给全部订阅者，对应旧版 Topic
)

func (m PushMode) IsValid() bool {
	return m == PushModeSingle || m == PushModeFanout
}

// MessageType 消息类型
type MessageType string

const (
	MessageTypePlain    MessageType = "plain"    // 普通文本
	MessageTypeTemplate MessageType = "template" // 模板消息
)

func (t MessageType) IsValid() bool {
	return t == MessageTypePlain || t == MessageTypeTemplate
}

// RateWindow 固定窗口计数，内嵌在推送目标上
type RateWindow struct {
	Count   int       `json:"count"`
	ResetAt time.Time `json:"resetAt"`
}

// PushTarget 推送目标，Key 是对外暴露的推送 key
type PushTarget struct {
	ID          string      `json:"id"`
	Key         string      `json:"key"`
	Name        string      `json:"name"`
	ChannelID   string      `json:"channelId"`
	PushMode    PushMode    `json:"pushMode"`
	MessageType MessageType `json:"messageType"`
	TemplateID  string      `json:"templateId,omitempty"`
	// RateLimit 每个窗口允许的推送次数，0 表示使用默认值
	RateLimit  int        `json:"rateLimit,omitempty"`
	RateWindow RateWindow `json:"rateWindow"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func (t *PushTarget) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: Name = %q", errs.ErrInvalidParameter, t.Name)
	}
	if t.ChannelID == "" {
		return fmt.Errorf("%w: ChannelID = %q", errs.ErrInvalidParameter, t.ChannelID)
	}
	if !t.PushMode.IsValid() {
		return fmt.Errorf("%w: PushMode = %q", errs.ErrInvalidParameter, t.PushMode)
	}
	if !t.MessageType.IsValid() {
		return fmt.Errorf("%w: MessageType = %q", errs.ErrInvalidParameter, t.MessageType)
	}
	if t.MessageType == MessageTypeTemplate && t.TemplateID == "" {
		return fmt.Errorf("%w: target = %s", errs.ErrInvalidTemplate, t.Name)
	}
	if t.RateLimit < 0 {
		return fmt.Errorf("%w: RateLimit = %d", errs.ErrInvalidParameter, t.RateLimit)
	}
	return nil
}

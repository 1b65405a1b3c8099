package domain

import (
	"fmt"
	"time"

	"gitee.com/flycash/push-relay/internal/errs"
)

// ChannelType 上游平台类型
type ChannelType string

const (
	ChannelTypeWechat ChannelType = "wechat" // 微信公众号
)

func (c ChannelType) String() string {
	return string(c)
}

// Credentials 上游平台的长期凭证
type Credentials struct {
	AppID     string `json:"appId"`
	AppSecret string `json:"appSecret"`
}

// IsComplete 凭证是否齐全
func (c Credentials) IsComplete() bool {
	return c.AppID != "" && c.AppSecret != ""
}

// Channel 渠道，推送目标通过 ChannelID 引用
type Channel struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Type      ChannelType `json:"type"`
	Config    Credentials `json:"config"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func (c *Channel) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: Name = %q", errs.ErrInvalidParameter, c.Name)
	}
	if c.Type == "" {
		return fmt.Errorf("%w: Type = %q", errs.ErrInvalidParameter, c.Type)
	}
	if !c.Config.IsComplete() {
		return fmt.Errorf("%w: 缺少 appId 或 appSecret", errs.ErrInvalidParameter)
	}
	return nil
}

package manage

import (
	"strings"
	"time"

	"gitee.com/flycash/push-relay/internal/domain"
)

// ChannelView 对外展示的渠道，AppSecret 脱敏
type ChannelView struct {
	ID        string
	Name      string
	Type      domain.ChannelType
	AppID     string
	AppSecret string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func newChannelView(ch domain.Channel) ChannelView {
	return ChannelView{
		ID:        ch.ID,
		Name:      ch.Name,
		Type:      ch.Type,
		AppID:     ch.Config.AppID,
		AppSecret: maskSecret(ch.Config.AppSecret),
		CreatedAt: ch.CreatedAt,
		UpdatedAt: ch.UpdatedAt,
	}
}

// maskSecret 只保留前 4 位
func maskSecret(secret string) string {
	const keep = 4
	if len(secret) <= keep {
		return strings.Repeat("*", len(secret))
	}
	return secret[:keep] + strings.Repeat("*", len(secret)-keep)
}

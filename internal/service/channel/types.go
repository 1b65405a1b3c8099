package channel

import (
	"context"

	"gitee.com/flycash/push-relay/internal/domain"
)

// Adapter 上游平台适配器
// 上游可预期的拒绝（用户未关注、上游限流等）放在 SendResult 里返回，不返回 error
//
//go:generate mockgen -source=./types.go -destination=./mocks/adapter.mock.go -package=channelmocks Adapter
type Adapter interface {
	// Send 发送单条消息
	Send(ctx context.Context, msg domain.Message, creds domain.Credentials) (domain.SendResult, error)
	// Validate 校验凭证是否可用
	Validate(ctx context.Context, creds domain.Credentials) (domain.ValidateResult, error)
	// CheckFollowStatus 查询用户是否关注
	CheckFollowStatus(ctx context.Context, creds domain.Credentials, platformUserID string) (domain.FollowStatus, error)
	// AuthorizeURL 网页授权地址，state 会原样回传
	AuthorizeURL(creds domain.Credentials, redirectURI, state string) string
	// ResolveOAuthUser 用授权回调的 code 换取用户 ID
	ResolveOAuthUser(ctx context.Context, creds domain.Credentials, code string) (string, error)
}

package wechat

import (
	"fmt"
	"time"

	"gitee.com/flycash/push-relay/internal/pkg/retry"
)

const (
	defaultBaseURL      = "https://api.weixin.qq.com"
	defaultAuthorizeURL = "https://open.weixin.qq.com/connect/oauth2/authorize"
	defaultTimeout      = 5 * time.Second
	// tokenFetchRounds 换取 token 的总超时是单次请求超时的倍数，覆盖重试和退避
	tokenFetchRounds = 3
)

// Config 微信公众号适配器配置
type Config struct {
	BaseURL      string        `yaml:"baseURL"`
	AuthorizeURL string        `yaml:"authorizeURL"`
	Timeout      time.Duration `yaml:"timeout"`
	// TokenMargin access_token 提前失效的余量
	TokenMargin time.Duration `yaml:"tokenMargin"`
	// Scope 网页授权作用域，只需要 openid 时用 snsapi_base
	Scope string `yaml:"scope"`
	// Retry 获取 access_token 时网络错误的重试策略
	Retry retry.Config `yaml:"retry"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:      defaultBaseURL,
		AuthorizeURL: defaultAuthorizeURL,
		Timeout:      defaultTimeout,
		TokenMargin:  defaultTokenMargin,
		Scope:        "snsapi_base",
		Retry:        defaultRetry(),
	}
}

func defaultRetry() retry.Config {
	return retry.Config{
		Type: retry.TypeExponential,
		ExponentialBackoff: &retry.ExponentialBackoffConfig{
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			MaxRetries:      2,
		},
	}
}

// token 失效，需要重新获取
const (
	errCodeInvalidCredential  = 40001
	errCodeInvalidAccessToken = 40014
	errCodeAccessTokenExpired = 42001
)

func isTokenInvalid(code int) bool {
	return code == errCodeInvalidCredential ||
		code == errCodeInvalidAccessToken ||
		code == errCodeAccessTokenExpired
}

type baseResp struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func (r baseResp) failed() bool {
	return r.ErrCode != 0
}

func (r baseResp) Error() string {
	return fmt.Sprintf("wechat errcode %d: %s", r.ErrCode, r.ErrMsg)
}

type tokenResp struct {
	baseResp
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type sendResp struct {
	baseResp
	MsgID int64 `json:"msgid"`
}

type userInfoResp struct {
	baseResp
	Subscribe int    `json:"subscribe"`
	OpenID    string `json:"openid"`
	Nickname  string `json:"nickname"`
}

type oauthResp struct {
	baseResp
	OpenID string `json:"openid"`
}

type textMessage struct {
	ToUser  string `json:"touser"`
	MsgType string `json:"msgtype"`
	Text    struct {
		Content string `json:"content"`
	} `json:"text"`
}

type templateValue struct {
	Value string `json:"value"`
}

type templateMessage struct {
	ToUser     string                   `json:"touser"`
	TemplateID string                   `json:"template_id"`
	URL        string                   `json:"url,omitempty"`
	Data       map[string]templateValue `json:"data"`
}

package wechat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gitee.com/flycash/push-relay/internal/domain"
	"gitee.com/flycash/push-relay/internal/errs"
	"gitee.com/flycash/push-relay/internal/pkg/retry"
	"gitee.com/flycash/push-relay/internal/service/channel"
	"github.com/go-resty/resty/v2"
	"github.com/gotomicro/ego/core/elog"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

var _ channel.Adapter = (*Adapter)(nil)

// Adapter 微信公众号适配器
type Adapter struct {
	client *resty.Client
	tokens *TokenCache
	group  singleflight.Group
	cfg    Config
	logger *elog.Component
}

func NewAdapter(cfg Config, tokens *TokenCache) *Adapter {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.AuthorizeURL == "" {
		cfg.AuthorizeURL = def.AuthorizeURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Scope == "" {
		cfg.Scope = def.Scope
	}
	if cfg.Retry.Type == "" {
		cfg.Retry = def.Retry
	}
	if tokens == nil {
		tokens = NewTokenCache(cfg.TokenMargin)
	}
	return &Adapter{
		client: resty.New().SetBaseURL(cfg.BaseURL).SetTimeout(cfg.Timeout),
		tokens: tokens,
		cfg:    cfg,
		logger: elog.DefaultLogger,
	}
}

// Send token 失效时清掉缓存重试一次，其他上游错误码都记为发送失败
func (a *Adapter) Send(ctx context.Context, msg domain.Message, creds domain.Credentials) (domain.SendResult, error) {
	res, again, err := a.send(ctx, msg, creds)
	if err != nil || !again {
		return res, err
	}
	a.tokens.Evict(creds)
	res, _, err = a.send(ctx, msg, creds)
	return res, err
}

func (a *Adapter) send(ctx context.Context, msg domain.Message, creds domain.Credentials) (domain.SendResult, bool, error) {
	token, err := a.token(ctx, creds)
	if err != nil {
		var upstream baseResp
		if errors.As(err, &upstream) {
			return domain.SendResult{Error: upstream.Error()}, false, nil
		}
		return domain.SendResult{}, false, err
	}

	path, body := a.buildMessage(msg)
	var resp sendResp
	if err = a.post(ctx, path, token, body, &resp); err != nil {
		return domain.SendResult{}, false, err
	}
	if resp.failed() {
		if isTokenInvalid(resp.ErrCode) {
			return domain.SendResult{Error: resp.Error()}, true, nil
		}
		a.logger.Warn("微信消息发送失败",
			elog.String("appId", creds.AppID),
			elog.String("toUser", msg.ToUser),
			elog.Int("errcode", resp.ErrCode),
			elog.String("errmsg", resp.ErrMsg))
		return domain.SendResult{Error: resp.Error()}, false, nil
	}
	res := domain.SendResult{Success: true}
	if resp.MsgID != 0 {
		res.ExternalID = strconv.FormatInt(resp.MsgID, 10)
	}
	return res, false, nil
}

func (a *Adapter) buildMessage(msg domain.Message) (string, any) {
	if msg.MessageType == domain.MessageTypeTemplate {
		return "/cgi-bin/message/template/send", templateMessage{
			ToUser:     msg.ToUser,
			TemplateID: msg.TemplateID,
			URL:        msg.URL,
			Data: map[string]templateValue{
				"title":   {Value: msg.Title},
				"content": {Value: msg.Body},
			},
		}
	}
	text := textMessage{ToUser: msg.ToUser, MsgType: "text"}
	text.Text.Content = plainContent(msg)
	return "/cgi-bin/message/custom/send", text
}

func plainContent(msg domain.Message) string {
	var sb strings.Builder
	sb.WriteString(msg.Title)
	if msg.Body != "" {
		sb.WriteString("\n\n")
		sb.WriteString(msg.Body)
	}
	if msg.URL != "" {
		sb.WriteString("\n")
		sb.WriteString(msg.URL)
	}
	return sb.String()
}

// Validate 强制向上游换一次 token
func (a *Adapter) Validate(ctx context.Context, creds domain.Credentials) (domain.ValidateResult, error) {
	a.tokens.Evict(creds)
	_, err := a.token(ctx, creds)
	if err != nil {
		var upstream baseResp
		if errors.As(err, &upstream) {
			return domain.ValidateResult{Error: upstream.Error()}, nil
		}
		return domain.ValidateResult{}, err
	}
	return domain.ValidateResult{Valid: true}, nil
}

func (a *Adapter) CheckFollowStatus(ctx context.Context, creds domain.Credentials, platformUserID string) (domain.FollowStatus, error) {
	token, err := a.token(ctx, creds)
	if err != nil {
		return domain.FollowStatus{}, err
	}
	var resp userInfoResp
	err = a.get(ctx, "/cgi-bin/user/info", map[string]string{
		"access_token": token,
		"openid":       platformUserID,
		"lang":         "zh_CN",
	}, &resp)
	if err != nil {
		return domain.FollowStatus{}, err
	}
	if resp.failed() {
		if isTokenInvalid(resp.ErrCode) {
			a.tokens.Evict(creds)
		}
		return domain.FollowStatus{}, resp.baseResp
	}
	return domain.FollowStatus{Subscribed: resp.Subscribe == 1, Nickname: resp.Nickname}, nil
}

func (a *Adapter) AuthorizeURL(creds domain.Credentials, redirectURI, state string) string {
	// 微信要求参数按固定顺序排列，不能用 url.Values.Encode
	return fmt.Sprintf("%s?appid=%s&redirect_uri=%s&response_type=code&scope=%s&state=%s#wechat_redirect",
		a.cfg.AuthorizeURL,
		url.QueryEscape(creds.AppID),
		url.QueryEscape(redirectURI),
		url.QueryEscape(a.cfg.Scope),
		url.QueryEscape(state))
}

func (a *Adapter) ResolveOAuthUser(ctx context.Context, creds domain.Credentials, code string) (string, error) {
	var resp oauthResp
	err := a.get(ctx, "/sns/oauth2/access_token", map[string]string{
		"appid":      creds.AppID,
		"secret":     creds.AppSecret,
		"code":       code,
		"grant_type": "authorization_code",
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.failed() {
		return "", fmt.Errorf("%w: %s", errs.ErrInvalidParameter, resp.Error())
	}
	if resp.OpenID == "" {
		return "", fmt.Errorf("%w: 授权结果缺少 openid", errs.ErrInvalidParameter)
	}
	return resp.OpenID, nil
}

// token 先查缓存，同一凭证的并发请求只会向上游换一次
// 换取过程和发起它的调用方解绑，调用方取消只影响自己的等待
func (a *Adapter) token(ctx context.Context, creds domain.Credentials) (string, error) {
	if token, ok := a.tokens.Get(creds); ok {
		return token, nil
	}
	ch := a.group.DoChan(Fingerprint(creds), func() (any, error) {
		if token, ok := a.tokens.Get(creds); ok {
			return token, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Timeout*tokenFetchRounds)
		defer cancel()
		return a.fetchToken(fetchCtx, creds)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (a *Adapter) fetchToken(ctx context.Context, creds domain.Credentials) (string, error) {
	strategy, err := retry.NewRetry(a.cfg.Retry)
	if err != nil {
		return "", err
	}
	var resp tokenResp
	err = retry.Do(ctx, strategy, func() error {
		return a.get(ctx, "/cgi-bin/token", map[string]string{
			"grant_type": "client_credential",
			"appid":      creds.AppID,
			"secret":     creds.AppSecret,
		}, &resp)
	}, isTransient)
	if err != nil {
		return "", err
	}
	if resp.failed() {
		return "", resp.baseResp
	}
	a.tokens.Set(creds, resp.AccessToken, time.Duration(resp.ExpiresIn)*time.Second)
	return resp.AccessToken, nil
}

// isTransient 调用方取消或者超时不再重试
func isTransient(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (a *Adapter) get(ctx context.Context, path string, query map[string]string, result any) error {
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(path)
	return a.decode(path, resp, err, result)
}

func (a *Adapter) post(ctx context.Context, path, token string, body, result any) error {
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("access_token", token).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(path)
	return a.decode(path, resp, err, result)
}

// decode 微信返回的 Content-Type 不一定是 json，这里统一手动解析
func (a *Adapter) decode(path string, resp *resty.Response, err error, result any) error {
	if err != nil {
		return errors.Wrapf(err, "failed to call wechat %s", path)
	}
	if resp.IsError() {
		return errors.Errorf("wechat %s returned http status %d", path, resp.StatusCode())
	}
	if err = json.Unmarshal(resp.Body(), result); err != nil {
		return errors.Wrapf(err, "failed to decode wechat %s response", path)
	}
	return nil
}

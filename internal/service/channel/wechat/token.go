package wechat

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"gitee.com/flycash/push-relay/internal/domain"
	"github.com/patrickmn/go-cache"
)

const (
	defaultTokenMargin     = 5 * time.Minute
	defaultCleanupInterval = 10 * time.Minute
)

// TokenCache 缓存 access_token，key 是凭证指纹，不同凭证不会共用 token
type TokenCache struct {
	c      *cache.Cache
	margin time.Duration
}

// NewTokenCache margin 是相对上游过期时间提前失效的余量
func NewTokenCache(margin time.Duration) *TokenCache {
	if margin <= 0 {
		margin = defaultTokenMargin
	}
	return &TokenCache{
		c:      cache.New(cache.NoExpiration, defaultCleanupInterval),
		margin: margin,
	}
}

func (t *TokenCache) Get(creds domain.Credentials) (string, bool) {
	v, ok := t.c.Get(Fingerprint(creds))
	if !ok {
		return "", false
	}
	token, ok := v.(string)
	return token, ok
}

// Set expiresIn 扣掉余量后不足一秒的 token 不缓存
func (t *TokenCache) Set(creds domain.Credentials, token string, expiresIn time.Duration) {
	ttl := expiresIn - t.margin
	if ttl < time.Second {
		return
	}
	t.c.Set(Fingerprint(creds), token, ttl)
}

func (t *TokenCache) Evict(creds domain.Credentials) {
	t.c.Delete(Fingerprint(creds))
}

// Fingerprint 凭证指纹，appSecret 不以明文出现在缓存 key 里
func Fingerprint(creds domain.Credentials) string {
	h := sha256.New()
	h.Write([]byte(creds.AppID))
	h.Write([]byte{0})
	h.Write([]byte(creds.AppSecret))
	return hex.EncodeToString(h.Sum(nil))
}

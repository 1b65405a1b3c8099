package keygen

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/gofrs/uuid"
)

const (
	// 推送 key 与 state token 的随机部分长度，24 字节编码后是 32 个字符
	keyRandomBytes = 24
	keyRandomLen   = 32
	// 记录 ID 的随机部分，uuid 去掉连字符后 32 个十六进制字符
	idRandomLen = 32

	codeLen      = 8
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

const (
	PrefixPushKey   = "PK"
	PrefixState     = "ST"
	PrefixChannel   = "ch_"
	PrefixTarget    = "tg_"
	PrefixRecipient = "rc_"
	PrefixDelivery  = "dl_"
)

// NewKey 生成对外使用的 key，形如 prefix + 32 位 URL 安全字符
func NewKey(prefix string) string {
	buf := make([]byte, keyRandomBytes)
	mustRead(buf)
	return prefix + base64.RawURLEncoding.EncodeToString(buf)
}

// NewID 生成内部记录 ID，形如 prefix + 32 位十六进制
func NewID(prefix string) string {
	u, err := uuid.NewV4()
	if err != nil {
		// 熵源不可用时退回到直接读随机数
		buf := make([]byte, idRandomLen/2)
		mustRead(buf)
		return prefix + hex.EncodeToString(buf)
	}
	return prefix + hex.EncodeToString(u.Bytes())
}

// NewCode 生成文本指令绑定用的短码，去掉了容易混淆的 0/O/1/I
func NewCode() string {
	buf := make([]byte, codeLen)
	mustRead(buf)
	var sb strings.Builder
	sb.Grow(codeLen)
	for _, b := range buf {
		sb.WriteByte(codeAlphabet[int(b)%len(codeAlphabet)])
	}
	return sb.String()
}

// IsValid 校验前缀、最小长度和字符集 [A-Za-z0-9_-]
func IsValid(prefix, s string, minLen int) bool {
	if len(s) < minLen || !strings.HasPrefix(s, prefix) {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isKeyChar(s[i]) {
			return false
		}
	}
	return true
}

// IsValidKey 推送 key 的格式预检，查存储之前先过一遍
func IsValidKey(s string) bool {
	return IsValid(PrefixPushKey, s, len(PrefixPushKey)+keyRandomLen)
}

// IsValidState state token 的格式预检
func IsValidState(s string) bool {
	return IsValid(PrefixState, s, len(PrefixState)+keyRandomLen)
}

// IsValidCode 绑定短码的格式预检
func IsValidCode(s string) bool {
	if len(s) != codeLen {
		return false
	}
	return strings.Trim(s, codeAlphabet) == ""
}

func isKeyChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_' || c == '-':
		return true
	}
	return false
}

func mustRead(buf []byte) {
	if _, err := rand.Read(buf); err != nil {
		panic("keygen: 读取随机数失败: " + err.Error())
	}
}

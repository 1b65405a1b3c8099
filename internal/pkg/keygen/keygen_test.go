package keygen

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keyCharset = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func TestNewKeyUniqueness(t *testing.T) {
	t.Parallel()

	const n = 1000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		key := NewKey(PrefixPushKey)
		_, dup := seen[key]
		require.False(t, dup, "第%d个key重复: %s", i, key)
		seen[key] = struct{}{}

		assert.True(t, strings.HasPrefix(key, PrefixPushKey))
		assert.GreaterOrEqual(t, len(key), 32)
		assert.Regexp(t, keyCharset, key)
		assert.True(t, IsValidKey(key))
	}
}

func TestNewIDUniqueness(t *testing.T) {
	t.Parallel()

	const n = 1000
	seen := make(map[string]struct{}, n)
	hexRe := regexp.MustCompile(`^dl_[0-9a-f]{32}$`)
	for i := 0; i < n; i++ {
		id := NewID(PrefixDelivery)
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
		assert.Regexp(t, hexRe, id)
		assert.True(t, IsValid(PrefixDelivery, id, len(PrefixDelivery)+16))
	}
}

func TestNewCode(t *testing.T) {
	t.Parallel()

	for i := 0; i < 100; i++ {
		code := NewCode()
		assert.Len(t, code, 8)
		assert.True(t, IsValidCode(code), code)
	}
	assert.False(t, IsValidCode("abcd1234"))
	assert.False(t, IsValidCode("ABCD"))
	assert.False(t, IsValidCode("ABCD0O1I"))
}

func TestIsValid(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		prefix string
		input  string
		minLen int
		want   bool
	}{
		{name: "合法", prefix: "PK", input: "PK" + strings.Repeat("a", 32), minLen: 34, want: true},
		{name: "下划线和横线", prefix: "PK", input: "PK" + strings.Repeat("_-", 16), minLen: 34, want: true},
		{name: "前缀不对", prefix: "PK", input: "ST" + strings.Repeat("a", 32), minLen: 34, want: false},
		{name: "长度不足", prefix: "PK", input: "PKabc", minLen: 34, want: false},
		{name: "非法字符", prefix: "PK", input: "PK" + strings.Repeat("a", 31) + "/", minLen: 34, want: false},
		{name: "空串", prefix: "PK", input: "", minLen: 1, want: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, IsValid(tc.prefix, tc.input, tc.minLen))
		})
	}
}

func TestIsValidState(t *testing.T) {
	t.Parallel()

	assert.True(t, IsValidState(NewKey(PrefixState)))
	assert.False(t, IsValidState(NewKey(PrefixPushKey)))
	assert.False(t, IsValidState("ST-short"))
}

package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		code Code
		want int
	}{
		{name: "成功", code: CodeSuccess, want: http.StatusOK},
		{name: "参数错误", code: CodeInvalidParameter, want: http.StatusBadRequest},
		{name: "state过期", code: CodeStateExpired, want: http.StatusBadRequest},
		{name: "未授权", code: CodeUnauthorized, want: http.StatusUnauthorized},
		{name: "key不存在", code: CodeKeyNotFound, want: http.StatusNotFound},
		{name: "没有订阅者", code: CodeNoSubscribers, want: http.StatusNotFound},
		{name: "重复绑定", code: CodeDuplicateBinding, want: http.StatusConflict},
		{name: "限流", code: CodeRateLimitExceeded, want: http.StatusTooManyRequests},
		{name: "内部错误", code: CodeInternal, want: http.StatusInternalServerError},
		{name: "配置错误", code: CodeInvalidConfig, want: http.StatusInternalServerError},
		{name: "未知错误码", code: Code(12345), want: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, HTTPStatus(tc.code))
		})
	}
}

func TestCodeOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, CodeSuccess, CodeOf(nil))
	assert.Equal(t, CodeKeyNotFound, CodeOf(ErrKeyNotFound))
	assert.Equal(t, CodeRateLimitExceeded, CodeOf(fmt.Errorf("%w: key=PKxxx", ErrRateLimited)))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("redis: connection refused")))

	wrapped := fmt.Errorf("%w: target=tg_1", ErrNoSubscribers)
	assert.ErrorIs(t, wrapped, ErrNoSubscribers)
	assert.NotErrorIs(t, wrapped, ErrOpenIDNotFound)
}

func TestMessageOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ok", MessageOf(nil))
	assert.Equal(t, ErrInternal.Msg, MessageOf(errors.New("dial tcp 10.0.0.1:6379: i/o timeout")))
	assert.Equal(t, "推送key不存在: PKabc", MessageOf(fmt.Errorf("%w: PKabc", ErrKeyNotFound)))
}

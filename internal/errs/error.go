package errs

import (
	"errors"
	"net/http"
)

// Code 对外的数值错误码
// 0 成功，400xx 参数错误，401xx 认证，404xx 不存在，409xx 冲突，429xx 限流，500xx 内部错误
type Code int

const (
	CodeSuccess Code = 0

	CodeInvalidParameter Code = 40001
	CodeInvalidKey       Code = 40002
	CodeInvalidState     Code = 40003
	CodeStateExpired     Code = 40004
	CodeNotFollowed      Code = 40005
	CodeInvalidTemplate  Code = 40006

	CodeUnauthorized Code = 40101

	CodeKeyNotFound       Code = 40401
	CodeOpenIDNotFound    Code = 40402
	CodeNoSubscribers     Code = 40403
	CodeChannelNotFound   Code = 40404
	CodeTargetNotFound    Code = 40405
	CodeRecipientNotFound Code = 40406
	CodeRecordNotFound    Code = 40407

	CodeDuplicateBinding Code = 40901
	CodeChannelInUse     Code = 40902

	CodeRateLimitExceeded Code = 42901

	CodeInternal           Code = 50001
	CodeInvalidConfig      Code = 50002
	CodeUnknownChannelType Code = 50003
)

// Error 带错误码的错误，全部以包级哨兵的形式存在，调用方用 errors.Is 判断
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func newError(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// 定义统一的错误类型
var (
	ErrInvalidParameter = newError(CodeInvalidParameter, "参数错误")
	ErrInvalidKey       = newError(CodeInvalidKey, "推送key格式错误")
	ErrInvalidState     = newError(CodeInvalidState, "state参数不合法")
	ErrStateExpired     = newError(CodeStateExpired, "state已过期或不存在")
	ErrNotFollowed      = newError(CodeNotFollowed, "用户未关注公众号")
	ErrInvalidTemplate  = newError(CodeInvalidTemplate, "模板消息缺少模板ID")

	ErrUnauthorized = newError(CodeUnauthorized, "未授权")

	ErrKeyNotFound       = newError(CodeKeyNotFound, "推送key不存在")
	ErrOpenIDNotFound    = newError(CodeOpenIDNotFound, "未绑定接收者")
	ErrNoSubscribers     = newError(CodeNoSubscribers, "没有订阅者")
	ErrChannelNotFound   = newError(CodeChannelNotFound, "渠道不存在")
	ErrTargetNotFound    = newError(CodeTargetNotFound, "推送目标不存在")
	ErrRecipientNotFound = newError(CodeRecipientNotFound, "接收者不存在")
	ErrRecordNotFound    = newError(CodeRecordNotFound, "推送记录不存在")

	ErrDuplicateBinding = newError(CodeDuplicateBinding, "接收者已绑定")
	ErrChannelInUse     = newError(CodeChannelInUse, "渠道仍被推送目标引用")

	ErrRateLimited = newError(CodeRateLimitExceeded, "已达到速率限制")

	ErrInternal           = newError(CodeInternal, "系统内部错误")
	ErrInvalidConfig      = newError(CodeInvalidConfig, "渠道配置无效")
	ErrUnknownChannelType = newError(CodeUnknownChannelType, "未支持的渠道类型")
)

// CodeOf 取出错误链上的错误码，非业务错误一律视为内部错误
func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf 对外展示的错误信息，内部错误不暴露细节
func MessageOf(err error) string {
	if err == nil {
		return "ok"
	}
	var e *Error
	if errors.As(err, &e) && e.Code != CodeInternal {
		return err.Error()
	}
	return ErrInternal.Msg
}

// HTTPStatus 错误码到 HTTP 状态码的映射
func HTTPStatus(code Code) int {
	switch {
	case code == CodeSuccess:
		return http.StatusOK
	case code >= 40000 && code < 40100:
		return http.StatusBadRequest
	case code >= 40100 && code < 40200:
		return http.StatusUnauthorized
	case code >= 40400 && code < 40500:
		return http.StatusNotFound
	case code >= 40900 && code < 41000:
		return http.StatusConflict
	case code >= 42900 && code < 43000:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

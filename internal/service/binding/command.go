package binding

import (
	"strings"

	"gitee.com/flycash/push-relay/internal/domain"
)

const (
	commandBind        = domain.BindKindBind
	commandSubscribe   = domain.BindKindSubscribe
	commandUnsubscribe = domain.BindKind("unsubscribe")
)

const helpText = "支持的指令：\nbind 绑定码\nsubscribe 绑定码\nunsubscribe 推送key"

var commandAliases = map[string]domain.BindKind{
	"bind":        commandBind,
	"绑定":          commandBind,
	"subscribe":   commandSubscribe,
	"订阅":          commandSubscribe,
	"unsubscribe": commandUnsubscribe,
	"退订":          commandUnsubscribe,
}

// parseCommand 解析 "指令 参数" 形式的文本，指令不区分大小写
func parseCommand(content string) (domain.BindKind, string, bool) {
	fields := strings.Fields(content)
	if len(fields) != 2 {
		return "", "", false
	}
	cmd, ok := commandAliases[strings.ToLower(fields[0])]
	if !ok {
		return "", "", false
	}
	return cmd, fields[1], true
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	const maxTitle = 64
	if r := []rune(s); len(r) > maxTitle {
		return string(r[:maxTitle])
	}
	return s
}

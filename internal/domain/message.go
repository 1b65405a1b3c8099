package domain

// Message 交给渠道适配器发送的单条消息
type Message struct {
	ToUser      string
	Title       string
	Body        string
	URL         string
	MessageType MessageType
	TemplateID  string
}

// SendResult 单次发送结果，上游拒绝不视为 error
type SendResult struct {
	Success    bool
	ExternalID string
	Error      string
}

// ValidateResult 凭证校验结果
type ValidateResult struct {
	Valid bool
	Error string
}

// FollowStatus 用户关注状态
type FollowStatus struct {
	Subscribed bool
	Nickname   string
}

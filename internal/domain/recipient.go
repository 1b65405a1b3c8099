package domain

import "time"

// Recipient 绑定到推送目标的上游用户（OpenID）
// (ParentID, PlatformUserID) 唯一
type Recipient struct {
	ID             string    `json:"id"`
	ParentID       string    `json:"parentId"`
	PlatformUserID string    `json:"platformUserId"`
	Nickname       string    `json:"nickname,omitempty"`
	Remark         string    `json:"remark,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

package domain

import "time"

// Direction 记录方向
type Direction string

const (
	DirectionOutbound Direction = "outbound" // 推送给用户
	DirectionInbound  Direction = "inbound"  // 用户发来的消息
)

// DeliveryResult 单个接收者的发送结果
type DeliveryResult struct {
	RecipientID    string `json:"recipientId"`
	PlatformUserID string `json:"platformUserId,omitempty"`
	Success        bool   `json:"success"`
	ExternalID     string `json:"externalId,omitempty"`
	Error          string `json:"error,omitempty"`
}

// DeliveryRecord 推送历史，写入后只会被清理删除
type DeliveryRecord struct {
	ID           string           `json:"id"`
	Direction    Direction        `json:"direction"`
	ChannelID    string           `json:"channelId"`
	TargetID     string           `json:"targetId,omitempty"`
	Title        string           `json:"title"`
	Body         string           `json:"body,omitempty"`
	Total        int              `json:"total"`
	SuccessCount int              `json:"successCount"`
	FailedCount  int              `json:"failedCount"`
	Results      []DeliveryResult `json:"results"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// PushResult 一次推送的汇总结果
// SuccessCount + FailedCount == Total == len(Results)
type PushResult struct {
	PushID       string
	TargetID     string
	Total        int
	SuccessCount int
	FailedCount  int
	Results      []DeliveryResult
}

// NewPushResult 按结果汇总计数
func NewPushResult(pushID, targetID string, results []DeliveryResult) PushResult {
	res := PushResult{
		PushID:   pushID,
		TargetID: targetID,
		Total:    len(results),
		Results:  results,
	}
	for i := range results {
		if results[i].Success {
			res.SuccessCount++
		} else {
			res.FailedCount++
		}
	}
	return res
}

// DeliveryQuery 历史查询条件，Page 从 1 开始
type DeliveryQuery struct {
	Page      int
	PageSize  int
	TargetID  string
	StartDate *time.Time
	EndDate   *time.Time
}

// Match 判断记录是否满足过滤条件
func (q DeliveryQuery) Match(r DeliveryRecord) bool {
	if q.TargetID != "" && r.TargetID != q.TargetID {
		return false
	}
	if q.StartDate != nil && r.CreatedAt.Before(*q.StartDate) {
		return false
	}
	if q.EndDate != nil && r.CreatedAt.After(*q.EndDate) {
		return false
	}
	return true
}

// DeliveryPage 分页结果，Total 是过滤后的总数
type DeliveryPage struct {
	Items    []DeliveryRecord
	Total    int
	Page     int
	PageSize int
}

package domain

import (
	"encoding/json"
	"time"

	"social_network_service/internal/member/domain"
	"social_network_service/pkg/database"
)

// EventName websocket event 名稱
type EventName string

const (
	// EventSayHello 測試連線用
	EventSayHello EventName = "say-hello"
	// EventSendMessage client 傳送 1對1 訊息
	EventSendMessage EventName = "send-message"
	// EventSuccessMessage 回給 sender 的送達確認
	EventSuccessMessage EventName = "success-message"
	// EventNewMessage 推給 recipient 的新訊息
	EventNewMessage EventName = "new-message"
	// EventPresenceOffline 有人斷線
	EventPresenceOffline EventName = "presence-offline"
	// EventCustomError handler 失敗時回給原連線
	EventCustomError EventName = "custom-error"
	// EventAck 回應 client 帶的 ack id
	EventAck EventName = "ack"
)

// HelloResponse say-hello 的回覆內容
const HelloResponse = "Hello BE to FE"

// InboundEvent client -> server frame
type InboundEvent struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   string          `json:"ack,omitempty"`
}

// OutboundEvent server -> client frame
type OutboundEvent struct {
	Event EventName   `json:"event"`
	Ack   string      `json:"ack,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

// HelloReq say-hello payload
type HelloReq struct {
	Message string `json:"message"`
}

// SendMessageReq send-message payload
type SendMessageReq struct {
	Content string `json:"content"`
	SendTo  string `json:"sendTo"`
}

// SendMessageResult 寫入結果，Created 表示這次建立了新的 1對1 聊天室
type SendMessageResult struct {
	Message Message `json:"message"`
	Created bool    `json:"created"`
}

// SuccessPayload success-message data
type SuccessPayload struct {
	Content string `json:"content"`
}

// NewMessagePayload new-message data
type NewMessagePayload struct {
	Content string         `json:"content"`
	From    domain.Profile `json:"from"`
}

// PresencePayload presence-offline data
type PresencePayload struct {
	UserID string `json:"userId"`
}

// Attachment multipart 上傳的圖片
type Attachment struct {
	database.UploadObject
}

// CreateGroupReq 建立群組
type CreateGroupReq struct {
	Name         string
	Participants []string
	Image        *Attachment
}

// ChatPage 1對1 聊天室與分頁後的訊息
type ChatPage struct {
	ID           string                       `json:"_id"`
	Participants []domain.Profile             `json:"participants"`
	CreatedBy    string                       `json:"createdBy"`
	CreatedAt    time.Time                    `json:"createdAt"`
	UpdatedAt    time.Time                    `json:"updatedAt"`
	Messages     *database.Paginated[Message] `json:"messages"`
}

// GroupSummary 建立群組後回傳
type GroupSummary struct {
	ID           string   `json:"_id"`
	Group        string   `json:"group"`
	RoomID       string   `json:"roomId"`
	GroupImage   string   `json:"groupImage,omitempty"`
	Participants []string `json:"participants"`
	CreatedBy    string   `json:"createdBy"`
}

// Summary group chat summary
func (c *Chat) Summary() GroupSummary {
	return GroupSummary{
		ID:           c.ID.Hex(),
		Group:        c.Group,
		RoomID:       c.RoomID,
		GroupImage:   c.GroupImage,
		Participants: c.Participants,
		CreatedBy:    c.CreatedBy,
	}
}

// StreamEventType 送到 kafka / redis 的事件種類
type StreamEventType string

const (
	// MessageSent 訊息已寫入
	MessageSent StreamEventType = "message.sent"
	// GroupCreated 群組已建立
	GroupCreated StreamEventType = "group.created"
)

// ChatEvent 對外發布的聊天事件
type ChatEvent struct {
	Type       StreamEventType `json:"type"`
	ChatKey    string          `json:"chatKey"`
	Actor      string          `json:"actor"`
	Recipients []string        `json:"recipients"`
	Message    *Message        `json:"message,omitempty"`
	Group      *GroupSummary   `json:"group,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}

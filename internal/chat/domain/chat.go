package domain

import (
	"regexp"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatCollection chats collection name
const ChatCollection = "chats"

const (
	// MinContentLength 訊息最短長度
	MinContentLength = 1
	// MaxContentLength 訊息最長長度
	MaxContentLength = 500000
)

// Chat 1對1 (沒有 group) 或群組聊天室
type Chat struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Participants []string           `bson:"participants" json:"participants"`
	Group        string             `bson:"group,omitempty" json:"group,omitempty"`
	RoomID       string             `bson:"roomId,omitempty" json:"roomId,omitempty"`
	GroupImage   string             `bson:"groupImage,omitempty" json:"groupImage,omitempty"`
	// PairKey 只有 1對1 有，排序後的兩個 participant，unique index
	PairKey   string     `bson:"pairKey,omitempty" json:"-"`
	Messages  []Message  `bson:"messages" json:"messages"`
	CreatedBy string     `bson:"createdBy" json:"createdBy"`
	Version   int64      `bson:"version" json:"version"`
	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time  `bson:"updatedAt" json:"updatedAt"`
	FreezedAt *time.Time `bson:"freezedAt,omitempty" json:"-"`
	FreezedBy string     `bson:"freezedBy,omitempty" json:"-"`
}

// Message 內嵌在 Chat.messages，依序附加
type Message struct {
	ID         string    `bson:"id" json:"id"`
	Content    string    `bson:"content,omitempty" json:"content,omitempty"`
	Attachment string    `bson:"attachment,omitempty" json:"attachment,omitempty"`
	CreatedBy  string    `bson:"createdBy" json:"createdBy"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
}

// BeforeCreate set timestamps
func (c *Chat) BeforeCreate(now time.Time) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Messages == nil {
		c.Messages = []Message{}
	}
}

// SetObjectID set generated id
func (c *Chat) SetObjectID(id primitive.ObjectID) {
	c.ID = id
}

// IsGroup group 與 roomId 同時存在
func (c *Chat) IsGroup() bool {
	return c.Group != ""
}

// PairKey 兩個 participant 排序後組成，順序無關
func PairKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + ":" + pair[1]
}

var whitespace = regexp.MustCompile(`\s+`)

// NewRoomID 群組名稱空白換成 "_" 再接 uuid
func NewRoomID(group string) string {
	return whitespace.ReplaceAllString(group, "_") + "_" + uuid.NewString()
}

// NewMessage 產生帶 id 的訊息，同樣內容重送也不會重複
func NewMessage(content, createdBy string, now time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Content:   content,
		CreatedBy: createdBy,
		CreatedAt: now,
	}
}

// ValidContent 以字元數判斷長度
func ValidContent(content string) bool {
	n := utf8.RuneCountInString(content)
	return n >= MinContentLength && n <= MaxContentLength
}

// NewGroupChat 建立群組，creator 會被加到 participants 最後
func NewGroupChat(group, roomID, image, creator string, participants []string) *Chat {
	members := make([]string, 0, len(participants)+1)
	members = append(members, participants...)
	members = append(members, creator)
	return &Chat{
		Participants: members,
		Group:        group,
		RoomID:       roomID,
		GroupImage:   image,
		Messages:     []Message{},
		CreatedBy:    creator,
	}
}

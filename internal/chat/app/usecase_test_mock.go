package app

import (
	"context"
	"sync"
	"time"

	"social_network_service/internal/chat/domain"
	memberdomain "social_network_service/internal/member/domain"
	"social_network_service/pkg/database"
	"social_network_service/pkg/token"

	"github.com/stretchr/testify/mock"
)

// MockChatRepository Mock ChatRepository
type MockChatRepository struct {
	mock.Mock
}

// FindDirectPage moke find direct chat page
func (m *MockChatRepository) FindDirectPage(ctx context.Context, pairKey string, page database.PageRequest) (*domain.Chat, int64, error) {
	args := m.Called(ctx, pairKey, page)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Chat), args.Get(1).(int64), args.Error(2)
	}
	return nil, 0, args.Error(2)
}

// AppendDirectMessage moke upsert direct message
func (m *MockChatRepository) AppendDirectMessage(ctx context.Context, pairKey string, participants []string, msg domain.Message) (bool, error) {
	args := m.Called(ctx, pairKey, participants, msg)
	return args.Bool(0), args.Error(1)
}

// CreateGroup moke create group
func (m *MockChatRepository) CreateGroup(ctx context.Context, chat *domain.Chat) (*domain.Chat, error) {
	args := m.Called(ctx, chat)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Chat), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockDirectory Mock member Directory
type MockDirectory struct {
	mock.Mock
}

// FindProfile moke find profile
func (m *MockDirectory) FindProfile(ctx context.Context, memberID string) (*memberdomain.Profile, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) != nil {
		return args.Get(0).(*memberdomain.Profile), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindProfiles moke find profiles
func (m *MockDirectory) FindProfiles(ctx context.Context, memberIDs []string) ([]memberdomain.Profile, error) {
	args := m.Called(ctx, memberIDs)
	if args.Get(0) != nil {
		return args.Get(0).([]memberdomain.Profile), args.Error(1)
	}
	return nil, args.Error(1)
}

// IsFriend moke friend check
func (m *MockDirectory) IsFriend(ctx context.Context, memberID, friendID string) (bool, error) {
	args := m.Called(ctx, memberID, friendID)
	return args.Bool(0), args.Error(1)
}

// CountFriends moke count friends
func (m *MockDirectory) CountFriends(ctx context.Context, memberID string, candidates []string) (int64, error) {
	args := m.Called(ctx, memberID, candidates)
	return args.Get(0).(int64), args.Error(1)
}

// MockObjectStorage Mock ObjectStorage
type MockObjectStorage struct {
	mock.Mock
}

// Upload moke upload
func (m *MockObjectStorage) Upload(ctx context.Context, dir string, obj database.UploadObject) (string, error) {
	args := m.Called(ctx, dir, obj)
	return args.String(0), args.Error(1)
}

// Delete moke delete
func (m *MockObjectStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockEventPublisher Mock EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

// Publish moke publish
func (m *MockEventPublisher) Publish(ctx context.Context, evt domain.ChatEvent) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

// MockRedisRepository Mock RedisRepository[string]
type MockRedisRepository struct {
	mock.Mock
}

// Set moke set
func (m *MockRedisRepository) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

// Exists moke exists
func (m *MockRedisRepository) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// MockChatService Mock ChatService
type MockChatService struct {
	mock.Mock
}

// SayHello moke say hello
func (m *MockChatService) SayHello(ctx context.Context, memberID string, req domain.HelloReq) string {
	args := m.Called(ctx, memberID, req)
	return args.String(0)
}

// SendMessage moke send message
func (m *MockChatService) SendMessage(ctx context.Context, senderID string, req domain.SendMessageReq) (*domain.SendMessageResult, error) {
	args := m.Called(ctx, senderID, req)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.SendMessageResult), args.Error(1)
	}
	return nil, args.Error(1)
}

// GetDirectChat moke get direct chat
func (m *MockChatService) GetDirectChat(ctx context.Context, memberID, counterpartID string, page database.PageRequest) (*domain.ChatPage, error) {
	args := m.Called(ctx, memberID, counterpartID, page)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.ChatPage), args.Error(1)
	}
	return nil, args.Error(1)
}

// CreateGroupChat moke create group chat
func (m *MockChatService) CreateGroupChat(ctx context.Context, memberID string, req domain.CreateGroupReq) (*domain.GroupSummary, error) {
	args := m.Called(ctx, memberID, req)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.GroupSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockTokenRevoker Mock TokenRevoker
type MockTokenRevoker struct {
	mock.Mock
}

// Revoke moke revoke
func (m *MockTokenRevoker) Revoke(ctx context.Context, claims *token.Claims) error {
	args := m.Called(ctx, claims)
	return args.Error(0)
}

// Emitted 一筆推送紀錄
type Emitted struct {
	Event string
	Data  interface{}
}

// RecordingHandle presence.Handle，記錄所有推送
type RecordingHandle struct {
	id     string
	mu     sync.Mutex
	events []Emitted
}

// NewRecordingHandle create RecordingHandle
func NewRecordingHandle(id string) *RecordingHandle {
	return &RecordingHandle{id: id}
}

// ID handle id
func (h *RecordingHandle) ID() string { return h.id }

// Emit record event
func (h *RecordingHandle) Emit(event string, data interface{}) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, Emitted{Event: event, Data: data})
	return nil
}

// Events 目前收到的事件
func (h *RecordingHandle) Events() []Emitted {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Emitted, len(h.events))
	copy(out, h.events)
	return out
}

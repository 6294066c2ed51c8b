package app

import (
	"context"
	"path"
	"strings"
	"time"

	"social_network_service/internal/chat/domain"
	"social_network_service/internal/chat/presence"
	"social_network_service/internal/chat/repository"
	memberdomain "social_network_service/internal/member/domain"
	memberrepo "social_network_service/internal/member/repository"
	"social_network_service/pkg"
	"social_network_service/pkg/database"
	errprocess "social_network_service/pkg/err"
	"social_network_service/pkg/logger"

	"go.uber.org/zap"
)

// ChatService websocket 與 http handler 共用
type ChatService interface {
	SayHello(ctx context.Context, memberID string, req domain.HelloReq) string
	SendMessage(ctx context.Context, senderID string, req domain.SendMessageReq) (*domain.SendMessageResult, error)
	GetDirectChat(ctx context.Context, memberID, counterpartID string, page database.PageRequest) (*domain.ChatPage, error)
	CreateGroupChat(ctx context.Context, memberID string, req domain.CreateGroupReq) (*domain.GroupSummary, error)
}

// ChatUseCase 聊天室商業邏輯
type ChatUseCase struct {
	chatRepo  repository.ChatRepository
	directory memberrepo.Directory
	storage   database.ObjectStorage
	publisher repository.EventPublisher
	registry  *presence.Registry
	now       func() time.Time
}

// NewChatUseCase create ChatUseCase
func NewChatUseCase(
	chatRepo repository.ChatRepository,
	directory memberrepo.Directory,
	storage database.ObjectStorage,
	publisher repository.EventPublisher,
	registry *presence.Registry,
) *ChatUseCase {
	if publisher == nil {
		publisher = repository.NewNopPublisher()
	}
	return &ChatUseCase{
		chatRepo:  chatRepo,
		directory: directory,
		storage:   storage,
		publisher: publisher,
		registry:  registry,
		now:       time.Now,
	}
}

// SayHello 測試連線
func (uc *ChatUseCase) SayHello(ctx context.Context, memberID string, req domain.HelloReq) string {
	logger.Log.Info("say-hello", zap.String("member", memberID), zap.String("message", req.Message))
	return domain.HelloResponse
}

// SendMessage 寫入 1對1 訊息並推送給雙方
func (uc *ChatUseCase) SendMessage(ctx context.Context, senderID string, req domain.SendMessageReq) (*domain.SendMessageResult, error) {
	sendTo := strings.TrimSpace(req.SendTo)
	if sendTo == "" {
		return nil, errprocess.New(errprocess.Validation, "sendTo is required")
	}
	if sendTo == senderID {
		return nil, errprocess.New(errprocess.Validation, "cannot send message to yourself")
	}
	if !domain.ValidContent(req.Content) {
		return nil, errprocess.New(errprocess.Validation, "content must be 1 to 500000 characters")
	}

	ok, err := uc.directory.IsFriend(ctx, senderID, sendTo)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errprocess.New(errprocess.Authorization, "recipient is not a friend")
	}

	msg := domain.NewMessage(req.Content, senderID, uc.now().UTC())
	pairKey := domain.PairKey(senderID, sendTo)
	created, err := uc.chatRepo.AppendDirectMessage(ctx, pairKey, []string{senderID, sendTo}, msg)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Log.Debug("direct chat created", zap.String("pairKey", pairKey))
	}

	uc.registry.Emit(senderID, string(domain.EventSuccessMessage), domain.SuccessPayload{Content: msg.Content})
	if _, online := uc.registry.Lookup(sendTo); online {
		uc.registry.Emit(sendTo, string(domain.EventNewMessage), domain.NewMessagePayload{
			Content: msg.Content,
			From:    uc.senderProfile(ctx, senderID),
		})
	}

	uc.publish(ctx, domain.ChatEvent{
		Type:       domain.MessageSent,
		ChatKey:    pairKey,
		Actor:      senderID,
		Recipients: []string{sendTo},
		Message:    &msg,
		OccurredAt: msg.CreatedAt,
	})

	return &domain.SendMessageResult{Message: msg, Created: created}, nil
}

// senderProfile 查不到時只帶 id，訊息已寫入不因此失敗
func (uc *ChatUseCase) senderProfile(ctx context.Context, memberID string) memberdomain.Profile {
	p, err := uc.directory.FindProfile(ctx, memberID)
	if err != nil {
		logger.Log.Warn("load sender profile", zap.String("member", memberID), zap.Error(err))
		return memberdomain.Profile{ID: memberID}
	}
	return *p
}

// GetDirectChat 查詢 1對1 聊天室，不存在時不會建立
func (uc *ChatUseCase) GetDirectChat(ctx context.Context, memberID, counterpartID string, page database.PageRequest) (*domain.ChatPage, error) {
	counterpartID = strings.TrimSpace(counterpartID)
	if counterpartID == "" || counterpartID == memberID {
		return nil, errprocess.New(errprocess.Validation, "invalid counterpart")
	}

	chat, count, err := uc.chatRepo.FindDirectPage(ctx, domain.PairKey(memberID, counterpartID), page)
	if err != nil {
		return nil, err
	}

	profiles, err := uc.directory.FindProfiles(ctx, chat.Participants)
	if err != nil {
		return nil, err
	}

	return &domain.ChatPage{
		ID:           chat.ID.Hex(),
		Participants: profiles,
		CreatedBy:    chat.CreatedBy,
		CreatedAt:    chat.CreatedAt,
		UpdatedAt:    chat.UpdatedAt,
		Messages:     database.NewPaginated(chat.Messages, count, page),
	}, nil
}

// CreateGroupChat 所有 participant 都必須是好友，圖片先上傳，建立失敗時刪除
func (uc *ChatUseCase) CreateGroupChat(ctx context.Context, memberID string, req domain.CreateGroupReq) (*domain.GroupSummary, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errprocess.New(errprocess.Validation, "group name is required")
	}

	participants := pkg.UniqueWithout(req.Participants, memberID)
	if len(participants) == 0 {
		return nil, errprocess.New(errprocess.Validation, "participants are required")
	}

	friends, err := uc.directory.CountFriends(ctx, memberID, participants)
	if err != nil {
		return nil, err
	}
	if int(friends) != len(participants) {
		return nil, errprocess.New(errprocess.Authorization, "some recipients invalid")
	}

	roomID := domain.NewRoomID(name)
	var imageKey string
	if req.Image != nil {
		if uc.storage == nil {
			return nil, errprocess.New(errprocess.Validation, "attachments are disabled")
		}
		imageKey, err = uc.storage.Upload(ctx, path.Join("chat", roomID), req.Image.UploadObject)
		if err != nil {
			return nil, err
		}
	}

	chat, err := uc.chatRepo.CreateGroup(ctx, domain.NewGroupChat(name, roomID, imageKey, memberID, participants))
	if err != nil {
		if imageKey != "" {
			if delErr := uc.storage.Delete(ctx, imageKey); delErr != nil {
				logger.Log.Error("remove orphan group image", zap.String("key", imageKey), zap.Error(delErr))
			}
		}
		if errprocess.Is(err, errprocess.CreationFailure) {
			return nil, err
		}
		return nil, errprocess.Wrap(errprocess.CreationFailure, "failed to create group chat", err)
	}

	summary := chat.Summary()
	uc.publish(ctx, domain.ChatEvent{
		Type:       domain.GroupCreated,
		ChatKey:    chat.RoomID,
		Actor:      memberID,
		Recipients: participants,
		Group:      &summary,
		OccurredAt: uc.now().UTC(),
	})
	return &summary, nil
}

func (uc *ChatUseCase) publish(ctx context.Context, evt domain.ChatEvent) {
	if err := uc.publisher.Publish(ctx, evt); err != nil {
		_ = errprocess.Log("publish chat event",
			errprocess.Wrap(errprocess.TransientStore, "publish chat event", err),
			zap.String("type", string(evt.Type)), zap.String("chat", evt.ChatKey))
	}
}

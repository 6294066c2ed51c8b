package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"social_network_service/internal/chat/domain"
	"social_network_service/internal/chat/presence"
	memberdomain "social_network_service/internal/member/domain"
	"social_network_service/pkg/database"
	errprocess "social_network_service/pkg/err"
	"social_network_service/pkg/logger"

	"github.com/cucumber/godog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memoryChatRepository ChatRepository in memory
type memoryChatRepository struct {
	mu     sync.Mutex
	direct map[string]*domain.Chat
	groups []*domain.Chat
}

func newMemoryChatRepository() *memoryChatRepository {
	return &memoryChatRepository{direct: map[string]*domain.Chat{}}
}

func (r *memoryChatRepository) FindDirectPage(_ context.Context, pairKey string, page database.PageRequest) (*domain.Chat, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chat, ok := r.direct[pairKey]
	if !ok {
		return nil, 0, errprocess.New(errprocess.NotFound, "chat not found")
	}
	out := *chat
	count := int64(len(chat.Messages))
	if !page.All {
		start := page.Skip()
		if start > count {
			start = count
		}
		end := start + page.Normalize().Size
		if end > count {
			end = count
		}
		out.Messages = chat.Messages[start:end]
	}
	return &out, count, nil
}

func (r *memoryChatRepository) AppendDirectMessage(_ context.Context, pairKey string, participants []string, msg domain.Message) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if chat, ok := r.direct[pairKey]; ok {
		chat.Messages = append(chat.Messages, msg)
		chat.Version++
		return false, nil
	}
	r.direct[pairKey] = &domain.Chat{
		ID:           primitive.NewObjectID(),
		Participants: participants,
		PairKey:      pairKey,
		Messages:     []domain.Message{msg},
		CreatedBy:    msg.CreatedBy,
		Version:      1,
	}
	return true, nil
}

func (r *memoryChatRepository) CreateGroup(_ context.Context, chat *domain.Chat) (*domain.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chat.ID = primitive.NewObjectID()
	r.groups = append(r.groups, chat)
	return chat, nil
}

// memoryDirectory friends[a][b] 表示 b 在 a 的好友名單
type memoryDirectory struct {
	friends map[string]map[string]bool
}

func (d *memoryDirectory) FindProfile(_ context.Context, memberID string) (*memberdomain.Profile, error) {
	return &memberdomain.Profile{ID: memberID, FirstName: memberID}, nil
}

func (d *memoryDirectory) FindProfiles(_ context.Context, memberIDs []string) ([]memberdomain.Profile, error) {
	out := make([]memberdomain.Profile, 0, len(memberIDs))
	for _, id := range memberIDs {
		out = append(out, memberdomain.Profile{ID: id, FirstName: id})
	}
	return out, nil
}

func (d *memoryDirectory) IsFriend(_ context.Context, memberID, friendID string) (bool, error) {
	return d.friends[memberID][friendID], nil
}

func (d *memoryDirectory) CountFriends(_ context.Context, memberID string, candidates []string) (int64, error) {
	var n int64
	for _, c := range candidates {
		if d.friends[c][memberID] {
			n++
		}
	}
	return n, nil
}

type chatScenario struct {
	repo      *memoryChatRepository
	directory *memoryDirectory
	registry  *presence.Registry
	uc        *ChatUseCase
	handles   map[string]*RecordingHandle
	lastErr   error
}

func newChatScenario() *chatScenario {
	s := &chatScenario{
		repo:      newMemoryChatRepository(),
		directory: &memoryDirectory{friends: map[string]map[string]bool{}},
		registry:  presence.NewRegistry(),
		handles:   map[string]*RecordingHandle{},
	}
	s.uc = NewChatUseCase(s.repo, s.directory, nil, nil, s.registry)
	return s
}

func (s *chatScenario) areFriends(a, b string) error {
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		if s.directory.friends[pair[0]] == nil {
			s.directory.friends[pair[0]] = map[string]bool{}
		}
		s.directory.friends[pair[0]][pair[1]] = true
	}
	return nil
}

func (s *chatScenario) isOnline(member string) error {
	h := NewRecordingHandle("conn-" + member)
	s.handles[member] = h
	s.registry.Register(member, h)
	return nil
}

func (s *chatScenario) sends(sender, content, recipient string) error {
	_, s.lastErr = s.uc.SendMessage(context.Background(), sender, domain.SendMessageReq{Content: content, SendTo: recipient})
	return nil
}

func (s *chatScenario) createsGroup(creator, name, participants string) error {
	_, s.lastErr = s.uc.CreateGroupChat(context.Background(), creator, domain.CreateGroupReq{
		Name:         name,
		Participants: strings.Split(participants, ","),
	})
	return nil
}

func (s *chatScenario) directChatWithMessages(chats int, a, b string, messages int) error {
	if s.lastErr != nil {
		return fmt.Errorf("unexpected error: %w", s.lastErr)
	}
	if len(s.repo.direct) != chats {
		return fmt.Errorf("expected %d direct chats, got %d", chats, len(s.repo.direct))
	}
	chat, _, err := s.repo.FindDirectPage(context.Background(), domain.PairKey(a, b), database.PageRequest{All: true})
	if err != nil {
		return err
	}
	if len(chat.Messages) != messages {
		return fmt.Errorf("expected %d messages, got %d", messages, len(chat.Messages))
	}
	return nil
}

func (s *chatScenario) noDirectChat(a, b string) error {
	if _, ok := s.repo.direct[domain.PairKey(a, b)]; ok {
		return fmt.Errorf("direct chat between %s and %s should not exist", a, b)
	}
	return nil
}

func (s *chatScenario) receivedEvents(member string, n int, event string) error {
	h, ok := s.handles[member]
	if !ok {
		return fmt.Errorf("%s is not online", member)
	}
	got := 0
	for _, e := range h.Events() {
		if e.Event == event {
			got++
		}
	}
	if got != n {
		return fmt.Errorf("%s expected %d %s events, got %d", member, n, event, got)
	}
	return nil
}

func (s *chatScenario) lastErrorKind(kind string) error {
	if got := errprocess.KindOf(s.lastErr); string(got) != kind {
		return fmt.Errorf("expected error kind %s, got %s (%v)", kind, got, s.lastErr)
	}
	return nil
}

func (s *chatScenario) lastErrorIs(msg string) error {
	if s.lastErr == nil || errprocess.ToPayload(s.lastErr).Message != msg {
		return fmt.Errorf("expected error %q, got %v", msg, s.lastErr)
	}
	return nil
}

func (s *chatScenario) groupChatsExist(n int) error {
	if len(s.repo.groups) != n {
		return fmt.Errorf("expected %d group chats, got %d", n, len(s.repo.groups))
	}
	return nil
}

func (s *chatScenario) groupHasParticipants(name, participants string) error {
	for _, g := range s.repo.groups {
		if g.Group != name {
			continue
		}
		if strings.Join(g.Participants, ",") != participants {
			return fmt.Errorf("group %s participants %v", name, g.Participants)
		}
		return nil
	}
	return fmt.Errorf("group %s not found", name)
}

// InitializeChatScenario 每個 scenario 都是新的狀態
func InitializeChatScenario(ctx *godog.ScenarioContext) {
	logger.SetNewNop()
	s := newChatScenario()

	ctx.Step(`^"([^"]*)" and "([^"]*)" are friends$`, s.areFriends)
	ctx.Step(`^"([^"]*)" is online$`, s.isOnline)
	ctx.Step(`^"([^"]*)" sends "([^"]*)" to "([^"]*)"$`, s.sends)
	ctx.Step(`^"([^"]*)" creates group "([^"]*)" with "([^"]*)"$`, s.createsGroup)
	ctx.Step(`^there is (\d+) direct chat between "([^"]*)" and "([^"]*)" with (\d+) messages$`, s.directChatWithMessages)
	ctx.Step(`^there is no direct chat between "([^"]*)" and "([^"]*)"$`, s.noDirectChat)
	ctx.Step(`^"([^"]*)" received (\d+) "([^"]*)" events$`, s.receivedEvents)
	ctx.Step(`^the last error kind is "([^"]*)"$`, s.lastErrorKind)
	ctx.Step(`^the last error is "([^"]*)"$`, s.lastErrorIs)
	ctx.Step(`^(\d+) group chats exist$`, s.groupChatsExist)
	ctx.Step(`^the group "([^"]*)" has participants "([^"]*)"$`, s.groupHasParticipants)
}

func TestChatFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeChatScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

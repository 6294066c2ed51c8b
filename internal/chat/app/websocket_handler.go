package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"social_network_service/internal/chat/domain"
	"social_network_service/internal/chat/presence"
	errprocess "social_network_service/pkg/err"
	"social_network_service/pkg/logger"
	"social_network_service/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPingInterval 沒設定 ping_interval 時使用
const DefaultPingInterval = 10 * time.Minute

const writeWait = 10 * time.Second

// ErrConnectionClosed 連線結束後 handle 仍被拿來寫入
var ErrConnectionClosed = errors.New("connection closed")

// ChatWebsocketHandler 每條連線一個 connectionRouter
type ChatWebsocketHandler struct {
	chat         ChatService
	registry     *presence.Registry
	pingInterval time.Duration
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(chat ChatService, registry *presence.Registry, pingInterval time.Duration) *ChatWebsocketHandler {
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}
	return &ChatWebsocketHandler{
		chat:         chat,
		registry:     registry,
		pingInterval: pingInterval,
	}
}

// connection presence.Handle 的實作，寫入需要上鎖 (ping goroutine 與 fan-out 會同時寫)
// fiber 會回收 *websocket.Conn 給下一條連線，closed 之後一律不再碰 conn
type connection struct {
	id       string
	memberID string
	conn     *websocket.Conn
	mu       sync.Mutex
	closed   bool
}

func (c *connection) ID() string {
	return c.id
}

// markClosed 等進行中的寫入結束後才標記
func (c *connection) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *connection) Emit(event string, data interface{}) error {
	return c.send(domain.OutboundEvent{Event: domain.EventName(event), Data: data})
}

func (c *connection) send(out domain.OutboundEvent) error {
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, b)
}

func (c *connection) write(mt int, b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(mt, b)
}

// HandleConnection 是 WebSocket 連線的進入點，middleware 已經驗證過 token
func (h *ChatWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	memberID, _ := conn.Locals(middlewares.TokenMemberID).(string)
	c := &connection{id: uuid.NewString(), memberID: memberID, conn: conn}
	if memberID == "" {
		_ = c.Emit(string(domain.EventCustomError), errprocess.ToPayload(errprocess.New(errprocess.Authentication, "unauthenticated")))
		conn.Close()
		return
	}

	// 同一個 member 後連上的取代前一條
	if prev := h.registry.Register(memberID, c); prev != nil {
		logger.Log.Info("connection superseded", zap.String("userID", memberID), zap.String("previous", prev.ID()))
	}
	logger.Log.Info("websocket connected", zap.String("userID", memberID), zap.String("conn", c.id))

	ticker := time.NewTicker(h.pingInterval)
	ctxClose, cancel := context.WithCancel(context.Background())
	pingDone := make(chan struct{})

	defer func() {
		ticker.Stop()
		cancel()
		<-pingDone
		c.markClosed()
		if h.registry.Release(memberID, c) {
			h.registry.Broadcast(string(domain.EventPresenceOffline), domain.PresencePayload{UserID: memberID}, memberID)
		}
		logger.Log.Info("websocket close", zap.String("userID", memberID))
		conn.Close()
	}()

	//client發出close
	//fiber會自動處理(在read msg 回傳err),故需要SetCloseHandler另外接出
	conn.SetCloseHandler(func(code int, text string) error {
		logger.Log.Debug("websocket closed by client", zap.Int("code", code), zap.String("addr", conn.RemoteAddr().String()))
		return nil
	})

	//server發出ping之後client連線正常會回pong
	conn.SetPongHandler(func(appData string) error {
		logger.Log.Debug("received pong", zap.String("userID", memberID))
		return nil
	})

	//client發出ping
	conn.SetPingHandler(func(appData string) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return ErrConnectionClosed
		}
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	// 定期發送 Ping
	go func() {
		defer close(pingDone)
		for {
			select {
			case <-ticker.C:
				if err := c.write(websocket.PingMessage, []byte("ping message")); err != nil {
					logger.Log.Warn("ping error", zap.String("userID", memberID), zap.Error(err))
					return
				}
			case <-ctxClose.Done():
				return
			}
		}
	}()

	router := &connectionRouter{conn: c, chat: h.chat}
	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			// 檢查是否為 Close 正常結束
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Debug("connection closed", zap.String("userID", memberID), zap.Error(err))
			} else {
				//直接斷線 1006
				logger.Log.Warn("websocket read error", zap.String("userID", memberID), zap.Error(err))
			}
			return
		}

		if mt != websocket.TextMessage {
			router.fail(domain.InboundEvent{}, errprocess.New(errprocess.Validation, "unsupported message type"))
			continue
		}
		// 同一條連線依序處理
		router.dispatch(ctx, message)
	}
}

// connectionRouter 只做 event -> ChatService 的分派，錯誤一律轉成 custom-error
type connectionRouter struct {
	conn *connection
	chat ChatService
}

func (r *connectionRouter) dispatch(ctx context.Context, raw []byte) {
	var in domain.InboundEvent
	if err := json.Unmarshal(raw, &in); err != nil {
		r.fail(in, errprocess.Wrap(errprocess.Validation, "invalid event frame", err))
		return
	}

	defer func() {
		if p := recover(); p != nil {
			r.fail(in, errprocess.New(errprocess.Internal, fmt.Sprintf("panic handling %s: %v", in.Event, p)))
		}
	}()

	switch in.Event {
	case domain.EventSayHello:
		var req domain.HelloReq
		if err := decodeData(in.Data, &req); err != nil {
			r.fail(in, err)
			return
		}
		r.ack(in, r.chat.SayHello(ctx, r.conn.memberID, req))

	case domain.EventSendMessage:
		var req domain.SendMessageReq
		if err := decodeData(in.Data, &req); err != nil {
			r.fail(in, err)
			return
		}
		res, err := r.chat.SendMessage(ctx, r.conn.memberID, req)
		if err != nil {
			r.fail(in, err)
			return
		}
		r.ack(in, res)

	default:
		r.fail(in, errprocess.New(errprocess.Validation, fmt.Sprintf("unknown event: %s", in.Event)))
	}
}

func decodeData(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errprocess.Wrap(errprocess.Validation, "invalid event data", err)
	}
	return nil
}

func (r *connectionRouter) ack(in domain.InboundEvent, data interface{}) {
	if in.Ack == "" {
		return
	}
	if err := r.conn.send(domain.OutboundEvent{Event: domain.EventAck, Ack: in.Ack, Data: data}); err != nil {
		logger.Log.Warn("ack failed", zap.String("userID", r.conn.memberID), zap.Error(err))
	}
}

func (r *connectionRouter) fail(in domain.InboundEvent, err error) {
	logger.Log.Error("websocket err ",
		zap.String("MemberID", r.conn.memberID),
		zap.String("Event", string(in.Event)),
		zap.Error(err))
	if sendErr := r.conn.Emit(string(domain.EventCustomError), errprocess.ToPayload(err)); sendErr != nil {
		logger.Log.Warn("emit custom-error failed", zap.String("userID", r.conn.memberID), zap.Error(sendErr))
	}
}

package app

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/url"
	"strconv"
	"strings"

	"social_network_service/internal/chat/domain"
	"social_network_service/pkg/database"
	errprocess "social_network_service/pkg/err"
	"social_network_service/pkg/logger"
	"social_network_service/pkg/middlewares"
	"social_network_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// TokenRevoker 登出時註銷 token
type TokenRevoker interface {
	Revoke(ctx context.Context, claims *token.Claims) error
}

// ChatHandler 聊天室 REST API
type ChatHandler struct {
	chat    ChatService
	revoker TokenRevoker
}

// NewChatHandler create ChatHandler
func NewChatHandler(chat ChatService, revoker TokenRevoker) *ChatHandler {
	return &ChatHandler{
		chat:    chat,
		revoker: revoker,
	}
}

// Response 成功回傳格式
type Response struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ConnectCheck check chat service connect start
// @Summary Check chat service status
// @Description Returns a simple confirmation message
// @Tags Shared
// @Success 200 {string} string "chat service start!"
// @Router / [get]
func ConnectCheck(c *fiber.Ctx) error {
	return c.SendString("chat service start!")
}

// DebugLogFlag toggle debug log flag
// @Summary Toggle Debug Log Flag
// @Description Enable or disable debug logging
// @Tags Shared
// @Param status query bool true "Debug status"
// @Success 200 {string} string "debug mode updated"
// @Failure 400 {string} string "Invalid status value"
// @Router /debug [post]
func DebugLogFlag(c *fiber.Ctx) error {
	query, err := url.ParseQuery(string(c.Context().QueryArgs().QueryString()))
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	statusStr := query.Get("status")
	logger.Log.Info("debug", zap.String("status", statusStr))
	status, err := strconv.ParseBool(statusStr)
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	logger.Log.SetDebugMode(status)
	return c.SendString(fmt.Sprintf("debug mode is : %t", status))
}

// GetDirectChat 取得 1對1 聊天室訊息
// @Summary Get direct chat
// @Description Paginated messages of the direct chat between caller and userId, page=all returns everything
// @Tags Chat
// @Produce json
// @Param userId path string true "Counterpart member id"
// @Param page query string false "Page number or all"
// @Param size query int false "Page size"
// @Success 200 {object} Response{data=domain.ChatPage}
// @Failure 400 {object} errprocess.Payload
// @Failure 401 {object} errprocess.Payload
// @Failure 404 {object} errprocess.Payload
// @Router /chat/{userId} [get]
func (h *ChatHandler) GetDirectChat(c *fiber.Ctx) error {
	page := database.ParsePageRequest(c.Query("page"), c.Query("size"))
	res, err := h.chat.GetDirectChat(c.UserContext(), middlewares.MemberID(c), c.Params("userId"), page)
	if err != nil {
		return middlewares.Reject(c, err)
	}
	return c.JSON(Response{Message: "Done", Data: res})
}

// CreateGroupChat 建立群組聊天室
// @Summary Create group chat
// @Description Every participant must be a friend of the caller, optional image attachment
// @Tags Chat
// @Accept multipart/form-data
// @Produce json
// @Param group formData string true "Group name"
// @Param participants formData []string true "Participant member ids" collectionFormat(multi)
// @Param attachment formData file false "Group image"
// @Success 201 {object} Response{data=domain.GroupSummary}
// @Failure 400 {object} errprocess.Payload
// @Failure 403 {object} errprocess.Payload
// @Router /chat/group [post]
func (h *ChatHandler) CreateGroupChat(c *fiber.Ctx) error {
	req := domain.CreateGroupReq{
		Name:         c.FormValue("group"),
		Participants: participantsOf(c),
	}

	fh, err := c.FormFile("attachment")
	if err == nil {
		image, err := openImage(fh)
		if err != nil {
			return middlewares.Reject(c, err)
		}
		defer image.Close()
		req.Image = &domain.Attachment{UploadObject: database.UploadObject{
			Name:        fh.Filename,
			Reader:      image,
			Size:        fh.Size,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
		}}
	}

	res, err := h.chat.CreateGroupChat(c.UserContext(), middlewares.MemberID(c), req)
	if err != nil {
		return middlewares.Reject(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(Response{Message: "Done", Data: res})
}

// Logout 註銷目前的 token
// @Summary Revoke current token
// @Tags Auth
// @Produce json
// @Success 200 {object} Response
// @Failure 401 {object} errprocess.Payload
// @Router /auth/logout [post]
func (h *ChatHandler) Logout(c *fiber.Ctx) error {
	claims, ok := c.Locals(middlewares.TokenClaims).(*token.Claims)
	if !ok {
		return middlewares.Reject(c, errprocess.New(errprocess.Authentication, "missing token"))
	}
	if err := h.revoker.Revoke(c.UserContext(), claims); err != nil {
		return middlewares.Reject(c, err)
	}
	return c.JSON(Response{Message: "Done"})
}

// participantsOf participants 可以重複帶或用逗號分隔
func participantsOf(c *fiber.Ctx) []string {
	var raw []string
	if form, err := c.MultipartForm(); err == nil {
		raw = form.Value["participants"]
	} else if v := c.FormValue("participants"); v != "" {
		raw = []string{v}
	}

	out := []string{}
	for _, v := range raw {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}

func openImage(fh *multipart.FileHeader) (multipart.File, error) {
	if !strings.HasPrefix(fh.Header.Get(fiber.HeaderContentType), "image/") {
		return nil, errprocess.New(errprocess.Validation, "attachment must be an image")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errprocess.Wrap(errprocess.Validation, "read attachment", err)
	}
	return f, nil
}

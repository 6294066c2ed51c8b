package router

import (
	"context"

	"social_network_service/internal/chat/app"
	"social_network_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes 註冊 chat service 的路由
// @title Social Network Chat Service API
// @version 1.0
// @description Direct and group chat over websocket and REST
// @host localhost:8082
// @BasePath /
func RegisterRoutes(r *fiber.App, chatWebsocket *app.ChatWebsocketHandler, chatHandler *app.ChatHandler, resolver middlewares.Resolver) {
	r.Get("/swagger/*", swagger.HandlerDefault)
	r.Get("/", app.ConnectCheck)
	r.Post("/debug", app.DebugLogFlag)

	// 先驗證 token 再 upgrade，失敗的連線不會進到 handler
	r.Get("/ws", middlewares.JWTMiddleware(resolver), func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}, websocket.New(func(c *websocket.Conn) {
		chatWebsocket.HandleConnection(context.Background(), c)
	}))

	chatRoutes := r.Group("/chat", middlewares.JWTMiddleware(resolver))
	chatRoutes.Post("/group", chatHandler.CreateGroupChat)
	chatRoutes.Get("/:userId", chatHandler.GetDirectChat)

	authRoutes := r.Group("/auth", middlewares.JWTMiddleware(resolver))
	authRoutes.Post("/logout", chatHandler.Logout)
}

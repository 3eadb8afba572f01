package router

import (
	"context"
	"fmt"
	"strconv"

	"conversation_sync_service/internal/conversation/app"
	"conversation_sync_service/pkg/logger"
	"conversation_sync_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// RegisterRoutes 注册 conversation service 的路由
func RegisterRoutes(r *fiber.App, conversationWebsocket *app.ConversationWebsocketHandler) {
	r.Get("/", ConnectCheck)
	r.Post("/debug", DebugLogFlag)

	r.Use("/ws", middlewares.JWTMiddleware(), func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		conversationWebsocket.HandleConnection(context.Background(), c)
	}))
}

// ConnectCheck check service start
func ConnectCheck(c *fiber.Ctx) error {
	return c.SendString("conversation service start!")
}

// DebugLogFlag toggle debug log flag
func DebugLogFlag(c *fiber.Ctx) error {
	statusStr := c.Query("status")
	logger.Log.Info("debug", zap.String("status", statusStr))

	status, err := strconv.ParseBool(statusStr)
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	logger.Log.SetDebugMode(status)
	return c.SendString(fmt.Sprintf("debug mode is : %t", status))
}

package router

import (
	"github.com/labstack/echo/v4"

	"marketchat/internal/adapter/api/handler"
	"marketchat/internal/adapter/api/middleware"
)

// SetupChatRouter wires all chat endpoints (excluding the WebSocket).
func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware) {
	chatGroup := e.Group("/v1/chats")
	chatGroup.Use(authMiddleware.Authenticate)

	// Chat management
	chatGroup.POST("", chatHandler.OpenChat)               // POST /v1/chats - Find or create chat for a product
	chatGroup.GET("", chatHandler.GetUserChats)            // GET /v1/chats - List caller's chats
	chatGroup.GET("/:id", chatHandler.GetChatByID)         // GET /v1/chats/:id - Get one chat
	chatGroup.PUT("/:id/read", chatHandler.MarkChatAsRead) // PUT /v1/chats/:id/read - Mark chat as read
	chatGroup.PUT("/:id/archive", chatHandler.ArchiveChat) // PUT /v1/chats/:id/archive - Archive/unarchive for caller

	// Message management
	chatGroup.POST("/:id/messages", chatHandler.SendMessage)    // POST /v1/chats/:id/messages - Send into a known chat
	chatGroup.GET("/:id/messages", chatHandler.GetChatMessages) // GET /v1/chats/:id/messages - Chat history, oldest first

	// Addressed sends resolve the chat from receiver+product themselves.
	messageGroup := e.Group("/v1/messages")
	messageGroup.Use(authMiddleware.Authenticate)
	messageGroup.POST("", chatHandler.SendDirectMessage) // POST /v1/messages - Send by receiver_id + product_id
}

package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"marketchat/internal/domain/entity"
	"marketchat/internal/usecase"
	"marketchat/pkg/response"
	"marketchat/pkg/utils"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type openChatRequest struct {
	RecipientID    string `json:"recipient_id"`
	ProductID      string `json:"product_id" validate:"required"`
	InitialMessage string `json:"initial_message"`
}

type sendMessageRequest struct {
	ReceiverID  string              `json:"receiver_id"`
	ProductID   string              `json:"product_id"`
	Content     string              `json:"content"`
	Attachments []entity.Attachment `json:"attachments"`
}

type archiveChatRequest struct {
	Archived *bool `json:"archived" validate:"required"`
}

// OpenChat finds the chat for this buyer/seller/product triple, creating it
// on first contact.
func (h *ChatHandler) OpenChat(c echo.Context) error {
	var req openChatRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	chat, err := h.chatUseCase.OpenChat(c.Request().Context(), userID, usecase.OpenChatInput{
		RecipientID:    req.RecipientID,
		ProductID:      req.ProductID,
		InitialMessage: req.InitialMessage,
	})

	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, chat)
}

// GetUserChats lists the authenticated user's chats, newest activity first.
// Archived chats are hidden unless ?archived=true.
func (h *ChatHandler) GetUserChats(c echo.Context) error {
	userID := c.Get("uid").(string)

	pagination := utils.GetPaginationParams(c, 20)
	includeArchived := c.QueryParam("archived") == "true"

	chats, total, err := h.chatUseCase.GetUserChats(c.Request().Context(), userID, includeArchived, pagination.Limit, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessPaginated(c, chats, total, pagination.Limit, pagination.Offset)
}

// GetChatByID gets a specific chat by ID
func (h *ChatHandler) GetChatByID(c echo.Context) error {
	chatID := c.Param("id")
	userID := c.Get("uid").(string)

	chat, err := h.chatUseCase.GetChatByID(c.Request().Context(), userID, chatID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, chat)
}

// SendMessage sends a message to an existing chat.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	chatID := c.Param("id")
	userID := c.Get("uid").(string)

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	message, err := h.chatUseCase.SendMessage(c.Request().Context(), userID, usecase.SendMessageInput{
		ChatID:      chatID,
		Content:     req.Content,
		Attachments: req.Attachments,
	})

	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

// SendDirectMessage sends a message addressed by receiver and product rather
// than by chat ID, resolving or creating the chat on the way.
func (h *ChatHandler) SendDirectMessage(c echo.Context) error {
	userID := c.Get("uid").(string)

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	message, err := h.chatUseCase.SendMessage(c.Request().Context(), userID, usecase.SendMessageInput{
		ReceiverID:  req.ReceiverID,
		ProductID:   req.ProductID,
		Content:     req.Content,
		Attachments: req.Attachments,
	})

	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

// GetChatMessages gets messages for a specific chat, oldest first.
func (h *ChatHandler) GetChatMessages(c echo.Context) error {
	chatID := c.Param("id")
	userID := c.Get("uid").(string)

	pagination := utils.GetPaginationParams(c, 50)

	messages, total, err := h.chatUseCase.GetChatMessages(c.Request().Context(), userID, chatID, pagination.Limit, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessPaginated(c, messages, total, pagination.Limit, pagination.Offset)
}

// MarkChatAsRead marks every message addressed to the caller in this chat as read.
func (h *ChatHandler) MarkChatAsRead(c echo.Context) error {
	chatID := c.Param("id")
	userID := c.Get("uid").(string)

	if err := h.chatUseCase.MarkChatRead(c.Request().Context(), userID, chatID); err != nil {
		return response.Error(c, err)
	}

	return c.NoContent(http.StatusOK)
}

// ArchiveChat toggles the caller's archive flag on a chat. Archiving is
// per-participant and does not touch the other side's view.
func (h *ChatHandler) ArchiveChat(c echo.Context) error {
	chatID := c.Param("id")
	userID := c.Get("uid").(string)

	var req archiveChatRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	if err := h.chatUseCase.SetArchived(c.Request().Context(), userID, chatID, *req.Archived); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]bool{"archived": *req.Archived})
}

package usecase

import (
	"context"
	"log"
	"strings"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/internal/domain/service"
	"marketchat/internal/infrastructure/ratelimit"
	ws "marketchat/internal/infrastructure/websocket"
	"marketchat/pkg/errors"
)

type ChatUseCase struct {
	chatRepo      repository.ChatRepository
	userRepo      repository.UserRepository
	productRepo   repository.ProductRepository
	contentFilter *service.ContentFilterService
	wsManager     *ws.Manager
	rateLimiter   *ratelimit.RateLimiter
}

func NewChatUseCase(
	chatRepo repository.ChatRepository,
	userRepo repository.UserRepository,
	productRepo repository.ProductRepository,
	contentFilter *service.ContentFilterService,
	wsManager *ws.Manager,
) *ChatUseCase {
	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine()

	return &ChatUseCase{
		chatRepo:      chatRepo,
		userRepo:      userRepo,
		productRepo:   productRepo,
		contentFilter: contentFilter,
		wsManager:     wsManager,
		rateLimiter:   rateLimiter,
	}
}

type OpenChatInput struct {
	RecipientID    string
	ProductID      string
	InitialMessage string
}

type SendMessageInput struct {
	ChatID      string
	ReceiverID  string
	ProductID   string
	Content     string
	Attachments []entity.Attachment
}

type ChatResponse struct {
	*entity.Chat
	Product   *entity.Product `json:"product,omitempty"`
	OtherUser *entity.User    `json:"other_user,omitempty"`
}

type MessageResponse struct {
	*entity.Message
	Sender   *entity.User `json:"sender,omitempty"`
	Receiver *entity.User `json:"receiver,omitempty"`
}

// OpenChat resolves (or lazily creates) the chat between the caller and a
// recipient about one product. When RecipientID is empty the product's
// seller is the recipient.
func (uc *ChatUseCase) OpenChat(ctx context.Context, userID string, input OpenChatInput) (*ChatResponse, error) {
	allowed, waitTime := uc.rateLimiter.Allow(userID, "open_chat")
	if !allowed {
		log.Printf("OpenChat Rate Limited: User %s must wait %v", userID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before opening another chat", waitTime)
	}

	if input.ProductID == "" {
		return nil, errors.Validation("product_id is required")
	}

	product, err := uc.productRepo.GetByID(ctx, input.ProductID)
	if err != nil {
		log.Printf("OpenChat Error: Product %s not found: %v", input.ProductID, err)
		return nil, err
	}

	recipientID := input.RecipientID
	if recipientID == "" {
		recipientID = product.SellerID
	}

	if userID == recipientID {
		log.Printf("OpenChat Error: User %s attempted to open a chat with themselves", userID)
		return nil, errors.BadRequest("You cannot open a chat with yourself", nil)
	}

	recipient, err := uc.userRepo.GetByID(ctx, recipientID)
	if err != nil {
		log.Printf("OpenChat Error: Recipient %s not found: %v", recipientID, err)
		return nil, err
	}

	chat, created, err := uc.chatRepo.FindOrCreate(ctx, userID, recipientID, input.ProductID)
	if err != nil {
		log.Printf("OpenChat Error: Failed to resolve chat for user %s: %v", userID, err)
		return nil, err
	}
	if created {
		log.Printf("OpenChat: Created chat %s for product %s", chat.ID, input.ProductID)
	}

	if input.InitialMessage != "" {
		if _, err := uc.SendMessage(ctx, userID, SendMessageInput{
			ChatID:  chat.ID,
			Content: input.InitialMessage,
		}); err != nil {
			log.Printf("OpenChat Error: Failed to send initial message for chat %s: %v", chat.ID, err)
			return nil, err
		}
		// Re-read so the response carries the message's effect on the chat.
		if refreshed, err := uc.chatRepo.GetByID(ctx, chat.ID); err == nil {
			chat = refreshed
		}
	}

	return &ChatResponse{
		Chat:      chat,
		Product:   product,
		OtherUser: recipient,
	}, nil
}

// SendMessage validates input, resolves the chat (by explicit ID or by
// atomic find-or-create), runs the content filter, persists the message
// and notifies the receiver.
func (uc *ChatUseCase) SendMessage(ctx context.Context, senderID string, input SendMessageInput) (*MessageResponse, error) {
	allowed, waitTime := uc.rateLimiter.Allow(senderID, "send_message")
	if !allowed {
		log.Printf("SendMessage Rate Limited: User %s must wait %v", senderID, waitTime)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before sending another message", waitTime)
	}

	if input.Content == "" && len(input.Attachments) == 0 {
		return nil, errors.Validation("content is required when no attachments are present")
	}

	var chat *entity.Chat
	var err error

	if input.ChatID != "" {
		chat, err = uc.chatRepo.GetByID(ctx, input.ChatID)
		if err != nil {
			log.Printf("SendMessage Error: Chat %s not found: %v", input.ChatID, err)
			return nil, err
		}
		if !chat.HasParticipant(senderID) {
			log.Printf("SendMessage Error: User %s is not a participant in chat %s", senderID, input.ChatID)
			return nil, errors.Forbidden("User is not a participant in this chat", nil)
		}
	} else {
		if input.ReceiverID == "" {
			return nil, errors.Validation("receiver_id is required when chat_id is not provided")
		}
		if input.ProductID == "" {
			return nil, errors.Validation("product_id is required when chat_id is not provided")
		}
		if senderID == input.ReceiverID {
			return nil, errors.BadRequest("You cannot message yourself", nil)
		}

		if _, err := uc.userRepo.GetByID(ctx, input.ReceiverID); err != nil {
			log.Printf("SendMessage Error: Receiver %s not found: %v", input.ReceiverID, err)
			return nil, err
		}
		if _, err := uc.productRepo.GetByID(ctx, input.ProductID); err != nil {
			log.Printf("SendMessage Error: Product %s not found: %v", input.ProductID, err)
			return nil, err
		}

		chat, _, err = uc.chatRepo.FindOrCreate(ctx, senderID, input.ReceiverID, input.ProductID)
		if err != nil {
			log.Printf("SendMessage Error: Failed to resolve chat for sender %s: %v", senderID, err)
			return nil, err
		}
	}

	receiverID := chat.OtherParticipant(senderID)

	sender, err := uc.userRepo.GetByID(ctx, senderID)
	if err != nil {
		log.Printf("SendMessage Error: Sender %s not found: %v", senderID, err)
		return nil, err
	}

	messageType := entity.MessageTypeText
	if len(input.Attachments) > 0 {
		messageType = entity.MessageTypeFile
	}

	message := &entity.Message{
		ChatID:      chat.ID,
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Content:     input.Content,
		Attachments: input.Attachments,
		Type:        messageType,
	}

	// Flag at creation time; the flag never changes afterwards.
	if scan := uc.contentFilter.Scan(input.Content); scan.Flagged {
		message.IsFlagged = true
		message.FlaggedReason = entity.FlaggedReasonSensitive
		log.Printf("SendMessage: Message in chat %s flagged (%s)", chat.ID, strings.Join(scan.Categories, ","))
	}

	if err := uc.chatRepo.CreateMessage(ctx, message); err != nil {
		log.Printf("SendMessage Error: Failed to create message for chat %s: %v", chat.ID, err)
		return nil, err
	}

	chat.LastMessage = previewFor(message)
	chat.LastMessageAt = message.CreatedAt
	if chat.UnreadCount == nil {
		chat.UnreadCount = make(map[string]int)
	}
	chat.UnreadCount[receiverID]++

	if err := uc.chatRepo.Update(ctx, chat); err != nil {
		log.Printf("SendMessage Error: Failed to update chat %s with last message: %v", chat.ID, err)
		return nil, err
	}

	response := &MessageResponse{
		Message: message,
		Sender:  sender,
	}

	uc.wsManager.SendToChatRoom(chat.ID, ws.NewFrame(ws.EventNewMessage, chat.ID, response), senderID)
	uc.wsManager.SendToUser(receiverID, ws.NewFrame(ws.EventNotification, chat.ID, map[string]interface{}{
		"chat_id":         chat.ID,
		"sender_id":       senderID,
		"sender_name":     sender.Username,
		"preview":         chat.LastMessage,
		"last_message_at": chat.LastMessageAt,
	}))

	return response, nil
}

func previewFor(message *entity.Message) string {
	if message.Content != "" {
		return message.Content
	}
	if len(message.Attachments) > 0 {
		return message.Attachments[0].FileName
	}
	return ""
}

// GetUserChats lists the caller's chats, newest activity first. Chats the
// caller archived are hidden unless includeArchived is set; the other
// participant's view is unaffected.
func (uc *ChatUseCase) GetUserChats(ctx context.Context, userID string, includeArchived bool, limit, offset int) ([]*ChatResponse, int64, error) {
	chats, _, err := uc.chatRepo.ListByUserID(ctx, userID, -1, 0)
	if err != nil {
		log.Printf("GetUserChats Error: Failed to list chats for user %s: %v", userID, err)
		return nil, 0, err
	}

	var visible []*entity.Chat
	for _, chat := range chats {
		if !includeArchived && chat.IsArchivedBy(userID) {
			continue
		}
		visible = append(visible, chat)
	}

	total := int64(len(visible))

	start := offset
	if start > len(visible) {
		start = len(visible)
	}
	end := len(visible)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	chatResponses := make([]*ChatResponse, 0, end-start)
	for _, chat := range visible[start:end] {
		chatResponses = append(chatResponses, uc.populateChat(ctx, userID, chat))
	}

	return chatResponses, total, nil
}

func (uc *ChatUseCase) populateChat(ctx context.Context, userID string, chat *entity.Chat) *ChatResponse {
	chatResp := &ChatResponse{Chat: chat}

	if chat.ProductID != "" {
		product, err := uc.productRepo.GetByID(ctx, chat.ProductID)
		if err == nil {
			chatResp.Product = product
		} else {
			log.Printf("GetUserChats Warning: Product %s not found for chat %s: %v", chat.ProductID, chat.ID, err)
		}
	}

	if otherID := chat.OtherParticipant(userID); otherID != "" {
		otherUser, err := uc.userRepo.GetByID(ctx, otherID)
		if err == nil {
			chatResp.OtherUser = otherUser
		} else {
			log.Printf("GetUserChats Warning: Other user %s not found for chat %s: %v", otherID, chat.ID, err)
		}
	}

	return chatResp
}

func (uc *ChatUseCase) GetChatByID(ctx context.Context, userID, chatID string) (*ChatResponse, error) {
	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		log.Printf("GetChatByID Error: Chat %s not found: %v", chatID, err)
		return nil, err
	}

	if !chat.HasParticipant(userID) {
		log.Printf("GetChatByID Error: User %s is not a participant in chat %s", userID, chatID)
		return nil, errors.Forbidden("User is not a participant in this chat", nil)
	}

	return uc.populateChat(ctx, userID, chat), nil
}

// GetChatMessages returns the chat's messages oldest first, with both
// sides of the conversation resolved. An empty chat yields an empty list.
func (uc *ChatUseCase) GetChatMessages(ctx context.Context, userID, chatID string, limit, offset int) ([]*MessageResponse, int64, error) {
	if chatID == "" {
		return nil, 0, errors.Validation("chat_id is required")
	}

	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		log.Printf("GetChatMessages Error: Chat %s not found: %v", chatID, err)
		return nil, 0, err
	}

	if !chat.HasParticipant(userID) {
		log.Printf("GetChatMessages Error: User %s is not a participant in chat %s", userID, chatID)
		return nil, 0, errors.Forbidden("User is not a participant in this chat", nil)
	}

	messages, total, err := uc.chatRepo.GetMessagesByChat(ctx, chatID, limit, offset)
	if err != nil {
		log.Printf("GetChatMessages Error: Failed to get messages for chat %s: %v", chatID, err)
		return nil, 0, err
	}

	// Two participants only, so resolve each at most once.
	participants := make(map[string]*entity.User, 2)
	for _, participantID := range chat.Participants {
		user, err := uc.userRepo.GetByID(ctx, participantID)
		if err != nil {
			log.Printf("GetChatMessages Warning: Participant %s not found for chat %s: %v", participantID, chatID, err)
			continue
		}
		participants[participantID] = user
	}

	messageResponses := make([]*MessageResponse, 0, len(messages))
	for _, message := range messages {
		messageResponses = append(messageResponses, &MessageResponse{
			Message:  message,
			Sender:   participants[message.SenderID],
			Receiver: participants[message.ReceiverID],
		})
	}

	return messageResponses, total, nil
}

// MarkChatRead flips the caller's received messages to read. Safe to call
// repeatedly; a second call finds nothing unread and changes nothing.
func (uc *ChatUseCase) MarkChatRead(ctx context.Context, userID, chatID string) error {
	if chatID == "" {
		return errors.Validation("chat_id is required")
	}

	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		log.Printf("MarkChatRead Error: Chat %s not found: %v", chatID, err)
		return err
	}

	if !chat.HasParticipant(userID) {
		log.Printf("MarkChatRead Error: User %s is not a participant in chat %s", userID, chatID)
		return errors.Forbidden("User is not a participant in this chat", nil)
	}

	updated, err := uc.chatRepo.MarkMessagesRead(ctx, chatID, userID)
	if err != nil {
		log.Printf("MarkChatRead Error: Failed to mark messages read for chat %s: %v", chatID, err)
		return err
	}

	if chat.UnreadCount[userID] != 0 {
		chat.UnreadCount[userID] = 0
		if err := uc.chatRepo.Update(ctx, chat); err != nil {
			log.Printf("MarkChatRead Error: Failed to reset unread count for chat %s: %v", chatID, err)
			return err
		}
	}

	if updated > 0 {
		payload := ws.NewFrame(ws.EventMessagesRead, chatID, map[string]string{
			"chat_id": chatID,
			"user_id": userID,
		})
		uc.wsManager.SendToChatRoom(chatID, payload, userID)
		uc.wsManager.SendToUser(chat.OtherParticipant(userID), payload)
	}

	return nil
}

// SetArchived toggles the caller's archive flag on a chat. The other
// participant keeps seeing the chat either way.
func (uc *ChatUseCase) SetArchived(ctx context.Context, userID, chatID string, archived bool) error {
	if chatID == "" {
		return errors.Validation("chat_id is required")
	}

	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		log.Printf("SetArchived Error: Chat %s not found: %v", chatID, err)
		return err
	}

	if !chat.HasParticipant(userID) {
		log.Printf("SetArchived Error: User %s is not a participant in chat %s", userID, chatID)
		return errors.Forbidden("User is not a participant in this chat", nil)
	}

	return uc.chatRepo.SetArchived(ctx, chatID, userID, archived)
}

// HandleMarkRead adapts socket mark-read frames onto MarkChatRead.
func (uc *ChatUseCase) HandleMarkRead(ctx context.Context, userID, chatID string) {
	if err := uc.MarkChatRead(ctx, userID, chatID); err != nil {
		log.Printf("HandleMarkRead Error: chat %s user %s: %v", chatID, userID, err)
	}
}

// HandleTyping relays a typing indicator to the rest of the room.
func (uc *ChatUseCase) HandleTyping(ctx context.Context, userID, chatID string, isTyping bool) {
	allowed, _ := uc.rateLimiter.Allow(userID, "typing")
	if !allowed {
		return
	}

	chat, err := uc.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		log.Printf("HandleTyping Error: Chat %s not found: %v", chatID, err)
		return
	}
	if !chat.HasParticipant(userID) {
		return
	}

	payload := ws.NewFrame(ws.EventTyping, chatID, map[string]interface{}{
		"chat_id":   chatID,
		"user_id":   userID,
		"is_typing": isTyping,
	})
	uc.wsManager.SendToChatRoom(chatID, payload, userID)
}

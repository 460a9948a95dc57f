package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/service"
	ws "marketchat/internal/infrastructure/websocket"
	"marketchat/pkg/errors"
)

// fakeChatRepo mirrors the Firestore adapter's contract in memory, keyed by
// the same deterministic chat key so find-or-create semantics carry over.
type fakeChatRepo struct {
	mu       sync.Mutex
	chats    map[string]*entity.Chat
	messages map[string][]*entity.Message
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{
		chats:    make(map[string]*entity.Chat),
		messages: make(map[string][]*entity.Message),
	}
}

func (r *fakeChatRepo) FindOrCreate(ctx context.Context, participantA, participantB, productID string) (*entity.Chat, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := entity.ChatKey(participantA, participantB, productID)
	if chat, ok := r.chats[key]; ok {
		return chat, false, nil
	}

	now := time.Now()
	chat := &entity.Chat{
		ID:           key,
		Participants: entity.SortedParticipants(participantA, participantB),
		ProductID:    productID,
		ArchivedBy:   make(map[string]bool),
		UnreadCount:  make(map[string]int),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.chats[key] = chat
	return chat, true, nil
}

func (r *fakeChatRepo) GetByID(ctx context.Context, id string) (*entity.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	chat, ok := r.chats[id]
	if !ok {
		return nil, errors.NotFound("Chat", nil)
	}
	return chat, nil
}

func (r *fakeChatRepo) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Chat, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*entity.Chat
	for _, chat := range r.chats {
		if chat.HasParticipant(userID) {
			result = append(result, chat)
		}
	}
	return result, int64(len(result)), nil
}

func (r *fakeChatRepo) Update(ctx context.Context, chat *entity.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.chats[chat.ID]; !ok {
		return errors.NotFound("Chat", nil)
	}
	chat.UpdatedAt = time.Now()
	r.chats[chat.ID] = chat
	return nil
}

func (r *fakeChatRepo) SetArchived(ctx context.Context, chatID, userID string, archived bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	chat, ok := r.chats[chatID]
	if !ok {
		return errors.NotFound("Chat", nil)
	}
	if chat.ArchivedBy == nil {
		chat.ArchivedBy = make(map[string]bool)
	}
	chat.ArchivedBy[userID] = archived
	return nil
}

func (r *fakeChatRepo) CreateMessage(ctx context.Context, message *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	message.ID = uuid.New().String()
	message.CreatedAt = now
	message.UpdatedAt = now
	r.messages[message.ChatID] = append(r.messages[message.ChatID], message)
	return nil
}

func (r *fakeChatRepo) GetMessagesByChat(ctx context.Context, chatID string, limit, offset int) ([]*entity.Message, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := r.messages[chatID]
	total := int64(len(all))

	start := offset
	if start > len(all) {
		start = len(all)
	}
	end := len(all)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	result := make([]*entity.Message, 0, end-start)
	result = append(result, all[start:end]...)
	return result, total, nil
}

func (r *fakeChatRepo) MarkMessagesRead(ctx context.Context, chatID, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	updated := 0
	for _, message := range r.messages[chatID] {
		if message.ReceiverID == userID && !message.Read {
			message.Read = true
			updated++
		}
	}
	return updated, nil
}

type fakeUserRepo struct {
	users map[string]*entity.User
}

func (r *fakeUserRepo) Create(ctx context.Context, user *entity.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	return user, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, errors.NotFound("User", nil)
}

func (r *fakeUserRepo) Update(ctx context.Context, user *entity.User) error {
	r.users[user.ID] = user
	return nil
}

type fakeProductRepo struct {
	products map[string]*entity.Product
}

func (r *fakeProductRepo) Create(ctx context.Context, product *entity.Product) error {
	r.products[product.ID] = product
	return nil
}

func (r *fakeProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	product, ok := r.products[id]
	if !ok {
		return nil, errors.NotFound("Product", nil)
	}
	return product, nil
}

func (r *fakeProductRepo) Update(ctx context.Context, product *entity.Product) error {
	r.products[product.ID] = product
	return nil
}

func (r *fakeProductRepo) ListBySellerID(ctx context.Context, sellerID string, status string, limit, offset int) ([]*entity.Product, int64, error) {
	var result []*entity.Product
	for _, product := range r.products {
		if product.SellerID == sellerID {
			result = append(result, product)
		}
	}
	return result, int64(len(result)), nil
}

func newTestChatUseCase() (*ChatUseCase, *fakeChatRepo) {
	chatRepo := newFakeChatRepo()
	userRepo := &fakeUserRepo{users: map[string]*entity.User{
		"buyer-1":  {ID: "buyer-1", Username: "buyer"},
		"buyer-2":  {ID: "buyer-2", Username: "other buyer"},
		"seller-1": {ID: "seller-1", Username: "seller"},
	}}
	productRepo := &fakeProductRepo{products: map[string]*entity.Product{
		"product-1": {ID: "product-1", SellerID: "seller-1", Title: "Vintage camera"},
		"product-2": {ID: "product-2", SellerID: "seller-1", Title: "Film scanner"},
	}}

	uc := NewChatUseCase(chatRepo, userRepo, productRepo, service.NewContentFilterService(), ws.NewManager())
	return uc, chatRepo
}

func TestOpenChatCreatesOnFirstContact(t *testing.T) {
	uc, _ := newTestChatUseCase()
	ctx := context.Background()

	chat, err := uc.OpenChat(ctx, "buyer-1", OpenChatInput{ProductID: "product-1"})
	require.NoError(t, err)

	assert.Equal(t, entity.ChatKey("buyer-1", "seller-1", "product-1"), chat.ID)
	assert.Equal(t, []string{"buyer-1", "seller-1"}, chat.Participants)
	assert.Equal(t, "product-1", chat.Chat.ProductID)
	require.NotNil(t, chat.Product)
	assert.Equal(t, "Vintage camera", chat.Product.Title)
	require.NotNil(t, chat.OtherUser)
	assert.Equal(t, "seller-1", chat.OtherUser.ID)
}

func TestOpenChatReturnsSameChatForBothSides(t *testing.T) {
	uc, _ := newTestChatUseCase()
	ctx := context.Background()

	first, err := uc.OpenChat(ctx, "buyer-1", OpenChatInput{ProductID: "product-1"})
	require.NoError(t, err)

	// The seller addressing the buyer about the same product lands in the
	// same chat, regardless of who opened it.
	second, err := uc.OpenChat(ctx, "seller-1", OpenChatInput{RecipientID: "buyer-1", ProductID: "product-1"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestOpenChatSeparatesProducts(t *testing.T) {
	uc, _ := newTestChatUseCase()
	ctx := context.Background()

	first, err := uc.OpenChat(ctx, "buyer-1", OpenChatInput{ProductID: "product-1"})
	require.NoError(t, err)

	second, err := uc.OpenChat(ctx, "buyer-1", OpenChatInput{ProductID: "product-2"})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}

func TestOpenChatRejectsSelfChat(t *testing.T) {
	uc, _ := newTestChatUseCase()

	_, err := uc.OpenChat(context.Background(), "seller-1", OpenChatInput{ProductID: "product-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
}

func TestOpenChatRequiresProduct(t *testing.T) {
	uc, _ := newTestChatUseCase()

	_, err := uc.OpenChat(context.Background(), "buyer-1", OpenChatInput{RecipientID: "seller-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, "VALIDATION_ERROR"))
}

func TestOpenChatUnknownProduct(t *testing.T) {
	uc, _ := newTestChatUseCase()

	_, err := uc.OpenChat(context.Background(), "buyer-1", OpenChatInput{ProductID: "missing"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, "NOT_FOUND"))
}

func TestOpenChatWithInitialMessage(t *testing.T) {
	uc, repo := newTestChatUseCase()
	ctx := context.Background()

	chat, err := uc.OpenChat(ctx, "buyer-1", OpenChatInput{
		ProductID:      "product-1",
		InitialMessage: "Is this still available?",
	})
	require.NoError(t, err)

	assert.Equal(t, "Is this still available?", chat.LastMessage)
	assert.Equal(t, 1, chat.UnreadCount["seller-1"])
	assert.Equal(t, 0, chat.UnreadCount["buyer-1"])

	messages := repo.messages[chat.ID]
	require.Len(t, messages, 1)
	assert.False(t, messages[0].IsFlagged)
	assert.Equal(t, "seller-1", messages[0].ReceiverID)
}

func TestSendMessageFlagsSensitiveContent(t *testing.T) {
	uc, _ := newTestChatUseCase()
	ctx := context.Background()

	chat, err := uc.OpenChat(ctx, "buyer-1", OpenChatInput{ProductID: "product-1"})
	require.NoError(t, err)

	flagged, err := uc.SendMessage(ctx, "buyer-1", SendMessageInput{
		ChatID:  chat.ID,
		Content: "call me at 555-123-4567",
	})
	require.NoError(t, err)

	// Flagged messages are still delivered; the flag rides along.
	assert.True(t, flagged.IsFlagged)
	assert.Equal(t, entity.FlaggedReasonSensitive, flagged.FlaggedReason)

	clean, err := uc.SendMessage(ctx, "buyer-1", SendMessageInput{
		ChatID:  chat.ID,
		Content: "Great, thanks!",
	})
	require.NoError(t, err)

	assert.False(t, clean.IsFlagged)
	assert.Empty(t, clean.FlaggedReason)
	assert.Equal(t, chat.ID, clean.ChatID)
}

func TestSendMessageRequiresContentOrAttachment(t *testing.T) {
	uc, _ := newTestChatUseCase()
	ctx := context.Background()

	chat, err := uc.OpenChat(ctx, "buyer-1", OpenChatInput{ProductID: "product-1"})
	require.NoError(t, err)

	_, err = uc.SendMessage(ctx, "buyer-1", SendMessageInput{ChatID: chat.ID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, "VALIDATION_ERROR"))
}

func TestSendMessageWithAttachmentOnly(t *testing.T) {
	uc, _ := newTestChatUseCase()
	ctx := context.Background()

	chat, err := uc.OpenChat(ctx, "buyer-1", OpenChatInput{ProductID: "product-1"})
	require.NoError(t, err)

	message, err := uc.SendMessage(ctx, "buyer-1", SendMessageInput{
		ChatID: chat.ID,
		Attachments: []entity.Attachment{
			{FileName: "camera.jpg", URL: "https://storage.example.com/camera.jpg", MimeType: "image/jpeg"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, entity.MessageTypeFile, message.Type)
	assert.False(t, message.IsFlagged)

	updated, err := uc.GetChatByID(ctx, "buyer-1", chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "camera.jpg", updated.LastMessage)
}

func TestSendMessageByReceiverAndProduct(t *testing.T) {
	uc, _ := newTestChatUseCase()
	ctx := context.Background()

	message, err := uc.SendMessage(ctx, "buyer-1", SendMessageInput{
		ReceiverID: "seller-1",
		ProductID:  "product-1",
		Content:    "Would you take 50 for it?",
	})
	require.NoError(t, err)

	// The addressed send resolved the same chat OpenChat would have.
	assert.Equal(t, entity.ChatKey("buyer-1", "seller-1", "product-1"), message.ChatID)
	assert.Equal(t, "seller-1", message.Message.ReceiverID)
}

func TestSendMessageRejectsNonParticipant(t *testing.T) {
	uc, _ := newTestChatUseCase()
	ctx := context.Background()

	chat, err := uc.OpenChat(ctx, "buyer-1", OpenChatInput{ProductID: "product-1"})
	require.NoError(t, err)

	_, err = uc.SendMessage(ctx, "buyer-2", SendMessageInput{
		ChatID:  chat.ID,
		Content: "Let me in",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestGetUserChatsHidesArchived(t *testing.T) {
	uc, _ := newTestChatUseCase()
	ctx := context.Background()

	first, err := uc.OpenChat(ctx, "buyer-1", OpenChatInput{ProductID: "product-1"})
	require.NoError(t, err)
	_, err = uc.OpenChat(ctx, "buyer-1", OpenChatInput{ProductID: "product-2"})
	require.NoError(t, err)

	require.NoError(t, uc.SetArchived(ctx, "buyer-1", first.ID, true))

	chats, total, err := uc.GetUserChats(ctx, "buyer-1", false, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, chats, 1)
	assert.NotEqual(t, first.ID, chats[0].ID)

	// The archiver still sees it when asking for archived chats.
	chats, total, err = uc.GetUserChats(ctx, "buyer-1", true, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	// The other participant's view is untouched.
	chats, total, err = uc.GetUserChats(ctx, "seller-1", false, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, chats, 2)
}

func TestGetUserChatsEmpty(t *testing.T) {
	uc, _ := newTestChatUseCase()

	chats, total, err := uc.GetUserChats(context.Background(), "buyer-1", false, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, chats)
}

func TestGetChatMessagesEmptyChat(t *testing.T) {
	uc, _ := newTestChatUseCase()
	ctx := context.Background()

	chat, err := uc.OpenChat(ctx, "buyer-1", OpenChatInput{ProductID: "product-1"})
	require.NoError(t, err)

	messages, total, err := uc.GetChatMessages(ctx, "buyer-1", chat.ID, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.NotNil(t, messages)
	assert.Empty(t, messages)
}

func TestGetChatMessagesResolvesParticipants(t *testing.T) {
	uc, _ := newTestChatUseCase()
	ctx := context.Background()

	chat, err := uc.OpenChat(ctx, "buyer-1", OpenChatInput{
		ProductID:      "product-1",
		InitialMessage: "Is this still available?",
	})
	require.NoError(t, err)

	messages, total, err := uc.GetChatMessages(ctx, "seller-1", chat.ID, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, messages, 1)
	require.NotNil(t, messages[0].Sender)
	assert.Equal(t, "buyer-1", messages[0].Sender.ID)
	require.NotNil(t, messages[0].Receiver)
	assert.Equal(t, "seller-1", messages[0].Receiver.ID)
}

func TestGetChatMessagesRejectsNonParticipant(t *testing.T) {
	uc, _ := newTestChatUseCase()
	ctx := context.Background()

	chat, err := uc.OpenChat(ctx, "buyer-1", OpenChatInput{ProductID: "product-1"})
	require.NoError(t, err)

	_, _, err = uc.GetChatMessages(ctx, "buyer-2", chat.ID, 50, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestMarkChatReadIsIdempotent(t *testing.T) {
	uc, repo := newTestChatUseCase()
	ctx := context.Background()

	chat, err := uc.OpenChat(ctx, "buyer-1", OpenChatInput{ProductID: "product-1"})
	require.NoError(t, err)

	for _, content := range []string{"Hello", "Still interested"} {
		_, err = uc.SendMessage(ctx, "buyer-1", SendMessageInput{ChatID: chat.ID, Content: content})
		require.NoError(t, err)
	}

	stored, err := repo.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.UnreadCount["seller-1"])

	require.NoError(t, uc.MarkChatRead(ctx, "seller-1", chat.ID))

	stored, err = repo.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.UnreadCount["seller-1"])
	for _, message := range repo.messages[chat.ID] {
		assert.True(t, message.Read)
	}

	// A second pass finds nothing unread and still succeeds.
	require.NoError(t, uc.MarkChatRead(ctx, "seller-1", chat.ID))
}

func TestMarkChatReadRejectsNonParticipant(t *testing.T) {
	uc, _ := newTestChatUseCase()
	ctx := context.Background()

	chat, err := uc.OpenChat(ctx, "buyer-1", OpenChatInput{ProductID: "product-1"})
	require.NoError(t, err)

	err = uc.MarkChatRead(ctx, "buyer-2", chat.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestSetArchivedToggle(t *testing.T) {
	uc, repo := newTestChatUseCase()
	ctx := context.Background()

	chat, err := uc.OpenChat(ctx, "buyer-1", OpenChatInput{ProductID: "product-1"})
	require.NoError(t, err)

	require.NoError(t, uc.SetArchived(ctx, "buyer-1", chat.ID, true))
	stored, _ := repo.GetByID(ctx, chat.ID)
	assert.True(t, stored.IsArchivedBy("buyer-1"))
	assert.False(t, stored.IsArchivedBy("seller-1"))

	require.NoError(t, uc.SetArchived(ctx, "buyer-1", chat.ID, false))
	stored, _ = repo.GetByID(ctx, chat.ID)
	assert.False(t, stored.IsArchivedBy("buyer-1"))
}

func TestSendMessageRateLimited(t *testing.T) {
	uc, _ := newTestChatUseCase()
	ctx := context.Background()

	chat, err := uc.OpenChat(ctx, "buyer-1", OpenChatInput{ProductID: "product-1"})
	require.NoError(t, err)

	var limited error
	for i := 0; i < 15; i++ {
		_, err := uc.SendMessage(ctx, "buyer-1", SendMessageInput{ChatID: chat.ID, Content: "Hello again"})
		if err != nil {
			limited = err
			break
		}
	}

	require.Error(t, limited)
	assert.True(t, errors.Is(limited, "TOO_MANY_REQUESTS"))
}

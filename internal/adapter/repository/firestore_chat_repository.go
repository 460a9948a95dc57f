package repository

import (
	"context"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/repository"
	"marketchat/pkg/errors"
)

type firestoreChatRepository struct {
	client *firestore.Client
}

func NewFirestoreChatRepository(client *firestore.Client) repository.ChatRepository {
	return &firestoreChatRepository{
		client: client,
	}
}

// FindOrCreate runs inside a transaction against a deterministic document
// ID, so two concurrent first-messages for the same pair and product land
// on the same document and exactly one create wins.
func (r *firestoreChatRepository) FindOrCreate(ctx context.Context, participantA, participantB, productID string) (*entity.Chat, bool, error) {
	chatID := entity.ChatKey(participantA, participantB, productID)
	docRef := r.client.Collection("chats").Doc(chatID)

	var chat entity.Chat
	created := false

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err == nil {
			return doc.DataTo(&chat)
		}
		if status.Code(err) != codes.NotFound {
			return err
		}

		now := time.Now()
		chat = entity.Chat{
			ID:            chatID,
			Participants:  entity.SortedParticipants(participantA, participantB),
			ProductID:     productID,
			ArchivedBy:    make(map[string]bool),
			UnreadCount:   make(map[string]int),
			LastMessageAt: now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		created = true
		return tx.Create(docRef, &chat)
	})
	if err != nil {
		return nil, false, errors.Internal("Failed to resolve chat", err)
	}

	return &chat, created, nil
}

func (r *firestoreChatRepository) GetByID(ctx context.Context, id string) (*entity.Chat, error) {
	doc, err := r.client.Collection("chats").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Chat", nil)
		}
		return nil, errors.Internal("Failed to get chat", err)
	}

	var chat entity.Chat
	if err := doc.DataTo(&chat); err != nil {
		return nil, errors.Internal("Failed to parse chat data", err)
	}

	return &chat, nil
}

func (r *firestoreChatRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Chat, int64, error) {
	query := r.client.Collection("chats").
		Where("participants", "array-contains", userID).
		OrderBy("lastMessageAt", firestore.Desc)

	allDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		log.Printf("Firestore error while fetching chats for user %s: %v", userID, err)
		return nil, 0, errors.Internal("Failed to fetch chats", err)
	}

	total := int64(len(allDocs))

	start := offset
	if start > len(allDocs) {
		start = len(allDocs)
	}
	end := len(allDocs)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	var chats []*entity.Chat
	for i := start; i < end; i++ {
		var chat entity.Chat
		if err := allDocs[i].DataTo(&chat); err != nil {
			log.Printf("Error parsing chat data for user %s: %v", userID, err)
			continue
		}
		chats = append(chats, &chat)
	}

	return chats, total, nil
}

func (r *firestoreChatRepository) Update(ctx context.Context, chat *entity.Chat) error {
	chat.UpdatedAt = time.Now()

	_, err := r.client.Collection("chats").Doc(chat.ID).Set(ctx, chat)
	if err != nil {
		return errors.Internal("Failed to update chat", err)
	}

	return nil
}

func (r *firestoreChatRepository) SetArchived(ctx context.Context, chatID, userID string, archived bool) error {
	docRef := r.client.Collection("chats").Doc(chatID)

	_, err := docRef.Update(ctx, []firestore.Update{
		{Path: "archivedBy." + userID, Value: archived},
		{Path: "updatedAt", Value: time.Now()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Chat", nil)
		}
		return errors.Internal("Failed to update archive state", err)
	}

	return nil
}

func (r *firestoreChatRepository) CreateMessage(ctx context.Context, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}

	now := time.Now()
	message.CreatedAt = now
	message.UpdatedAt = now

	_, err := r.client.Collection("chats").Doc(message.ChatID).Collection("messages").Doc(message.ID).Set(ctx, message)
	if err != nil {
		return errors.Internal("Failed to create message", err)
	}

	return nil
}

func (r *firestoreChatRepository) GetMessagesByChat(ctx context.Context, chatID string, limit, offset int) ([]*entity.Message, int64, error) {
	// Oldest first: fetch order is creation order.
	query := r.client.Collection("chats").Doc(chatID).Collection("messages").OrderBy("createdAt", firestore.Asc)

	countDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		log.Printf("Firestore error while counting messages for chat %s: %v", chatID, err)
		return nil, 0, errors.Internal("Failed to count messages for chat", err)
	}
	total := int64(len(countDocs))

	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	messages := make([]*entity.Message, 0)

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			log.Printf("Firestore error while iterating messages for chat %s: %v", chatID, err)
			return nil, 0, errors.Internal("Failed to iterate messages", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			log.Printf("Error parsing message data for chat %s: %v", chatID, err)
			return nil, 0, errors.Internal("Failed to parse message data", err)
		}

		messages = append(messages, &message)
	}

	return messages, total, nil
}

func (r *firestoreChatRepository) MarkMessagesRead(ctx context.Context, chatID, userID string) (int, error) {
	query := r.client.Collection("chats").Doc(chatID).Collection("messages").
		Where("receiverId", "==", userID).
		Where("read", "==", false)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return 0, errors.Internal("Failed to query unread messages", err)
	}

	updated := 0
	now := time.Now()
	for _, doc := range docs {
		_, err := doc.Ref.Update(ctx, []firestore.Update{
			{Path: "read", Value: true},
			{Path: "updatedAt", Value: now},
		})
		if err != nil {
			return updated, errors.Internal("Failed to update message read status", err)
		}
		updated++
	}

	return updated, nil
}

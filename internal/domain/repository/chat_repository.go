package repository

import (
	"context"

	"marketchat/internal/domain/entity"
)

type ChatRepository interface {
	// FindOrCreate atomically resolves the chat for a participant pair and
	// product, creating it when absent. Concurrent calls for the same pair
	// and product must return the same chat.
	FindOrCreate(ctx context.Context, participantA, participantB, productID string) (*entity.Chat, bool, error)
	GetByID(ctx context.Context, id string) (*entity.Chat, error)
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Chat, int64, error)
	Update(ctx context.Context, chat *entity.Chat) error
	SetArchived(ctx context.Context, chatID, userID string, archived bool) error

	// Message methods
	CreateMessage(ctx context.Context, message *entity.Message) error
	GetMessagesByChat(ctx context.Context, chatID string, limit, offset int) ([]*entity.Message, int64, error)
	// MarkMessagesRead flips unread messages addressed to userID in the
	// chat to read and returns how many changed. Idempotent.
	MarkMessagesRead(ctx context.Context, chatID, userID string) (int, error)
}

package entity

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// chatKeyNamespace scopes deterministic chat IDs to this application.
var chatKeyNamespace = uuid.MustParse("7b9f41d2-3c55-4e0a-9a6b-2f8d1c0e5a77")

type Chat struct {
	ID            string          `json:"id" firestore:"id"`
	Participants  []string        `json:"participants" firestore:"participants"`
	ProductID     string          `json:"product_id" firestore:"productId"`
	ArchivedBy    map[string]bool `json:"archived_by,omitempty" firestore:"archivedBy,omitempty"`
	LastMessage   string          `json:"last_message,omitempty" firestore:"lastMessage,omitempty"`
	LastMessageAt time.Time       `json:"last_message_at" firestore:"lastMessageAt"`
	UnreadCount   map[string]int  `json:"unread_count" firestore:"unreadCount"`
	CreatedAt     time.Time       `json:"created_at" firestore:"createdAt"`
	UpdatedAt     time.Time       `json:"updated_at" firestore:"updatedAt"`
}

// ChatKey derives the identity of a chat from its two participants and
// the product under discussion. The same pair and product always map to
// the same key regardless of participant order, which is what makes
// find-or-create collide on one document instead of racing into two.
func ChatKey(participantA, participantB, productID string) string {
	pair := []string{participantA, participantB}
	sort.Strings(pair)
	return uuid.NewSHA1(chatKeyNamespace, []byte(pair[0]+"|"+pair[1]+"|"+productID)).String()
}

// SortedParticipants returns the canonical storage order for a pair.
func SortedParticipants(participantA, participantB string) []string {
	pair := []string{participantA, participantB}
	sort.Strings(pair)
	return pair
}

// HasParticipant reports whether userID is one of the chat's two participants.
func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the participant that is not userID, or "" when
// userID is not in the chat.
func (c *Chat) OtherParticipant(userID string) string {
	if !c.HasParticipant(userID) {
		return ""
	}
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// IsArchivedBy treats absence from the map as not archived.
func (c *Chat) IsArchivedBy(userID string) bool {
	return c.ArchivedBy[userID]
}

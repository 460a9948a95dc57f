package entity

import "time"

const (
	MessageTypeText = "text"
	MessageTypeFile = "file"
)

// FlaggedReasonSensitive is the one reason recorded for flagged messages.
// The scanner knows which category matched but callers only surface this.
const FlaggedReasonSensitive = "Contains sensitive information"

type Attachment struct {
	FileName   string `json:"file_name" firestore:"fileName"`
	URL        string `json:"url" firestore:"url"`
	Type       string `json:"type" firestore:"type"`
	Size       int64  `json:"size" firestore:"size"`
	MimeType   string `json:"mime_type" firestore:"mimeType"`
	ScanStatus string `json:"scan_status,omitempty" firestore:"scanStatus,omitempty"`
}

type Message struct {
	ID            string       `json:"id" firestore:"id"`
	ChatID        string       `json:"chat_id" firestore:"chatId"`
	SenderID      string       `json:"sender_id" firestore:"senderId"`
	ReceiverID    string       `json:"receiver_id" firestore:"receiverId"`
	Content       string       `json:"content,omitempty" firestore:"content,omitempty"`
	Attachments   []Attachment `json:"attachments,omitempty" firestore:"attachments,omitempty"`
	Type          string       `json:"type" firestore:"type"`
	IsFlagged     bool         `json:"is_flagged" firestore:"isFlagged"`
	FlaggedReason string       `json:"flagged_reason,omitempty" firestore:"flaggedReason,omitempty"`
	Read          bool         `json:"read" firestore:"read"`
	CreatedAt     time.Time    `json:"created_at" firestore:"createdAt"`
	UpdatedAt     time.Time    `json:"updated_at" firestore:"updatedAt"`
}

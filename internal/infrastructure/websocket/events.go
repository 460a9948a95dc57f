package websocket

import (
	"context"
	"encoding/json"
	"log"
	"time"
)

// Wire event names. Outbound names match what the storefront listens for.
const (
	EventNewMessage   = "new-message"
	EventNotification = "notification"
	EventMessagesRead = "messages-read"
	EventTyping       = "typing-indicator"

	frameTypePing      = "ping"
	frameTypePong      = "pong"
	frameTypeJoinRoom  = "join_chat_room"
	frameTypeLeaveRoom = "leave_chat_room"
	frameTypeMarkRead  = "mark_read"
	frameTypeTyping    = "typing"
)

// Frame is the envelope for every message on the socket, both directions.
type Frame struct {
	Type      string      `json:"type"`
	ChatID    string      `json:"chat_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// NewFrame marshals an outbound event; callers pass the result to
// SendToUser or SendToChatRoom.
func NewFrame(eventType, chatID string, data interface{}) []byte {
	frame := Frame{
		Type:      eventType,
		ChatID:    chatID,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		log.Printf("WebSocket: failed to marshal %s frame: %v", eventType, err)
		return nil
	}
	return payload
}

type typingData struct {
	IsTyping bool `json:"is_typing"`
}

// HandleClientMessage dispatches one inbound frame.
func (m *Manager) HandleClientMessage(client *Client, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		log.Printf("WebSocket: bad frame from %s: %v", client.UserID, err)
		m.sendError(client, "Invalid message format")
		return
	}

	switch frame.Type {
	case frameTypePing:
		m.sendToClient(client, NewFrame(frameTypePong, "", map[string]string{"status": "alive"}))

	case frameTypeJoinRoom:
		if frame.ChatID == "" {
			m.sendError(client, "Missing chat_id")
			return
		}
		m.JoinChatRoom(frame.ChatID, client)
		client.ActiveChatRoom = frame.ChatID
		log.Printf("WebSocket: %s joined chat room %s", client.UserID, frame.ChatID)

	case frameTypeLeaveRoom:
		if frame.ChatID == "" {
			m.sendError(client, "Missing chat_id")
			return
		}
		m.LeaveChatRoom(frame.ChatID, client)
		if client.ActiveChatRoom == frame.ChatID {
			client.ActiveChatRoom = ""
		}

	case frameTypeMarkRead:
		if frame.ChatID == "" {
			m.sendError(client, "Missing chat_id")
			return
		}
		if m.events != nil {
			m.events.HandleMarkRead(context.Background(), client.UserID, frame.ChatID)
		}

	case frameTypeTyping:
		if frame.ChatID == "" {
			return
		}
		var data typingData
		if raw, err := json.Marshal(frame.Data); err == nil {
			json.Unmarshal(raw, &data)
		}
		if m.events != nil {
			m.events.HandleTyping(context.Background(), client.UserID, frame.ChatID, data.IsTyping)
		}

	default:
		log.Printf("WebSocket: unknown frame type %q from %s", frame.Type, client.UserID)
		m.sendError(client, "Unknown message type")
	}
}

func (m *Manager) sendToClient(client *Client, payload []byte) {
	if payload == nil {
		return
	}
	if !client.trySend(payload) {
		log.Printf("WebSocket: send buffer full for %s, dropping connection", client.UserID)
		m.dropClient(client)
	}
}

func (m *Manager) sendError(client *Client, message string) {
	m.sendToClient(client, NewFrame("error", "", map[string]string{"error": message}))
}

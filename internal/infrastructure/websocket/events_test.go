package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFrame(t *testing.T) {
	payload := NewFrame(EventNewMessage, "chat-1", map[string]string{"content": "hello"})
	require.NotNil(t, payload)

	var frame Frame
	require.NoError(t, json.Unmarshal(payload, &frame))

	assert.Equal(t, EventNewMessage, frame.Type)
	assert.Equal(t, "chat-1", frame.ChatID)
	assert.NotEmpty(t, frame.Timestamp)

	data, ok := frame.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "hello", data["content"])
}

func TestNewFrameOmitsEmptyChatID(t *testing.T) {
	payload := NewFrame(EventNotification, "", nil)
	require.NotNil(t, payload)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &raw))

	_, present := raw["chat_id"]
	assert.False(t, present)
}

func TestJoinAndLeaveChatRoomFrames(t *testing.T) {
	m := NewManager()
	client := &Client{UserID: "user-1", Send: make(chan []byte, 4)}

	m.HandleClientMessage(client, []byte(`{"type":"join_chat_room","chat_id":"chat-1"}`))
	assert.Equal(t, "chat-1", client.ActiveChatRoom)
	assert.Contains(t, m.chatRooms["chat-1"], "user-1")

	m.HandleClientMessage(client, []byte(`{"type":"leave_chat_room","chat_id":"chat-1"}`))
	assert.Equal(t, "", client.ActiveChatRoom)
	assert.NotContains(t, m.chatRooms, "chat-1")
}

func TestPingFrame(t *testing.T) {
	m := NewManager()
	client := &Client{UserID: "user-1", Send: make(chan []byte, 1)}

	m.HandleClientMessage(client, []byte(`{"type":"ping"}`))

	require.Len(t, client.Send, 1)
	var frame Frame
	require.NoError(t, json.Unmarshal(<-client.Send, &frame))
	assert.Equal(t, "pong", frame.Type)
}

func TestSendToClosedClientDoesNotPanic(t *testing.T) {
	m := NewManager()
	client := &Client{UserID: "user-1", Send: make(chan []byte, 1)}

	m.clients["user-1"] = client
	m.JoinChatRoom("chat-1", client)

	// Close underneath the send paths, as a concurrent unregister would.
	client.closeSend()

	assert.NotPanics(t, func() {
		m.SendToUser("user-1", []byte("payload"))
		m.SendToChatRoom("chat-1", []byte("payload"), "")
	})

	// A later unregister must not close the channel a second time.
	assert.NotPanics(t, func() {
		m.removeClient(client)
	})
}

func TestSendToChatRoomExcludesSender(t *testing.T) {
	m := NewManager()
	sender := &Client{UserID: "user-1", Send: make(chan []byte, 1)}
	receiver := &Client{UserID: "user-2", Send: make(chan []byte, 1)}

	m.JoinChatRoom("chat-1", sender)
	m.JoinChatRoom("chat-1", receiver)

	m.SendToChatRoom("chat-1", []byte("payload"), "user-1")

	assert.Len(t, receiver.Send, 1)
	assert.Len(t, sender.Send, 0)
}

package websocket

import (
	"context"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Client is one authenticated WebSocket connection.
type Client struct {
	UserID         string
	Conn           *websocket.Conn
	Send           chan []byte
	ActiveChatRoom string

	mu     sync.Mutex
	closed bool
}

// trySend queues a payload unless the client is already closed or its
// buffer is full. The lock pairs with closeSend so a concurrent close
// cannot land between the check and the channel send.
func (c *Client) trySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// Manager tracks connected clients and per-chat rooms. The user registry
// backs "notification" delivery to a participant wherever they are; rooms
// back "new-message" delivery to participants with the chat open.
type Manager struct {
	clients   map[string]*Client
	chatRooms map[string]map[string]*Client

	Register   chan *Client
	Unregister chan *Client

	events EventHandler
	mutex  sync.RWMutex
}

// EventHandler receives inbound socket frames that touch chat state, so
// the manager stays ignorant of persistence.
type EventHandler interface {
	HandleMarkRead(ctx context.Context, userID, chatID string)
	HandleTyping(ctx context.Context, userID, chatID string, isTyping bool)
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		chatRooms:  make(map[string]map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// SetEventHandler wires the chat use case in after construction; the use
// case also needs the manager, so one side has to be set late.
func (m *Manager) SetEventHandler(h EventHandler) {
	m.events = h
}

func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.mutex.Lock()
				m.clients[client.UserID] = client
				m.mutex.Unlock()
				log.Printf("Client registered: %s", client.UserID)

			case client := <-m.Unregister:
				m.removeClient(client)
				log.Printf("Client unregistered: %s", client.UserID)

			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *Manager) removeClient(client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if existing, ok := m.clients[client.UserID]; ok && existing == client {
		delete(m.clients, client.UserID)
		client.closeSend()
	}
	for chatID, room := range m.chatRooms {
		if room[client.UserID] == client {
			delete(room, client.UserID)
			if len(room) == 0 {
				delete(m.chatRooms, chatID)
			}
		}
	}
}

// SendToUser delivers a payload to a user's connection if they are online.
func (m *Manager) SendToUser(userID string, message []byte) {
	m.mutex.RLock()
	client, ok := m.clients[userID]
	m.mutex.RUnlock()

	if !ok {
		return
	}

	if !client.trySend(message) {
		log.Printf("WebSocket: send buffer full for %s, dropping connection", userID)
		m.dropClient(client)
	}
}

// dropClient hands a stalled or closed client to the manager loop without
// blocking the send path when the loop is busy.
func (m *Manager) dropClient(client *Client) {
	select {
	case m.Unregister <- client:
	default:
	}
}

// SendToChatRoom broadcasts to everyone in a chat room, optionally
// skipping the sender.
func (m *Manager) SendToChatRoom(chatID string, message []byte, excludeUserID string) {
	m.mutex.RLock()
	room := m.chatRooms[chatID]
	targets := make([]*Client, 0, len(room))
	for userID, client := range room {
		if userID != excludeUserID {
			targets = append(targets, client)
		}
	}
	m.mutex.RUnlock()

	for _, client := range targets {
		if !client.trySend(message) {
			m.dropClient(client)
		}
	}
}

func (m *Manager) JoinChatRoom(chatID string, client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	room, ok := m.chatRooms[chatID]
	if !ok {
		room = make(map[string]*Client)
		m.chatRooms[chatID] = room
	}
	room[client.UserID] = client
}

func (m *Manager) LeaveChatRoom(chatID string, client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if room, ok := m.chatRooms[chatID]; ok {
		delete(room, client.UserID)
		if len(room) == 0 {
			delete(m.chatRooms, chatID)
		}
	}
}

// ReadPump reads frames from the connection until it closes.
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		m.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error for %s: %v", c.UserID, err)
			}
			break
		}

		m.HandleClientMessage(c, message)
	}
}

// WritePump drains the send channel into the connection.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		message, ok := <-c.Send
		if !ok {
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("WebSocket write error for %s: %v", c.UserID, err)
			return
		}
	}
}

package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/meetlite/internal/models"
)

// MessageType определяет типы сообщений
type MessageType string

const (
	// Системные типы
	TypePing  MessageType = "ping"
	TypePong  MessageType = "pong"
	TypeError MessageType = "error"

	// Команды клиента
	TypeRoomJoin  MessageType = "room_join"
	TypeRoomLeave MessageType = "room_leave"
	TypeChatSend  MessageType = "chat_message"

	// События комнаты (сервер -> клиенты)
	TypeParticipantJoined MessageType = "participant-joined"
	TypeParticipantLeft   MessageType = "participant-left"
	TypeChatBroadcast     MessageType = "chat-message"
	TypeMeetingEnded      MessageType = "meeting-ended"
	TypeRoomHistory       MessageType = "room_history"
)

// Сколько даем writer-у на доставку терминального события перед закрытием
const closeGrace = time.Second

type Message struct {
	Type      MessageType     `json:"type"`
	RoomCode  string          `json:"room_code,omitempty"`
	UserID    uuid.UUID       `json:"user_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ParticipantEventPayload — тело participant-joined/participant-left.
// ActiveCount везде, чтобы клиенты рисовали заполненность без опроса.
type ParticipantEventPayload struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
	ActiveCount int       `json:"active_count"`
}

// ChatEventPayload — тело chat-message
type ChatEventPayload struct {
	MessageID  uuid.UUID `json:"message_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Body       string    `json:"body"`
	Sequence   int64     `json:"sequence"`
	SentAt     time.Time `json:"sent_at"`
}

type MeetingEndedPayload struct {
	ActiveCount int `json:"active_count"`
}

// room — соединения одной встречи под собственным замком: вход, выход и
// рассылка в одной комнате не сериализуются с остальными комнатами.
// closed выставляется перед удалением комнаты из реестра; опоздавший
// JoinRoom видит флаг и заводит комнату заново.
type room struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Client
	closed  bool
}

type Hub struct {
	clients map[uuid.UUID]*Client

	// Клиенты по UserID (один пользователь может иметь несколько соединений)
	userClients map[uuid.UUID]map[uuid.UUID]*Client

	// Живые комнаты по коду встречи. Общий замок только на создание и
	// удаление комнат; состав комнаты меняется под ее собственным замком.
	rooms map[string]*room

	// Каналы для регистрации/отмены регистрации
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Обрыв соединения = выход участника; колбэк дергает координатор
	leave func(roomCode string, userID uuid.UUID)

	// Контекст для graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub создает новый Hub
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[uuid.UUID]*Client),
		userClients: make(map[uuid.UUID]map[uuid.UUID]*Client),
		rooms:       make(map[string]*room),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetLeaveHandler вызывается один раз при сборке сервера; hub и координатор
// ссылаются друг на друга, поэтому колбэк подвязывается после конструкторов
func (h *Hub) SetLeaveHandler(fn func(roomCode string, userID uuid.UUID)) {
	h.leave = fn
}

// Run запускает hub
func (h *Hub) Run() {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ticker.C:
			log.Printf("hub: %d connections, %d rooms", h.ClientCount(), len(h.RoomStats()))
		}
	}
}

// Stop останавливает hub
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.Send)
		if client.Conn != nil {
			client.Conn.Close()
		}
	}
	for _, r := range h.rooms {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
	}
	h.clients = make(map[uuid.UUID]*Client)
	h.userClients = make(map[uuid.UUID]map[uuid.UUID]*Client)
	h.rooms = make(map[string]*room)
}

// Register регистрирует нового клиента
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister отменяет регистрацию клиента
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client

	if _, ok := h.userClients[client.UserID]; !ok {
		h.userClients[client.UserID] = make(map[uuid.UUID]*Client)
	}
	h.userClients[client.UserID][client.ID] = client

	log.Printf("Client registered: %s (User: %s)", client.ID, client.UserID)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; !ok {
		h.mu.Unlock()
		return
	}

	if userClients, ok := h.userClients[client.UserID]; ok {
		delete(userClients, client.ID)
		if len(userClients) == 0 {
			delete(h.userClients, client.UserID)
		}
	}
	delete(h.clients, client.ID)
	close(client.Send)
	h.mu.Unlock()

	log.Printf("Client unregistered: %s (User: %s)", client.ID, client.UserID)

	// Комнаты чистятся уже без общего замка
	codes := client.GetRooms()
	for _, code := range codes {
		h.removeClientFromRoom(client, code)
	}

	// Колбэк вне блокировок: Leave идет через хранилище и сам вернется
	// в hub за рассылкой participant-left
	if h.leave != nil {
		for _, code := range codes {
			go h.leave(code, client.UserID)
		}
	}
}

func (h *Hub) getRoom(roomCode string) *room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[roomCode]
}

func (h *Hub) getOrCreateRoom(roomCode string) *room {
	h.mu.RLock()
	r := h.rooms[roomCode]
	h.mu.RUnlock()
	if r != nil {
		return r
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if r = h.rooms[roomCode]; r == nil {
		r = &room{clients: make(map[uuid.UUID]*Client)}
		h.rooms[roomCode] = r
	}
	return r
}

// reapIfEmpty убирает опустевшую комнату из реестра. Флаг closed и удаление
// из map происходят под общим замком, поэтому реестр никогда не содержит
// закрытую комнату.
func (h *Hub) reapIfEmpty(roomCode string, r *room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[roomCode] != r {
		return
	}
	r.mu.Lock()
	if len(r.clients) == 0 {
		r.closed = true
		delete(h.rooms, roomCode)
	}
	r.mu.Unlock()
}

// JoinRoom добавляет клиента в комнату. Анонс события делает координатор
// после коммита в хранилище, hub только ведет реестр.
func (h *Hub) JoinRoom(client *Client, roomCode string) {
	for {
		r := h.getOrCreateRoom(roomCode)
		r.mu.Lock()
		if r.closed {
			// Проиграли гонку с удалением комнаты, заводим новую
			r.mu.Unlock()
			continue
		}
		r.clients[client.ID] = client
		r.mu.Unlock()
		break
	}

	client.mu.Lock()
	client.Rooms[roomCode] = true
	client.mu.Unlock()
}

// LeaveRoom удаляет клиента из комнаты
func (h *Hub) LeaveRoom(client *Client, roomCode string) {
	h.removeClientFromRoom(client, roomCode)
}

func (h *Hub) removeClientFromRoom(client *Client, roomCode string) {
	r := h.getRoom(roomCode)
	if r == nil {
		return
	}

	r.mu.Lock()
	_, present := r.clients[client.ID]
	delete(r.clients, client.ID)
	empty := len(r.clients) == 0
	r.mu.Unlock()

	if present {
		client.mu.Lock()
		delete(client.Rooms, roomCode)
		client.mu.Unlock()
	}
	if empty {
		h.reapIfEmpty(roomCode, r)
	}
}

// RemoveUserFromRoom выкидывает все соединения пользователя из комнаты.
// Идемпотентна — для Leave через REST, когда websocket уже отвалился.
func (h *Hub) RemoveUserFromRoom(roomCode string, userID uuid.UUID) {
	r := h.getRoom(roomCode)
	if r == nil {
		return
	}

	r.mu.Lock()
	for id, client := range r.clients {
		if client.UserID == userID {
			delete(r.clients, id)
			client.mu.Lock()
			delete(client.Rooms, roomCode)
			client.mu.Unlock()
		}
	}
	empty := len(r.clients) == 0
	r.mu.Unlock()

	if empty {
		h.reapIfEmpty(roomCode, r)
	}
}

// NotifyParticipantJoined рассылает participant-joined всем в комнате,
// кроме самого вошедшего
func (h *Hub) NotifyParticipantJoined(roomCode string, p *models.Participant, activeCount int) {
	h.sendEvent(roomCode, TypeParticipantJoined, p.UserID, ParticipantEventPayload{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		ActiveCount: activeCount,
	}, p.UserID)
}

// NotifyParticipantLeft рассылает participant-left
func (h *Hub) NotifyParticipantLeft(roomCode string, userID uuid.UUID, activeCount int) {
	h.sendEvent(roomCode, TypeParticipantLeft, userID, ParticipantEventPayload{
		UserID:      userID,
		ActiveCount: activeCount,
	}, uuid.Nil)
}

// NotifyChatMessage рассылает chat-message всем, включая отправителя:
// эхо с присвоенным sequence подтверждает доставку
func (h *Hub) NotifyChatMessage(roomCode string, msg *models.Message, senderName string) {
	h.sendEvent(roomCode, TypeChatBroadcast, msg.SenderID, ChatEventPayload{
		MessageID:  msg.ID,
		SenderID:   msg.SenderID,
		SenderName: senderName,
		Body:       msg.Body,
		Sequence:   msg.Sequence,
		SentAt:     msg.SentAt,
	}, uuid.Nil)
}

// CloseRoom доставляет каждому соединению комнаты терминальное meeting-ended
// и закрывает их. Комната исчезает из реестра сразу, соединения — после
// короткой паузы, чтобы writer успел дослать событие.
func (h *Hub) CloseRoom(roomCode string) {
	data, err := json.Marshal(MeetingEndedPayload{ActiveCount: 0})
	if err != nil {
		return
	}
	msg := Message{
		Type:      TypeMeetingEnded,
		RoomCode:  roomCode,
		Data:      data,
		Timestamp: time.Now(),
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.Lock()
	r, ok := h.rooms[roomCode]
	if !ok {
		h.mu.Unlock()
		return
	}
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	delete(h.rooms, roomCode)
	h.mu.Unlock()

	r.mu.Lock()
	evicted := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		select {
		case client.Send <- raw:
		default:
			log.Printf("Client %s send channel full, dropping meeting-ended", client.ID)
		}
		client.mu.Lock()
		delete(client.Rooms, roomCode)
		client.mu.Unlock()
		evicted = append(evicted, client)
	}
	r.clients = make(map[uuid.UUID]*Client)
	r.mu.Unlock()

	for _, client := range evicted {
		go func(c *Client) {
			time.Sleep(closeGrace)
			if c.Conn != nil {
				c.Conn.Close()
			}
		}(client)
	}
}

func (h *Hub) sendEvent(roomCode string, msgType MessageType, userID uuid.UUID, payload interface{}, exclude uuid.UUID) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := Message{
		Type:      msgType,
		RoomCode:  roomCode,
		UserID:    userID,
		Data:      data,
		Timestamp: time.Now(),
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.broadcastToRoomExcept(roomCode, raw, exclude)
}

// Медленный клиент теряет событие, но никогда не тормозит комнату:
// запись в Send неблокирующая
func (h *Hub) broadcastToRoomExcept(roomCode string, message []byte, excludeUserID uuid.UUID) {
	r := h.getRoom(roomCode)
	if r == nil {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, client := range r.clients {
		if excludeUserID != uuid.Nil && client.UserID == excludeUserID {
			continue
		}
		select {
		case client.Send <- message:
		default:
			log.Printf("Client %s send channel full", client.ID)
		}
	}
}

// ConnectionCount возвращает число живых соединений в комнате
func (h *Hub) ConnectionCount(roomCode string) int {
	r := h.getRoom(roomCode)
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// ClientCount возвращает общее число соединений
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomStats — счетчики соединений по комнатам для дашбордов.
// Только числа, без имен участников.
func (h *Hub) RoomStats() map[string]int {
	h.mu.RLock()
	snapshot := make(map[string]*room, len(h.rooms))
	for code, r := range h.rooms {
		snapshot[code] = r
	}
	h.mu.RUnlock()

	stats := make(map[string]int, len(snapshot))
	for code, r := range snapshot {
		r.mu.RLock()
		n := len(r.clients)
		r.mu.RUnlock()
		if n > 0 {
			stats[code] = n
		}
	}
	return stats
}

package handlers

import (
	"context"
	"encoding/json"
	"log"

	"github.com/thereayou/meetlite/internal/coordinator"
	"github.com/thereayou/meetlite/internal/handlers/dto"
	ws "github.com/thereayou/meetlite/internal/websocket"
	"github.com/thereayou/meetlite/pkg/roomcode"
)

// MeetingEventHandler диспетчеризует команды живого канала: вход в комнату,
// выход, отправка чата. Вся логика допуска остается в координаторе, здесь
// только разбор конвертов.
type MeetingEventHandler struct {
	coord *coordinator.Coordinator
}

func NewMeetingEventHandler(coord *coordinator.Coordinator) *MeetingEventHandler {
	return &MeetingEventHandler{coord: coord}
}

func (h *MeetingEventHandler) HandleMessage(client *ws.Client, msg *ws.Message) error {
	switch msg.Type {
	case ws.TypeRoomJoin:
		return h.handleRoomJoin(client, msg)

	case ws.TypeRoomLeave:
		return h.handleRoomLeave(client, msg)

	case ws.TypeChatSend:
		return h.handleChatSend(client, msg)

	default:
		log.Printf("Unknown message type: %s", msg.Type)
		return nil
	}
}

func (h *MeetingEventHandler) handleRoomJoin(client *ws.Client, msg *ws.Message) error {
	code := roomcode.Normalize(msg.RoomCode)
	if !roomcode.Valid(code) {
		return ws.ErrInvalidMessage
	}

	var payload struct {
		DisplayName  string `json:"display_name"`
		Email        string `json:"email"`
		RoomPassword string `json:"room_password"`
		Since        int64  `json:"since"`
	}
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			return err
		}
	}
	if payload.DisplayName == "" {
		return ws.ErrInvalidMessage
	}

	result, err := h.coord.Join(context.Background(), code, client.UserID, payload.DisplayName, payload.Email, payload.RoomPassword)
	if err != nil {
		return err
	}

	// Регистрация соединения в комнате — после успешного допуска
	client.Hub.JoinRoom(client, code)

	// Новому участнику сразу уходит хвост истории чата: при реконнекте
	// клиент передает since с последним виденным sequence
	messages, err := h.coord.History(context.Background(), code, client.UserID, payload.Since, 50)
	if err != nil {
		log.Printf("Failed to load history for %s: %v", code, err)
		messages = nil
	}

	history := make([]dto.MessageResponse, len(messages))
	for i := range messages {
		history[i] = dto.NewMessageResponse(&messages[i])
	}

	return client.SendMessage(ws.TypeRoomHistory, map[string]interface{}{
		"room_code":         code,
		"participant_count": result.ActiveCount,
		"messages":          history,
	})
}

func (h *MeetingEventHandler) handleRoomLeave(client *ws.Client, msg *ws.Message) error {
	code := roomcode.Normalize(msg.RoomCode)
	if code == "" {
		return ws.ErrInvalidMessage
	}

	client.Hub.LeaveRoom(client, code)
	return h.coord.Leave(context.Background(), code, client.UserID)
}

func (h *MeetingEventHandler) handleChatSend(client *ws.Client, msg *ws.Message) error {
	code := roomcode.Normalize(msg.RoomCode)
	if code == "" {
		return ws.ErrInvalidMessage
	}
	if !client.IsInRoom(code) {
		return ws.ErrNotInRoom
	}

	var payload struct {
		Body string `json:"body"`
	}
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return err
	}
	if payload.Body == "" {
		return ws.ErrInvalidMessage
	}

	// Рассылку делает координатор после коммита в журнале
	_, err := h.coord.SendChat(context.Background(), code, client.UserID, payload.Body)
	return err
}

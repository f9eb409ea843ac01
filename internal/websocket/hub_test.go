package websocket

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/meetlite/internal/models"
)

// Клиенты без реального соединения: Conn == nil, вся доставка проверяется
// через канал Send.
func newTestClient(hub *Hub, userID uuid.UUID) *Client {
	return NewClient(hub, nil, userID)
}

func receiveMessage(t *testing.T, c *Client) *Message {
	t.Helper()
	select {
	case raw, ok := <-c.Send:
		if !ok {
			t.Fatal("send channel closed")
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("unmarshal message: %v", err)
		}
		return &msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
	}
	return nil
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.Send:
		t.Fatalf("unexpected message: %s", raw)
	default:
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestJoinLeaveRoomRegistry(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, uuid.New())

	hub.JoinRoom(client, "ROOM2222")
	if !client.IsInRoom("ROOM2222") {
		t.Error("client not marked in room")
	}
	if n := hub.ConnectionCount("ROOM2222"); n != 1 {
		t.Errorf("ConnectionCount: got %d, want 1", n)
	}

	hub.LeaveRoom(client, "ROOM2222")
	if client.IsInRoom("ROOM2222") {
		t.Error("client still marked in room")
	}
	if n := hub.ConnectionCount("ROOM2222"); n != 0 {
		t.Errorf("ConnectionCount after leave: got %d, want 0", n)
	}
}

func TestNotifyParticipantJoinedExcludesJoiner(t *testing.T) {
	hub := NewHub()
	joiner := newTestClient(hub, uuid.New())
	other := newTestClient(hub, uuid.New())
	hub.JoinRoom(joiner, "ROOM2222")
	hub.JoinRoom(other, "ROOM2222")

	hub.NotifyParticipantJoined("ROOM2222", &models.Participant{
		UserID:      joiner.UserID,
		DisplayName: "Alice",
	}, 2)

	msg := receiveMessage(t, other)
	if msg.Type != TypeParticipantJoined {
		t.Errorf("type: got %q", msg.Type)
	}
	var payload ParticipantEventPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.UserID != joiner.UserID || payload.DisplayName != "Alice" {
		t.Errorf("payload: %+v", payload)
	}
	if payload.ActiveCount != 2 {
		t.Errorf("active_count: got %d", payload.ActiveCount)
	}

	// Сам вошедший свое же событие не получает
	assertNoMessage(t, joiner)
}

func TestNotifyParticipantLeftReachesEveryone(t *testing.T) {
	hub := NewHub()
	a := newTestClient(hub, uuid.New())
	b := newTestClient(hub, uuid.New())
	hub.JoinRoom(a, "ROOM2222")
	hub.JoinRoom(b, "ROOM2222")

	gone := uuid.New()
	hub.NotifyParticipantLeft("ROOM2222", gone, 2)

	for _, c := range []*Client{a, b} {
		msg := receiveMessage(t, c)
		if msg.Type != TypeParticipantLeft {
			t.Errorf("type: got %q", msg.Type)
		}
		var payload ParticipantEventPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			t.Fatal(err)
		}
		if payload.UserID != gone || payload.ActiveCount != 2 {
			t.Errorf("payload: %+v", payload)
		}
	}
}

func TestNotifyChatMessageEchoesToSender(t *testing.T) {
	hub := NewHub()
	sender := newTestClient(hub, uuid.New())
	other := newTestClient(hub, uuid.New())
	outsider := newTestClient(hub, uuid.New())
	hub.JoinRoom(sender, "ROOM2222")
	hub.JoinRoom(other, "ROOM2222")
	hub.JoinRoom(outsider, "OTHER222")

	hub.NotifyChatMessage("ROOM2222", &models.Message{
		ID:       uuid.New(),
		SenderID: sender.UserID,
		Body:     "hello",
		Sequence: 7,
		SentAt:   time.Now(),
	}, "Alice")

	// Эхо с sequence приходит и отправителю
	for _, c := range []*Client{sender, other} {
		msg := receiveMessage(t, c)
		if msg.Type != TypeChatBroadcast {
			t.Errorf("type: got %q", msg.Type)
		}
		var payload ChatEventPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			t.Fatal(err)
		}
		if payload.Body != "hello" || payload.Sequence != 7 || payload.SenderName != "Alice" {
			t.Errorf("payload: %+v", payload)
		}
	}

	// Чужая комната молчит
	assertNoMessage(t, outsider)
}

func TestCloseRoomDeliversTerminalEventAndEvicts(t *testing.T) {
	hub := NewHub()
	a := newTestClient(hub, uuid.New())
	b := newTestClient(hub, uuid.New())
	hub.JoinRoom(a, "ROOM2222")
	hub.JoinRoom(b, "ROOM2222")

	hub.CloseRoom("ROOM2222")

	for _, c := range []*Client{a, b} {
		msg := receiveMessage(t, c)
		if msg.Type != TypeMeetingEnded {
			t.Errorf("type: got %q", msg.Type)
		}
		if c.IsInRoom("ROOM2222") {
			t.Error("client still marked in closed room")
		}
	}
	if n := hub.ConnectionCount("ROOM2222"); n != 0 {
		t.Errorf("ConnectionCount: got %d, want 0", n)
	}

	// Повторное закрытие — no-op
	hub.CloseRoom("ROOM2222")
	assertNoMessage(t, a)
}

func TestRemoveUserFromRoomDropsAllConnections(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()
	first := newTestClient(hub, userID)
	second := newTestClient(hub, userID)
	other := newTestClient(hub, uuid.New())
	hub.JoinRoom(first, "ROOM2222")
	hub.JoinRoom(second, "ROOM2222")
	hub.JoinRoom(other, "ROOM2222")

	hub.RemoveUserFromRoom("ROOM2222", userID)

	if first.IsInRoom("ROOM2222") || second.IsInRoom("ROOM2222") {
		t.Error("user connections survived removal")
	}
	if !other.IsInRoom("ROOM2222") {
		t.Error("unrelated client removed")
	}
	if n := hub.ConnectionCount("ROOM2222"); n != 1 {
		t.Errorf("ConnectionCount: got %d, want 1", n)
	}

	// Идемпотентно
	hub.RemoveUserFromRoom("ROOM2222", userID)
	hub.RemoveUserFromRoom("GONE2222", userID)
}

func TestSlowClientDoesNotBlockBroadcast(t *testing.T) {
	hub := NewHub()
	slow := &Client{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Send:   make(chan []byte), // без буфера: любая запись бы заблокировала
		Rooms:  make(map[string]bool),
		Hub:    hub,
	}
	healthy := newTestClient(hub, uuid.New())
	hub.JoinRoom(slow, "ROOM2222")
	hub.JoinRoom(healthy, "ROOM2222")

	done := make(chan struct{})
	go func() {
		hub.NotifyParticipantLeft("ROOM2222", uuid.New(), 1)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on slow client")
	}
	receiveMessage(t, healthy)
}

func TestRegisterUnregisterTriggersLeave(t *testing.T) {
	hub := NewHub()

	var mu sync.Mutex
	type leaveCall struct {
		code   string
		userID uuid.UUID
	}
	var calls []leaveCall
	hub.SetLeaveHandler(func(code string, userID uuid.UUID) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, leaveCall{code, userID})
	})

	go hub.Run()
	defer hub.Stop()

	client := newTestClient(hub, uuid.New())
	hub.Register(client)
	waitFor(t, "registration", func() bool { return hub.ClientCount() == 1 })

	hub.JoinRoom(client, "ROOM2222")
	hub.Unregister(client)

	waitFor(t, "unregistration", func() bool { return hub.ClientCount() == 0 })
	waitFor(t, "room cleanup", func() bool { return hub.ConnectionCount("ROOM2222") == 0 })

	// Обрыв соединения эквивалентен выходу из каждой комнаты
	waitFor(t, "leave callback", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) == 1
	})
	mu.Lock()
	if calls[0].code != "ROOM2222" || calls[0].userID != client.UserID {
		t.Errorf("leave call: %+v", calls[0])
	}
	mu.Unlock()

	// Hub закрыл канал клиента
	waitFor(t, "send channel close", func() bool {
		select {
		case _, ok := <-client.Send:
			return !ok
		default:
			return false
		}
	})
}

// Замок одной комнаты не должен останавливать вход, выход и рассылку
// в других комнатах.
func TestRoomLockDoesNotSerializeOtherRooms(t *testing.T) {
	hub := NewHub()
	a := newTestClient(hub, uuid.New())
	hub.JoinRoom(a, "AAAA2222")

	held := hub.getRoom("AAAA2222")
	if held == nil {
		t.Fatal("room AAAA2222 missing")
	}
	held.mu.Lock()
	defer held.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b := newTestClient(hub, uuid.New())
		hub.JoinRoom(b, "BBBB2222")
		hub.NotifyParticipantLeft("BBBB2222", uuid.New(), 1)
		hub.LeaveRoom(b, "BBBB2222")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("operations in one room blocked by another room's lock")
	}
}

func TestJoinRoomAfterRoomReaped(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, uuid.New())

	hub.JoinRoom(client, "ROOM2222")
	hub.LeaveRoom(client, "ROOM2222")
	// Пустая комната удалена из реестра
	if hub.getRoom("ROOM2222") != nil {
		t.Fatal("empty room not reaped")
	}

	hub.JoinRoom(client, "ROOM2222")
	if n := hub.ConnectionCount("ROOM2222"); n != 1 {
		t.Errorf("ConnectionCount after rejoin: got %d, want 1", n)
	}
	hub.NotifyParticipantLeft("ROOM2222", uuid.New(), 1)
	receiveMessage(t, client)
}

func TestRoomStats(t *testing.T) {
	hub := NewHub()
	hub.JoinRoom(newTestClient(hub, uuid.New()), "AAAA2222")
	hub.JoinRoom(newTestClient(hub, uuid.New()), "AAAA2222")
	hub.JoinRoom(newTestClient(hub, uuid.New()), "BBBB2222")

	stats := hub.RoomStats()
	if len(stats) != 2 || stats["AAAA2222"] != 2 || stats["BBBB2222"] != 1 {
		t.Errorf("RoomStats: %v", stats)
	}
}

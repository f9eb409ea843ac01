package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/meetlite/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// MeetingStore — долговременное хранилище встреч. Единственная точка, где
// разрешено менять состав и статус; атомарность лимита обеспечивает
// TryAddParticipant, а не блокировки уровня приложения.
type MeetingStore interface {
	CreateMeeting(ctx context.Context, meeting *models.Meeting) error
	GetMeetingByCode(ctx context.Context, code string) (*models.Meeting, error)
	MeetingCodeTaken(ctx context.Context, code string) (bool, error)
	TryAddParticipant(ctx context.Context, code string, p *models.Participant) (bool, error)
	MarkLeft(ctx context.Context, code string, userID uuid.UUID) (bool, error)
	ActivateMeeting(ctx context.Context, code string) (bool, error)
	EndMeeting(ctx context.Context, code string) (bool, error)
	UpdateMeetingSettings(ctx context.Context, code string, settings models.MeetingSettings) error
	CountActiveParticipants(ctx context.Context, code string) (int64, error)
	FindActiveMeetings(ctx context.Context) ([]models.Meeting, error)
	FindIdleActiveMeetings(ctx context.Context, emptySince time.Time) ([]models.Meeting, error)
	AppendMessage(ctx context.Context, code string, senderID uuid.UUID, body string) (*models.Message, error)
	GetMessagesSince(ctx context.Context, code string, since int64, limit int) ([]models.Message, error)
}

// Presence — процесс-локальный реестр живых соединений (websocket hub).
type Presence interface {
	NotifyParticipantJoined(code string, p *models.Participant, activeCount int)
	NotifyParticipantLeft(code string, userID uuid.UUID, activeCount int)
	NotifyChatMessage(code string, msg *models.Message, senderName string)
	CloseRoom(code string)
	RemoveUserFromRoom(code string, userID uuid.UUID)
	ConnectionCount(code string) int
}

type Coordinator struct {
	store    MeetingStore
	presence Presence

	storeTimeout           time.Duration
	defaultMaxParticipants int
	codeAttempts           int
}

func New(store MeetingStore, presence Presence, storeTimeout time.Duration, defaultMaxParticipants int) *Coordinator {
	if storeTimeout <= 0 {
		storeTimeout = 3 * time.Second
	}
	if defaultMaxParticipants <= 0 {
		defaultMaxParticipants = 6
	}
	return &Coordinator{
		store:                  store,
		presence:               presence,
		storeTimeout:           storeTimeout,
		defaultMaxParticipants: defaultMaxParticipants,
		codeAttempts:           5,
	}
}

// opCtx ограничивает каждый поход в хранилище коротким таймаутом;
// просроченный вызов наружу выглядит как ErrUnavailable, не как зависание.
func (c *Coordinator) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.storeTimeout)
}

func storeErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrUnavailable
	}
	return err
}

// CreateMeetingInput — входные данные от вызывающего; userID уже проверен
// транспортным слоем.
type CreateMeetingInput struct {
	Title              string
	Description        string
	HostUserID         uuid.UUID
	ScheduledStartTime *time.Time
	Settings           *models.MeetingSettings
	RoomPassword       string
}

// CreateMeeting выделяет свободный код, хеширует пароль и сохраняет встречу
// в статусе scheduled.
func (c *Coordinator) CreateMeeting(ctx context.Context, input CreateMeetingInput) (*models.Meeting, error) {
	code, err := c.allocateCode(ctx)
	if err != nil {
		return nil, err
	}

	settings := models.MeetingSettings{
		MaxParticipants:  c.defaultMaxParticipants,
		IsPublic:         true,
		AllowChat:        true,
		AllowScreenShare: true,
	}
	if input.Settings != nil {
		settings = *input.Settings
		if settings.MaxParticipants <= 0 {
			settings.MaxParticipants = c.defaultMaxParticipants
		}
	}

	meeting := &models.Meeting{
		Code:               code,
		Title:              input.Title,
		Description:        input.Description,
		HostUserID:         input.HostUserID,
		Status:             models.StatusScheduled,
		Settings:           settings,
		ScheduledStartTime: input.ScheduledStartTime,
		LastActivityAt:     time.Now(),
	}

	if input.RoomPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(input.RoomPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		meeting.PasswordHash = string(hash)
	}

	opCtx, cancel := c.opCtx(ctx)
	defer cancel()
	if err := c.store.CreateMeeting(opCtx, meeting); err != nil {
		return nil, storeErr(err)
	}
	return meeting, nil
}

// JoinResult — снимок состояния после успешного допуска.
type JoinResult struct {
	Meeting         *models.Meeting
	Participant     *models.Participant
	ActiveCount     int
	AlreadyActive   bool
	BecameActiveNow bool
}

// Join — вся процедура допуска: статус, пароль, атомарная вставка с проверкой
// лимита, активация по первому входу, анонс в комнату.
func (c *Coordinator) Join(ctx context.Context, code string, userID uuid.UUID, displayName, email, suppliedPassword string) (*JoinResult, error) {
	opCtx, cancel := c.opCtx(ctx)
	meeting, err := c.store.GetMeetingByCode(opCtx, code)
	cancel()
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMeetingNotFound
		}
		return nil, storeErr(err)
	}

	if meeting.Status == models.StatusEnded {
		return nil, ErrMeetingEnded
	}

	// Пароль неизменяем после создания, поэтому проверка до условной записи
	// гонок не открывает
	if meeting.RequiresPassword() {
		if err := bcrypt.CompareHashAndPassword([]byte(meeting.PasswordHash), []byte(suppliedPassword)); err != nil {
			return nil, ErrWrongPassword
		}
	}

	participant := &models.Participant{
		MeetingID:   meeting.ID,
		UserID:      userID,
		DisplayName: displayName,
		Email:       email,
		JoinedAt:    time.Now(),
	}

	opCtx, cancel = c.opCtx(ctx)
	added, err := c.store.TryAddParticipant(opCtx, code, participant)
	cancel()
	if err != nil {
		return nil, storeErr(err)
	}

	if !added {
		return c.classifyRejectedJoin(ctx, code, userID)
	}

	// Снимок загружался до вставки — дописываем вошедшему его же запись,
	// чтобы он видел себя в составе
	meeting.Participants = append(meeting.Participants, *participant)

	result := &JoinResult{Meeting: meeting, Participant: participant}

	// Первый вход переводит scheduled -> active; проигрыш гонки — тоже успех
	if meeting.Status == models.StatusScheduled {
		opCtx, cancel = c.opCtx(ctx)
		became, err := c.store.ActivateMeeting(opCtx, code)
		cancel()
		if err != nil {
			return nil, storeErr(err)
		}
		result.BecameActiveNow = became
		meeting.Status = models.StatusActive
	}

	opCtx, cancel = c.opCtx(ctx)
	count, err := c.store.CountActiveParticipants(opCtx, code)
	cancel()
	if err != nil {
		return nil, storeErr(err)
	}
	result.ActiveCount = int(count)

	// Анонс только после того, как запись в хранилище закоммичена: порядок
	// joined -> left для одного участника никогда не нарушается
	c.presence.NotifyParticipantJoined(code, participant, result.ActiveCount)

	return result, nil
}

// classifyRejectedJoin выясняет, почему условная вставка не прошла.
// Повторный вход еще активного участника — идемпотентный успех.
func (c *Coordinator) classifyRejectedJoin(ctx context.Context, code string, userID uuid.UUID) (*JoinResult, error) {
	opCtx, cancel := c.opCtx(ctx)
	meeting, err := c.store.GetMeetingByCode(opCtx, code)
	cancel()
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMeetingNotFound
		}
		return nil, storeErr(err)
	}

	if meeting.Status == models.StatusEnded {
		return nil, ErrMeetingEnded
	}

	for i := range meeting.Participants {
		p := &meeting.Participants[i]
		if p.UserID == userID && p.LeftAt == nil {
			return &JoinResult{
				Meeting:       meeting,
				Participant:   p,
				ActiveCount:   len(meeting.ActiveParticipants()),
				AlreadyActive: true,
			}, nil
		}
	}

	return nil, ErrRoomFull
}

// Leave помечает выход и анонсирует его. Идемпотентна; встречу сама не
// закрывает — пустые активные встречи добивает фоновый свипер.
func (c *Coordinator) Leave(ctx context.Context, code string, userID uuid.UUID) error {
	opCtx, cancel := c.opCtx(ctx)
	left, err := c.store.MarkLeft(opCtx, code, userID)
	cancel()
	if err != nil {
		return storeErr(err)
	}

	c.presence.RemoveUserFromRoom(code, userID)

	if !left {
		// Уже выходил или не входил вовсе
		return nil
	}

	opCtx, cancel = c.opCtx(ctx)
	count, err := c.store.CountActiveParticipants(opCtx, code)
	cancel()
	if err != nil {
		return storeErr(err)
	}

	c.presence.NotifyParticipantLeft(code, userID, int(count))
	return nil
}

// SendChat сохраняет сообщение в журнале и рассылает его комнате.
func (c *Coordinator) SendChat(ctx context.Context, code string, senderID uuid.UUID, body string) (*models.Message, error) {
	opCtx, cancel := c.opCtx(ctx)
	meeting, err := c.store.GetMeetingByCode(opCtx, code)
	cancel()
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMeetingNotFound
		}
		return nil, storeErr(err)
	}

	if meeting.Status == models.StatusEnded {
		return nil, ErrMeetingEnded
	}
	if !meeting.Settings.AllowChat {
		return nil, ErrChatDisabled
	}

	var senderName string
	for _, p := range meeting.Participants {
		if p.UserID == senderID && p.LeftAt == nil {
			senderName = p.DisplayName
			break
		}
	}
	if senderName == "" {
		return nil, ErrNotParticipant
	}

	opCtx, cancel = c.opCtx(ctx)
	msg, err := c.store.AppendMessage(opCtx, code, senderID, body)
	cancel()
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMeetingNotFound
		}
		return nil, storeErr(err)
	}

	// Рассылка после коммита: всем доставляется в порядке sequence
	c.presence.NotifyChatMessage(code, msg, senderName)
	return msg, nil
}

// History отдает сообщения с sequence > since участнику встречи
// (хост имеет доступ всегда, в том числе после закрытия).
func (c *Coordinator) History(ctx context.Context, code string, userID uuid.UUID, since int64, limit int) ([]models.Message, error) {
	opCtx, cancel := c.opCtx(ctx)
	meeting, err := c.store.GetMeetingByCode(opCtx, code)
	cancel()
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMeetingNotFound
		}
		return nil, storeErr(err)
	}

	allowed := meeting.IsHost(userID)
	if !allowed {
		for _, p := range meeting.Participants {
			if p.UserID == userID {
				allowed = true
				break
			}
		}
	}
	if !allowed {
		return nil, ErrNotParticipant
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	opCtx, cancel = c.opCtx(ctx)
	defer cancel()
	messages, err := c.store.GetMessagesSince(opCtx, code, since, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	return messages, nil
}

// JoinInfo — публичная витрина встречи: ни пароля, ни состава.
type JoinInfo struct {
	Title               string `json:"title"`
	Status              string `json:"status"`
	MaxParticipants     int    `json:"max_participants"`
	CurrentParticipants int    `json:"current_participants"`
	RequiresPassword    bool   `json:"requires_password"`
	IsJoinable          bool   `json:"is_joinable"`
	IsFull              bool   `json:"is_full"`
}

func (c *Coordinator) GetJoinInfo(ctx context.Context, code string) (*JoinInfo, error) {
	opCtx, cancel := c.opCtx(ctx)
	defer cancel()
	meeting, err := c.store.GetMeetingByCode(opCtx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMeetingNotFound
		}
		return nil, storeErr(err)
	}

	active := len(meeting.ActiveParticipants())
	full := active >= meeting.Settings.MaxParticipants
	return &JoinInfo{
		Title:               meeting.Title,
		Status:              meeting.Status,
		MaxParticipants:     meeting.Settings.MaxParticipants,
		CurrentParticipants: active,
		RequiresPassword:    meeting.RequiresPassword(),
		IsJoinable:          meeting.Status != models.StatusEnded && !full,
		IsFull:              full,
	}, nil
}

// ActiveMeetings возвращает встречи в статусе active — для дашбордов.
func (c *Coordinator) ActiveMeetings(ctx context.Context) ([]models.Meeting, error) {
	opCtx, cancel := c.opCtx(ctx)
	defer cancel()
	meetings, err := c.store.FindActiveMeetings(opCtx)
	if err != nil {
		return nil, storeErr(err)
	}
	return meetings, nil
}

// UpdateSettings — операция хоста.
func (c *Coordinator) UpdateSettings(ctx context.Context, code string, callerID uuid.UUID, settings models.MeetingSettings) error {
	opCtx, cancel := c.opCtx(ctx)
	meeting, err := c.store.GetMeetingByCode(opCtx, code)
	cancel()
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMeetingNotFound
		}
		return storeErr(err)
	}

	if !meeting.IsHost(callerID) {
		return ErrForbidden
	}
	if meeting.Status == models.StatusEnded {
		return ErrMeetingEnded
	}
	if settings.MaxParticipants <= 0 {
		settings.MaxParticipants = meeting.Settings.MaxParticipants
	}

	opCtx, cancel = c.opCtx(ctx)
	defer cancel()
	if err := c.store.UpdateMeetingSettings(opCtx, code, settings); err != nil {
		return storeErr(err)
	}
	return nil
}

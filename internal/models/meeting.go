package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы жизненного цикла встречи
const (
	StatusScheduled = "scheduled"
	StatusActive    = "active"
	StatusEnded     = "ended"
)

// MeetingSettings хранится встроенной частью записи встречи
type MeetingSettings struct {
	MaxParticipants  int  `json:"max_participants"`
	IsPublic         bool `json:"is_public"`
	RequireApproval  bool `json:"require_approval"`
	AllowChat        bool `json:"allow_chat"`
	AllowScreenShare bool `json:"allow_screen_share"`
	AllowRecording   bool `json:"allow_recording"`
	MuteOnEntry      bool `json:"mute_on_entry"`
}

type Meeting struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Code        string    `gorm:"uniqueIndex;not null"` // внешний короткий идентификатор
	Title       string    `gorm:"not null"`
	Description string
	HostUserID  uuid.UUID       `gorm:"not null"`
	Status      string          `gorm:"not null;default:'scheduled';check:status IN ('scheduled','active','ended')"`
	Settings    MeetingSettings `gorm:"embedded;embeddedPrefix:settings_"`

	// bcrypt-хеш; пустая строка = вход без пароля
	PasswordHash string

	// Счетчик для нумерации сообщений чата
	LastSequence int64 `gorm:"not null;default:0"`

	// Инкрементируется при каждом допуске, заодно блокирует строку встречи
	Version int64 `gorm:"not null;default:0"`

	ScheduledStartTime *time.Time
	ActualStartTime    *time.Time
	EndedAt            *time.Time
	LastActivityAt     time.Time
	CreatedAt          time.Time

	// Связи
	Participants []Participant `gorm:"foreignKey:MeetingID"`
}

// RequiresPassword сообщает, закрыта ли встреча паролем
func (m *Meeting) RequiresPassword() bool {
	return m.PasswordHash != ""
}

// ActiveParticipants возвращает участников без отметки о выходе
func (m *Meeting) ActiveParticipants() []Participant {
	active := make([]Participant, 0, len(m.Participants))
	for _, p := range m.Participants {
		if p.LeftAt == nil {
			active = append(active, p)
		}
	}
	return active
}

// IsHost — единственная проверка прав в системе
func (m *Meeting) IsHost(userID uuid.UUID) bool {
	return m.HostUserID == userID
}

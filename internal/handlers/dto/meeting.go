package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/meetlite/internal/models"
)

type ParticipantInfo struct {
	UserID      uuid.UUID  `json:"user_id"`
	DisplayName string     `json:"display_name"`
	IsHost      bool       `json:"is_host"`
	JoinedAt    time.Time  `json:"joined_at"`
	LeftAt      *time.Time `json:"left_at,omitempty"`
}

// MeetingResponse — снимок встречи для участника. Хеш пароля наружу
// не выходит никогда.
type MeetingResponse struct {
	Code               string                 `json:"code"`
	Title              string                 `json:"title"`
	Description        string                 `json:"description,omitempty"`
	HostUserID         uuid.UUID              `json:"host_user_id"`
	Status             string                 `json:"status"`
	Settings           models.MeetingSettings `json:"settings"`
	ScheduledStartTime *time.Time             `json:"scheduled_start_time,omitempty"`
	ActualStartTime    *time.Time             `json:"actual_start_time,omitempty"`
	EndedAt            *time.Time             `json:"ended_at,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	Participants       []ParticipantInfo      `json:"participants"`
}

func NewMeetingResponse(m *models.Meeting) MeetingResponse {
	participants := make([]ParticipantInfo, len(m.Participants))
	for i, p := range m.Participants {
		participants[i] = ParticipantInfo{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			IsHost:      m.IsHost(p.UserID),
			JoinedAt:    p.JoinedAt,
			LeftAt:      p.LeftAt,
		}
	}
	return MeetingResponse{
		Code:               m.Code,
		Title:              m.Title,
		Description:        m.Description,
		HostUserID:         m.HostUserID,
		Status:             m.Status,
		Settings:           m.Settings,
		ScheduledStartTime: m.ScheduledStartTime,
		ActualStartTime:    m.ActualStartTime,
		EndedAt:            m.EndedAt,
		CreatedAt:          m.CreatedAt,
		Participants:       participants,
	}
}

type JoinResponse struct {
	Meeting          MeetingResponse `json:"meeting"`
	RoomCode         string          `json:"room_code"`
	ParticipantCount int             `json:"participant_count"`
	AlreadyActive    bool            `json:"already_active,omitempty"`
}

package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/meetlite/internal/models"
)

type MessageResponse struct {
	ID       uuid.UUID `json:"id"`
	SenderID uuid.UUID `json:"sender_id"`
	Body     string    `json:"body"`
	Sequence int64     `json:"sequence"`
	SentAt   time.Time `json:"sent_at"`
}

func NewMessageResponse(m *models.Message) MessageResponse {
	return MessageResponse{
		ID:       m.ID,
		SenderID: m.SenderID,
		Body:     m.Body,
		Sequence: m.Sequence,
		SentAt:   m.SentAt,
	}
}

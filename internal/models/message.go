package models

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	MeetingID uuid.UUID `gorm:"not null;uniqueIndex:idx_messages_meeting_seq"`
	SenderID  uuid.UUID `gorm:"not null"`
	Body      string    `gorm:"not null"`
	Sequence  int64     `gorm:"not null;uniqueIndex:idx_messages_meeting_seq"`
	SentAt    time.Time
}

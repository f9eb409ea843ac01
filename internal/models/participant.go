package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant — одна запись посещения. При выходе строка не удаляется,
// а получает LeftAt, история состава сохраняется.
type Participant struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	MeetingID   uuid.UUID `gorm:"not null;index"`
	UserID      uuid.UUID `gorm:"not null;index"`
	DisplayName string    `gorm:"not null"`
	Email       string
	JoinedAt    time.Time
	LeftAt      *time.Time
}

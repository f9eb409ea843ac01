package database

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/thereayou/meetlite/internal/models"
	"gorm.io/gorm"
)

// Тесты хранилища гоняются на sqlite, поэтому весь SQL в этом пакете
// обязан оставаться переносимым между ним и Postgres.
func newTestDB(t *testing.T) *Database {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	// Одно соединение, иначе каждый коннект пула получит свою :memory: базу
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.Meeting{}, &models.Participant{}, &models.Message{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return NewDatabase(db)
}

func newTestMeeting(code string, maxParticipants int) *models.Meeting {
	return &models.Meeting{
		ID:         uuid.New(),
		Code:       code,
		Title:      "standup",
		HostUserID: uuid.New(),
		Status:     models.StatusScheduled,
		Settings: models.MeetingSettings{
			MaxParticipants: maxParticipants,
			IsPublic:        true,
			AllowChat:       true,
		},
		LastActivityAt: time.Now(),
	}
}

func mustCreateMeeting(t *testing.T, d *Database, code string, maxParticipants int) *models.Meeting {
	t.Helper()
	meeting := newTestMeeting(code, maxParticipants)
	if err := d.CreateMeeting(context.Background(), meeting); err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}
	return meeting
}

func mustAddParticipant(t *testing.T, d *Database, code string, userID uuid.UUID) *models.Participant {
	t.Helper()
	p := &models.Participant{UserID: userID, DisplayName: "user-" + userID.String()[:8]}
	added, err := d.TryAddParticipant(context.Background(), code, p)
	if err != nil {
		t.Fatalf("TryAddParticipant: %v", err)
	}
	if !added {
		t.Fatalf("expected participant %s to be admitted", userID)
	}
	return p
}

package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/meetlite/internal/models"
	"gorm.io/gorm"
)

func (d *Database) CreateMeeting(ctx context.Context, meeting *models.Meeting) error {
	if meeting.ID == uuid.Nil {
		meeting.ID = uuid.New()
	}
	return d.db.WithContext(ctx).Create(meeting).Error
}

func (d *Database) GetMeetingByCode(ctx context.Context, code string) (*models.Meeting, error) {
	var meeting models.Meeting
	err := d.db.WithContext(ctx).
		Preload("Participants").
		First(&meeting, "code = ?", code).Error
	if err != nil {
		return nil, err
	}
	return &meeting, nil
}

func (d *Database) MeetingCodeTaken(ctx context.Context, code string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).
		Model(&models.Meeting{}).
		Where("code = ?", code).
		Count(&count).Error
	return count > 0, err
}

// TryAddParticipant — атомарный допуск. Проверка статуса, лимита и повторного
// входа и сама вставка происходят одной условной записью; раздельное
// "посчитали — проверили — сохранили" здесь запрещено, иначе два
// одновременных Join оба увидят count < max и оба пройдут.
//
// Возвращает false без ошибки, если вставка не прошла; причину (нет встречи,
// закрыта, полна, уже внутри) выясняет вызывающий повторным чтением.
func (d *Database) TryAddParticipant(ctx context.Context, code string, p *models.Participant) (bool, error) {
	added := false
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Инкремент версии берет блокировку строки встречи, поэтому допуски
		// в одну встречу сериализуются, а разные встречи не мешают друг другу
		touch := tx.Model(&models.Meeting{}).
			Where("code = ? AND status IN ?", code, []string{models.StatusScheduled, models.StatusActive}).
			Updates(map[string]interface{}{
				"version":          gorm.Expr("version + 1"),
				"last_activity_at": time.Now(),
			})
		if touch.Error != nil {
			return touch.Error
		}
		if touch.RowsAffected == 0 {
			// Встречи нет или она уже закрыта
			return nil
		}

		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if p.JoinedAt.IsZero() {
			p.JoinedAt = time.Now()
		}

		res := tx.Exec(`
INSERT INTO participants (id, meeting_id, user_id, display_name, email, joined_at)
SELECT ?, m.id, ?, ?, ?, ?
FROM meetings m
WHERE m.code = ?
  AND m.status IN ('scheduled','active')
  AND (SELECT COUNT(*) FROM participants ap
         WHERE ap.meeting_id = m.id AND ap.left_at IS NULL) < m.settings_max_participants
  AND NOT EXISTS (SELECT 1 FROM participants sp
         WHERE sp.meeting_id = m.id AND sp.user_id = ? AND sp.left_at IS NULL)`,
			p.ID, p.UserID, p.DisplayName, p.Email, p.JoinedAt, code, p.UserID)
		if res.Error != nil {
			return res.Error
		}

		added = res.RowsAffected == 1
		return nil
	})
	return added, err
}

// MarkLeft проставляет выход активному участнику. Идемпотентна: повторный
// вызов или выход никогда не входившего — no-op.
func (d *Database) MarkLeft(ctx context.Context, code string, userID uuid.UUID) (bool, error) {
	now := time.Now()
	res := d.db.WithContext(ctx).Exec(`
UPDATE participants SET left_at = ?
WHERE left_at IS NULL AND user_id = ?
  AND meeting_id = (SELECT id FROM meetings WHERE code = ?)`,
		now, userID, code)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		d.db.WithContext(ctx).Model(&models.Meeting{}).
			Where("code = ?", code).
			Update("last_activity_at", now)
	}
	return res.RowsAffected > 0, nil
}

// ActivateMeeting переводит scheduled -> active. Проигравший гонку получает
// false и считает это успехом.
func (d *Database) ActivateMeeting(ctx context.Context, code string) (bool, error) {
	res := d.db.WithContext(ctx).Model(&models.Meeting{}).
		Where("code = ? AND status = ?", code, models.StatusScheduled).
		Updates(map[string]interface{}{
			"status":            models.StatusActive,
			"actual_start_time": time.Now(),
			"last_activity_at":  time.Now(),
		})
	return res.RowsAffected > 0, res.Error
}

// EndMeeting — терминальный переход. Сам переход — одна условная запись,
// поэтому хост и свипер могут закрывать встречу наперегонки без последствий.
// Оставшиеся активные участники принудительно помечаются вышедшими.
func (d *Database) EndMeeting(ctx context.Context, code string) (bool, error) {
	ended := false
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.Meeting{}).
			Where("code = ? AND status IN ?", code, []string{models.StatusScheduled, models.StatusActive}).
			Updates(map[string]interface{}{
				"status":   models.StatusEnded,
				"ended_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		ended = true

		return tx.Exec(`
UPDATE participants SET left_at = ?
WHERE left_at IS NULL
  AND meeting_id = (SELECT id FROM meetings WHERE code = ?)`,
			now, code).Error
	})
	return ended, err
}

func (d *Database) UpdateMeetingSettings(ctx context.Context, code string, settings models.MeetingSettings) error {
	return d.db.WithContext(ctx).Model(&models.Meeting{}).
		Where("code = ?", code).
		Updates(map[string]interface{}{
			"settings_max_participants":   settings.MaxParticipants,
			"settings_is_public":          settings.IsPublic,
			"settings_require_approval":   settings.RequireApproval,
			"settings_allow_chat":         settings.AllowChat,
			"settings_allow_screen_share": settings.AllowScreenShare,
			"settings_allow_recording":    settings.AllowRecording,
			"settings_mute_on_entry":      settings.MuteOnEntry,
		}).Error
}

func (d *Database) CountActiveParticipants(ctx context.Context, code string) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.Participant{}).
		Where("left_at IS NULL AND meeting_id = (?)",
			d.db.Model(&models.Meeting{}).Select("id").Where("code = ?", code)).
		Count(&count).Error
	return count, err
}

func (d *Database) FindActiveMeetings(ctx context.Context) ([]models.Meeting, error) {
	var meetings []models.Meeting
	err := d.db.WithContext(ctx).
		Where("status = ?", models.StatusActive).
		Find(&meetings).Error
	return meetings, err
}

// FindIdleActiveMeetings возвращает активные встречи без единого активного
// участника, в которых ничего не происходило с emptySince. Кандидаты на
// закрытие для фонового свипера.
func (d *Database) FindIdleActiveMeetings(ctx context.Context, emptySince time.Time) ([]models.Meeting, error) {
	var meetings []models.Meeting
	err := d.db.WithContext(ctx).
		Where(`status = ? AND last_activity_at < ?
  AND NOT EXISTS (SELECT 1 FROM participants p
         WHERE p.meeting_id = meetings.id AND p.left_at IS NULL)`,
			models.StatusActive, emptySince).
		Find(&meetings).Error
	return meetings, err
}

package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/meetlite/internal/models"
	"gorm.io/gorm"
)

// AppendMessage выдает сообщению следующий sequence встречи и сохраняет его.
// Инкремент счетчика и вставка идут в одной транзакции, поэтому нумерация
// внутри встречи монотонная и без дыр.
func (d *Database) AppendMessage(ctx context.Context, code string, senderID uuid.UUID, body string) (*models.Message, error) {
	var msg *models.Message
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Meeting{}).
			Where("code = ?", code).
			Updates(map[string]interface{}{
				"last_sequence":    gorm.Expr("last_sequence + 1"),
				"last_activity_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		var meeting models.Meeting
		if err := tx.Select("id", "last_sequence").
			First(&meeting, "code = ?", code).Error; err != nil {
			return err
		}

		msg = &models.Message{
			ID:        uuid.New(),
			MeetingID: meeting.ID,
			SenderID:  senderID,
			Body:      body,
			Sequence:  meeting.LastSequence,
			SentAt:    time.Now(),
		}
		return tx.Create(msg).Error
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// GetMessagesSince возвращает сообщения встречи с sequence > since,
// по возрастанию. История живет независимо от статуса встречи.
func (d *Database) GetMessagesSince(ctx context.Context, code string, since int64, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := d.db.WithContext(ctx).
		Where("sequence > ? AND meeting_id = (?)",
			since, d.db.Model(&models.Meeting{}).Select("id").Where("code = ?", code)).
		Order("sequence ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

package coordinator

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/meetlite/internal/models"
	"gorm.io/gorm"
)

// End — явное закрытие встречи хостом. Переход статуса — одна условная
// запись в хранилище, поэтому параллельный свипер или повторный клик хоста
// превращаются в no-op, а не в ошибку.
func (c *Coordinator) End(ctx context.Context, code string, callerID uuid.UUID) error {
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
		// Уже закрыта — идемпотентный успех
		return nil
	}

	return c.endMeeting(ctx, code)
}

func (c *Coordinator) endMeeting(ctx context.Context, code string) error {
	opCtx, cancel := c.opCtx(ctx)
	ended, err := c.store.EndMeeting(opCtx, code)
	cancel()
	if err != nil {
		return storeErr(err)
	}

	if ended {
		// Живые соединения получают meeting-ended и закрываются
		c.presence.CloseRoom(code)
	}
	return nil
}

// RunIdleSweep — фоновый цикл, закрывающий активные встречи, простоявшие
// пустыми дольше grace-периода. Ловит негромкие отключения, которые не
// дошли до Leave. Останавливается отменой ctx.
func (c *Coordinator) RunIdleSweep(ctx context.Context, interval, grace time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweepOnce(ctx, grace)
		}
	}
}

func (c *Coordinator) sweepOnce(ctx context.Context, grace time.Duration) {
	opCtx, cancel := c.opCtx(ctx)
	idle, err := c.store.FindIdleActiveMeetings(opCtx, time.Now().Add(-grace))
	cancel()
	if err != nil {
		log.Printf("idle sweep: query failed: %v", err)
		return
	}

	for _, meeting := range idle {
		if err := c.endMeeting(ctx, meeting.Code); err != nil {
			log.Printf("idle sweep: failed to end %s: %v", meeting.Code, err)
			continue
		}
		log.Printf("idle sweep: ended empty meeting %s", meeting.Code)
	}
}

package coordinator

import "errors"

// Таксономия ошибок допуска и жизненного цикла. Все они — результат решения,
// который вызывающий обязан увидеть, поэтому наружу отдаются синхронно.
var (
	ErrMeetingNotFound     = errors.New("meeting not found")
	ErrMeetingEnded        = errors.New("meeting already ended")
	ErrWrongPassword       = errors.New("wrong room password")
	ErrRoomFull            = errors.New("room is full")
	ErrForbidden           = errors.New("host-only action")
	ErrChatDisabled        = errors.New("chat is disabled for this meeting")
	ErrNotParticipant      = errors.New("user is not a participant of this meeting")
	ErrAllocationExhausted = errors.New("could not allocate a free meeting code")
	ErrUnavailable         = errors.New("store temporarily unavailable")
)

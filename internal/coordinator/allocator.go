package coordinator

import (
	"context"

	"github.com/thereayou/meetlite/pkg/roomcode"
)

// allocateCode подбирает свободный код встречи. Пространство кодов огромно
// относительно числа живых встреч, так что коллизии редки; лимит попыток
// нужен только чтобы падать быстро, а не крутиться вечно.
func (c *Coordinator) allocateCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < c.codeAttempts; attempt++ {
		code, err := roomcode.Generate()
		if err != nil {
			return "", err
		}

		opCtx, cancel := c.opCtx(ctx)
		taken, err := c.store.MeetingCodeTaken(opCtx, code)
		cancel()
		if err != nil {
			return "", storeErr(err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrAllocationExhausted
}

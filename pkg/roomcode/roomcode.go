package roomcode

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Алфавит без неоднозначных символов (0/O, 1/I/L)
const alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// Length — длина внешнего кода встречи
const Length = 8

// Generate возвращает случайный код встречи фиксированной длины
func Generate() (string, error) {
	buf := make([]byte, Length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("roomcode: %w", err)
	}

	var b strings.Builder
	b.Grow(Length)
	for _, c := range buf {
		b.WriteByte(alphabet[int(c)%len(alphabet)])
	}
	return b.String(), nil
}

// Normalize приводит пользовательский ввод к каноническому виду
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid проверяет, что строка похожа на код встречи
func Valid(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(alphabet, rune(code[i])) {
			return false
		}
	}
	return true
}

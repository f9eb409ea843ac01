package roomcode

import (
	"strings"
	"testing"
)

func TestGenerateLengthAndAlphabet(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := Generate()
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if len(code) != Length {
			t.Fatalf("expected length %d, got %d (%q)", Length, len(code), code)
		}
		for _, c := range code {
			if !strings.ContainsRune(alphabet, c) {
				t.Fatalf("character %q not in alphabet (%q)", c, code)
			}
		}
	}
}

func TestGenerateNotConstant(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := Generate()
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Fatal("Generate returned the same code 50 times")
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  ab2cdefg "); got != "AB2CDEFG" {
		t.Fatalf("Normalize: got %q", got)
	}
}

func TestValid(t *testing.T) {
	cases := []struct {
		code string
		want bool
	}{
		{"ABCDEFGH", true},
		{"AB234567", true},
		{"abcdefgh", false}, // нижний регистр не канонический
		{"ABCDEFG", false},  // короткий
		{"ABCDEFGH2", false},
		{"ABCDEFG0", false}, // 0 нет в алфавите
		{"ABCDEFG1", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := Valid(tc.code); got != tc.want {
			t.Errorf("Valid(%q) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

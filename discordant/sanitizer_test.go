package discordant

import (
	"strings"
	"testing"
)

func TestSanitizeContent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"обычный текст", "Привет, мир!", "Привет, мир!"},
		{"перевод строки сохраняется", "строка1\nстрока2", "строка1\nстрока2"},
		{"табуляция сохраняется", "a\tb", "a\tb"},
		{"управляющие символы вырезаются", "при\x00вет\x07", "привет"},
		{"DEL вырезается", "a\x7fb", "ab"},
		{"пробелы по краям обрезаются", "  текст  ", "текст"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeContent(tt.in); got != tt.want {
				t.Errorf("sanitizeContent(%q) = %q, ожидали %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeContentTruncates(t *testing.T) {
	long := strings.Repeat("я", maxContentLength+100)
	got := sanitizeContent(long)

	runes := []rune(got)
	if len(runes) != maxContentLength {
		t.Fatalf("длина после обрезки %d, ожидали %d", len(runes), maxContentLength)
	}
	if runes[len(runes)-1] != '…' {
		t.Error("обрезанный текст должен заканчиваться многоточием")
	}
}

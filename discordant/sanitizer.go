// Package discordant — чистка исходящего контента перед отправкой.
package discordant

import "strings"

// maxContentLength — предел длины одного сообщения на стороне Discordant.
const maxContentLength = 2000

// sanitizeContent убирает управляющие символы (кроме перевода строки и
// табуляции) и обрезает слишком длинный текст, чтобы внешний бэкенд не
// отверг сообщение целиком.
func sanitizeContent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}

	clean := strings.TrimSpace(b.String())
	runes := []rune(clean)
	if len(runes) > maxContentLength {
		clean = string(runes[:maxContentLength-1]) + "…"
	}
	return clean
}

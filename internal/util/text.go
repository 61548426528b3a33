package util

import "strings"

// SanitizePostgresText drops invalid UTF-8 and NUL bytes, which text
// columns reject. Error messages stored on sampling jobs go through here.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

// Truncate shortens value to at most n bytes without splitting a rune.
func Truncate(value string, n int) string {
	if len(value) <= n {
		return value
	}
	for n > 0 && !isRuneStart(value[n]) {
		n--
	}
	return value[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

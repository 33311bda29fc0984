package utils

import (
	"time"
	"unicode/utf8"
)

// LoadLocation resolves an IANA zone name for user-facing timestamps
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		// Fallback to UTC if timezone data is missing
		// In production docker, ensure tzdata is installed
		return time.UTC
	}
	return loc
}

// FormatLocal renders t in loc the way notifications show it
func FormatLocal(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01-02 15:04:05 MST")
}

// TruncateRunes cuts s to at most n characters without splitting a UTF-8 sequence
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

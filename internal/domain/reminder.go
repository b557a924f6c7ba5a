package domain

import "time"

// MinuteLayout is the persisted form of Reminder.RemindAt. Lexical order of
// formatted values matches chronological order.
const MinuteLayout = "2006-01-02 15:04"

// Reminder is a pending one-shot notification.
type Reminder struct {
	ID        int64
	ChatID    int64
	Text      string
	RemindAt  time.Time // UTC, minute precision
	CreatedAt time.Time // UTC
}

// FormatMinute renders t in UTC using MinuteLayout.
func FormatMinute(t time.Time) string {
	return t.UTC().Format(MinuteLayout)
}

// ParseMinute parses a MinuteLayout value as UTC.
func ParseMinute(s string) (time.Time, error) {
	return time.ParseInLocation(MinuteLayout, s, time.UTC)
}

// TruncateMinute returns t in UTC with seconds and below dropped.
func TruncateMinute(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}

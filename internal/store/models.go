package store

import (
	"time"

	"github.com/ykvlv/reminder-bot/internal/domain"
)

// createdLayout is the persisted form of created_at columns.
const createdLayout = "2006-01-02 15:04:05"

func formatCreated(t time.Time) string {
	return t.UTC().Format(createdLayout)
}

func parseCreated(s string) time.Time {
	t, err := time.ParseInLocation(createdLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

// reminderRow is the textual shape shared by the SQL backends.
type reminderRow struct {
	id        int64
	chatID    int64
	text      string
	remindAt  string
	createdAt string
}

func (r reminderRow) toDomain() (domain.Reminder, error) {
	at, err := domain.ParseMinute(r.remindAt)
	if err != nil {
		return domain.Reminder{}, err
	}
	return domain.Reminder{
		ID:        r.id,
		ChatID:    r.chatID,
		Text:      r.text,
		RemindAt:  at,
		CreatedAt: parseCreated(r.createdAt),
	}, nil
}

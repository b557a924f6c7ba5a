package domain

import "time"

// User is a recipient that has contacted the bot at least once.
type User struct {
	ChatID    int64
	CreatedAt time.Time // UTC
}

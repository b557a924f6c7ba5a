package telegram

import "github.com/ykvlv/reminder-bot/internal/domain"

// Texts are the user-facing strings of one locale.
type Texts struct {
	Start         string // %d is replaced with the chat id
	Info          string
	ReminderTitle string
}

var textsByLocale = map[string]Texts{
	domain.LocaleRU: {
		Start: "✅ Привет! Я бот-напоминалка.\n\n" +
			"Теперь ты можешь отправлять мне напоминания из приложения.\n" +
			"Пример: «Позвонить маме завтра в 15:00»\n\n" +
			"Твой chat id: %d",
		Info:          "ℹ️ Я принимаю напоминания только из приложения. Нажми /start, чтобы подключиться.",
		ReminderTitle: "🔔 Напоминание:",
	},
	domain.LocaleEN: {
		Start: "✅ Hi! I am a reminder bot.\n\n" +
			"You can now send me reminders from the app.\n" +
			"Example: “Call mom tomorrow at 15:00”\n\n" +
			"Your chat id: %d",
		Info:          "ℹ️ I only accept reminders from the app. Send /start to connect.",
		ReminderTitle: "🔔 Reminder:",
	},
}

// TextsFor returns the texts of locale, falling back to Russian.
func TextsFor(locale string) Texts {
	if t, ok := textsByLocale[locale]; ok {
		return t
	}
	return textsByLocale[domain.LocaleRU]
}

package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
)

// Supported extractor locales.
const (
	LocaleRU = "ru"
	LocaleEN = "en"
)

var languages = map[string]func() *language{
	LocaleRU: newRussian,
	LocaleEN: newEnglish,
}

// Extractor resolves natural-language date/time expressions of one locale.
// It is safe for concurrent use.
type Extractor struct {
	lang   *language
	parser *when.Parser
}

// NewExtractor builds an extractor for the given locale ("ru" or "en").
func NewExtractor(locale string) (*Extractor, error) {
	locale = strings.ToLower(strings.TrimSpace(locale))
	build, ok := languages[locale]
	if !ok {
		return nil, fmt.Errorf("unsupported locale %q", locale)
	}
	lang := build()
	p := when.New(nil)
	p.Add(lang.rules...)
	return &Extractor{lang: lang, parser: p}, nil
}

// Hint returns an example input in the extractor's locale.
func (e *Extractor) Hint() string { return e.lang.hint }

// Extract finds the date/time expression in raw and resolves it against now.
// The result is UTC, truncated to the minute and never earlier than the
// minute of now. A clock time without an explicit day that already passed
// today moves to tomorrow; anything else in the past is rejected, as is text
// carrying a second date or time outside the recognized fragment.
func (e *Extractor) Extract(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrNotRecognized
	}
	base := now.UTC()

	res, err := e.parser.Parse(raw, base)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrNotRecognized, err)
	}
	if res == nil {
		return time.Time{}, ErrNotRecognized
	}
	if rest := raw[:res.Index] + " " + raw[res.Index+len(res.Text):]; e.lang.stray.MatchString(rest) {
		return time.Time{}, fmt.Errorf("%w: more than one date/time in %q", ErrNotRecognized, raw)
	}

	floor := TruncateMinute(base)
	at := TruncateMinute(res.Time)
	if at.Before(floor) && floor.Sub(at) < 24*time.Hour && !e.lang.anchored.MatchString(res.Text) {
		at = at.AddDate(0, 0, 1)
	}
	if at.Before(floor) {
		return time.Time{}, fmt.Errorf("%w: %q resolves to the past (%s)", ErrNotRecognized, res.Text, FormatMinute(at))
	}
	return at, nil
}

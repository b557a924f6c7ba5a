package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when/rules"
	"github.com/olebedev/when/rules/en"
	"github.com/olebedev/when/rules/ru"
)

var ruMonths = map[string]int{
	"январь": 1, "января": 1, "янв": 1,
	"февраль": 2, "февраля": 2, "фев": 2,
	"март": 3, "марта": 3, "мар": 3,
	"апрель": 4, "апреля": 4, "апр": 4,
	"май": 5, "мая": 5,
	"июнь": 6, "июня": 6, "июн": 6,
	"июль": 7, "июля": 7, "июл": 7,
	"август": 8, "августа": 8, "авг": 8,
	"сентябрь": 9, "сентября": 9, "сен": 9, "сент": 9,
	"октябрь": 10, "октября": 10, "окт": 10,
	"ноябрь": 11, "ноября": 11, "ноя": 11, "нояб": 11,
	"декабрь": 12, "декабря": 12, "дек": 12,
}

var (
	ruMeridiem = map[string]bool{"утра": false, "ночи": false, "дня": true, "вечера": true}
	enMeridiem = map[string]bool{"am": false, "a.m.": false, "pm": true, "p.m.": true}
)

const (
	dayPattern   = `(0?[1-9]|[12]\d|3[01])`
	monthPattern = `(0[1-9]|1[0-2])`
	// numericDatePattern is dd.mm, dd.mm.yy or dd.mm.yyyy ("/" works too).
	numericDatePattern = dayPattern + `[./]` + monthPattern + `(?:[./](\d{4}|\d{2}))?`
	isoDatePattern     = `(\d{4})-` + monthPattern + `-` + dayPattern
	clockPattern       = `([01]?\d|2[0-3]):([0-5]\d)`
)

// language bundles the rule set of a locale with the patterns Extract uses
// to judge a match: anchored marks fragments that name a day explicitly,
// stray finds date/time expressions left outside the matched fragment.
type language struct {
	rules    []rules.Rule
	anchored *regexp.Regexp
	stray    *regexp.Regexp
	hint     string
}

func newRussian() *language {
	months := alternation(ruMonths)
	days := `сегодня|завтра|послезавтра|вчера|сейчас`
	return &language{
		rules: []rules.Rule{
			ru.Weekday(rules.Override),
			ru.CasualDate(rules.Override),
			ru.CasualTime(rules.Override),
			ru.Hour(rules.Override),
			ru.Deadline(rules.Override),
			clockTime(ruMeridiem),
			dayOffset(`послезавтра`, 2),
			dayMonthDate(months, ruMonths),
			numericDate(),
			isoDate(),
		},
		anchored: regexp.MustCompile(`(?i)` + words(days+`|назад|прошл\p{L}*|последн\p{L}*|следующ\p{L}*|эт\p{L}*|`+
			ru.WEEKDAY_OFFSET_PATTERN+`|`+months) + `|\d[./]\d|\d{4}-\d`),
		stray: strayPattern(days, months, ""),
		hint:  "завтра в 15:00",
	}
}

func newEnglish() *language {
	months := alternation(en.MONTH_OFFSET)
	days := `today|tonight|tomorrow|tmr|yesterday`
	return &language{
		rules: []rules.Rule{
			en.Weekday(rules.Override),
			en.CasualDate(rules.Override),
			en.CasualTime(rules.Override),
			en.Hour(rules.Override),
			en.Deadline(rules.Override),
			en.PastTime(rules.Override),
			clockTime(enMeridiem),
			dayOffset(`day\s+after\s+tomorrow|overmorrow`, 2),
			dayMonthDate(months, en.MONTH_OFFSET),
			monthDayDate(months, en.MONTH_OFFSET),
			numericDate(),
			isoDate(),
		},
		anchored: regexp.MustCompile(`(?i)` + words(days+`|now|ago|last|past|next|this|`+
			en.WEEKDAY_OFFSET_PATTERN+`|`+months) + `|\d[./]\d|\d{4}-\d`),
		stray: strayPattern(days, months, `(?:^|\P{L})`+months+`\.?\s*\d`),
		hint:  "tomorrow at 15:00",
	}
}

// words wraps an alternation in letter boundaries.
func words(alt string) string {
	return `(?:^|\P{L})(?:` + alt + `)(?:\P{L}|$)`
}

func strayPattern(days, months, monthFirst string) *regexp.Regexp {
	alts := []string{
		words(days),
		`\d\s*` + months + `(?:\P{L}|$)`,
		`(?:^|\D)` + clockPattern + `(?:\D|$)`,
		`(?:^|\D)` + numericDatePattern + `(?:\D|$)`,
		isoDatePattern,
	}
	if monthFirst != "" {
		alts = append(alts, monthFirst)
	}
	return regexp.MustCompile(`(?i)` + strings.Join(alts, "|"))
}

// alternation builds a regexp group of the keys, longest first so that
// "марта" wins over "мар".
func alternation[V any](keys map[string]V) string {
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, regexp.QuoteMeta(k))
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return "(?:" + strings.Join(out, "|") + ")"
}

// clockTime matches "15:00", "9:30 pm" and "7:15 вечера". Dotted pairs
// like "10.01" are dates, never clock times.
func clockTime(meridiem map[string]bool) rules.Rule {
	return &rules.F{
		RegExp: regexp.MustCompile(`(?i)(?:^|[^\d:.])` + clockPattern +
			`(?:\s*(` + alternation(meridiem) + `))?(?:[^\p{L}\d:]|$)`),
		Applier: func(m *rules.Match, c *rules.Context, _ *rules.Options, _ time.Time) (bool, error) {
			hour, _ := strconv.Atoi(m.Captures[0])
			minute, _ := strconv.Atoi(m.Captures[1])
			if suffix := strings.ToLower(m.Captures[2]); suffix != "" {
				if hour == 0 || hour > 12 {
					return false, nil
				}
				hour %= 12
				if meridiem[suffix] {
					hour += 12
				}
			}
			c.Hour, c.Minute = &hour, &minute
			return true, nil
		},
	}
}

// dayOffset moves the date a fixed number of days ahead.
func dayOffset(pattern string, days int) rules.Rule {
	return &rules.F{
		RegExp: regexp.MustCompile(`(?i)(?:^|\P{L})(` + pattern + `)(?:\P{L}|$)`),
		Applier: func(_ *rules.Match, c *rules.Context, _ *rules.Options, _ time.Time) (bool, error) {
			c.Duration = time.Duration(days) * 24 * time.Hour
			return true, nil
		},
	}
}

// dayMonthDate matches "5 января", "5 января 2025" and "5th of January".
func dayMonthDate(months string, lookup map[string]int) rules.Rule {
	return &rules.F{
		RegExp: regexp.MustCompile(`(?i)(?:^|[^\p{L}\d.:/])` + dayPattern +
			`(?:st|nd|rd|th|-?го)?(?:\s+of)?\s*(` + months[3:] + `\.?(?:,?\s+(\d{4}))?(?:\P{L}|$)`),
		Applier: func(m *rules.Match, c *rules.Context, _ *rules.Options, ref time.Time) (bool, error) {
			month, ok := lookup[strings.ToLower(m.Captures[1])]
			if !ok {
				return false, nil
			}
			day, _ := strconv.Atoi(m.Captures[0])
			return setDate(c, ref, m.Captures[2], month, day)
		},
	}
}

// monthDayDate matches "January 5" and "Jan. 5th, 2025".
func monthDayDate(months string, lookup map[string]int) rules.Rule {
	return &rules.F{
		RegExp: regexp.MustCompile(`(?i)(?:^|\P{L})(` + months[3:] + `\.?\s*` + dayPattern +
			`(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?(?:[^\p{L}\d:]|$)`),
		Applier: func(m *rules.Match, c *rules.Context, _ *rules.Options, ref time.Time) (bool, error) {
			month, ok := lookup[strings.ToLower(m.Captures[0])]
			if !ok {
				return false, nil
			}
			day, _ := strconv.Atoi(m.Captures[1])
			return setDate(c, ref, m.Captures[2], month, day)
		},
	}
}

// numericDate matches "05.01", "5.01.24" and "05/01/2024" (day first).
func numericDate() rules.Rule {
	return &rules.F{
		RegExp: regexp.MustCompile(`(?:^|[^\d.:/])` + numericDatePattern + `(?:[^\d:/]|$)`),
		Applier: func(m *rules.Match, c *rules.Context, _ *rules.Options, ref time.Time) (bool, error) {
			day, _ := strconv.Atoi(m.Captures[0])
			month, _ := strconv.Atoi(m.Captures[1])
			year := m.Captures[2]
			if len(year) == 2 {
				year = "20" + year
			}
			return setDate(c, ref, year, month, day)
		},
	}
}

// isoDate matches "2024-01-05".
func isoDate() rules.Rule {
	return &rules.F{
		RegExp: regexp.MustCompile(`(?:^|\D)` + isoDatePattern + `(?:\D|$)`),
		Applier: func(m *rules.Match, c *rules.Context, _ *rules.Options, ref time.Time) (bool, error) {
			month, _ := strconv.Atoi(m.Captures[1])
			day, _ := strconv.Atoi(m.Captures[2])
			return setDate(c, ref, m.Captures[0], month, day)
		},
	}
}

// setDate points c at the given calendar day as an offset from ref. Without
// a year the nearest occurrence on or after ref's day is used. A date with
// no time of day resolves to midnight. Impossible dates (31.02) fail the
// whole parse so that a time next to them is not taken alone.
func setDate(c *rules.Context, ref time.Time, year string, month, day int) (bool, error) {
	y := ref.Year()
	if year != "" {
		y, _ = strconv.Atoi(year)
	} else {
		today := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
		if time.Date(y, time.Month(month), day, 0, 0, 0, 0, ref.Location()).Before(today) {
			y++
		}
	}
	target := time.Date(y, time.Month(month), day,
		ref.Hour(), ref.Minute(), ref.Second(), ref.Nanosecond(), ref.Location())
	if target.Year() != y || target.Month() != time.Month(month) || target.Day() != day {
		return false, fmt.Errorf("no such date %02d.%02d.%d", day, month, y)
	}
	c.Duration = target.Sub(ref)
	if c.Hour == nil {
		hour, minute := 0, 0
		c.Hour, c.Minute = &hour, &minute
	}
	return true, nil
}

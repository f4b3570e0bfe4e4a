package triage

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

const (
	// MaxContentRunes bounds a draft title, ellipsis included.
	MaxContentRunes = 120

	// PlaceholderContent titles drafts made from empty text.
	PlaceholderContent = "Task (from chat)"

	ellipsis = "…"
)

// Draft is the extractor output.
type Draft struct {
	Content string     `json:"content"`
	DueAt   *time.Time `json:"due_at,omitempty"`
}

// dayPart is a coarse time-of-day named in text.
type dayPart int

const (
	partMorning dayPart = iota
	partAfternoon
	partEvening
	partNight
)

var dayPartWords = map[string]dayPart{
	"утра": partMorning, "утром": partMorning, "in the morning": partMorning,
	"днём": partAfternoon, "днем": partAfternoon, "in the afternoon": partAfternoon,
	"вечера": partEvening, "вечером": partEvening, "in the evening": partEvening,
	"ночи": partNight, "ночью": partNight, "at night": partNight,
}

// defaultDayPartHours applies when a day-part word has no hour next to it.
var defaultDayPartHours = map[dayPart]int{
	partMorning:   9,
	partAfternoon: 13,
	partEvening:   19,
	partNight:     23,
}

var relativeDayOffsets = map[string]int{
	"сегодня": 0, "today": 0,
	"завтра": 1, "tomorrow": 1,
	"послезавтра": 2, "day after tomorrow": 2,
}

var hourDayPartPattern = regexp.MustCompile(`(?i)(?:^|\D)(\d{1,2})\s*(?:ч\.?\s*|час(?:а|ов)?\s*)?` +
	`(утра|утром|днём|днем|вечера|вечером|ночи|ночью|in the morning|in the afternoon|in the evening|at night)` +
	`(?:$|[^\p{L}])`)

// Extract derives a draft title and an optional due time from text. now
// fixes both the reference instant and the zone of the result.
func Extract(text string, now time.Time) Draft {
	return Draft{
		Content: Content(text),
		DueAt:   DueAt(text, now),
	}
}

// Content returns the first non-empty line of text, trimmed and bounded to
// MaxContentRunes.
func Content(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return PlaceholderContent
	}
	line, _, _ := strings.Cut(trimmed, "\n")
	line = strings.TrimSpace(line)
	if utf8.RuneCountInString(line) > MaxContentRunes {
		return TruncateRunes(line, MaxContentRunes-utf8.RuneCountInString(ellipsis)) + ellipsis
	}
	return line
}

// TruncateRunes cuts s to at most n runes.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// DueAt resolves a relative day and a time of day mentioned in text against
// now. It returns nil when text names neither. The result has minute
// precision and is never earlier than now's minute.
func DueAt(text string, now time.Time) *time.Time {
	offset, hasDay := relativeDay(text)
	hour, minute, hasTime := clockTime(text)
	if !hasTime {
		hour, hasTime = dayPartHour(text)
		minute = 0
	}
	if !hasDay && !hasTime {
		return nil
	}

	loc := now.Location()
	floor := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), 0, 0, loc)

	due := floor
	if hasTime {
		due = time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, loc)
	}
	due = due.AddDate(0, 0, offset)

	if due.Before(floor) {
		due = due.AddDate(0, 0, 1)
	}
	return &due
}

func relativeDay(text string) (int, bool) {
	m := relativeDayPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	offset, ok := relativeDayOffsets[cases.Fold().String(m[1])]
	return offset, ok
}

func clockTime(text string) (int, int, bool) {
	m := clockPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	return h, mm, true
}

// dayPartHour maps "7 вечера" style phrases to an hour. "дня" is left out
// because "3 дня" usually means three days. Evening hours below noon move
// to the afternoon clock; the other parts keep the literal hour.
func dayPartHour(text string) (int, bool) {
	if m := hourDayPartPattern.FindStringSubmatch(text); m != nil {
		h, err := strconv.Atoi(m[1])
		part, known := dayPartWords[cases.Fold().String(m[2])]
		if err == nil && known && h >= 0 && h <= 23 {
			if part == partEvening && h < 12 {
				h += 12
			}
			return h, true
		}
	}
	if m := dayPartPattern.FindStringSubmatch(text); m != nil {
		if part, ok := dayPartWords[cases.Fold().String(m[1])]; ok {
			return defaultDayPartHours[part], true
		}
	}
	return 0, false
}

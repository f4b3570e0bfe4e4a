package triage

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

var msk = time.FixedZone("UTC+3", 3*3600)

func at(y int, mo time.Month, d, h, mi, s int) time.Time {
	return time.Date(y, mo, d, h, mi, s, 0, msk)
}

func TestDueAt(t *testing.T) {
	now := at(2024, 1, 1, 9, 0, 0)

	tests := []struct {
		name string
		text string
		now  time.Time
		want *time.Time
	}{
		{"tomorrow with clock", "завтра в 10:00 созвонимся", now, ptr(at(2024, 1, 2, 10, 0, 0))},
		{"clock already past rolls forward", "в 08:00 важно", now, ptr(at(2024, 1, 2, 8, 0, 0))},
		{"clock later today", "в 18:45 позвони", now, ptr(at(2024, 1, 1, 18, 45, 0))},
		{"day only keeps time of day", "послезавтра", at(2024, 1, 1, 9, 37, 45), ptr(at(2024, 1, 3, 9, 37, 0))},
		{"today only is not in the past", "сегодня", at(2024, 1, 1, 9, 37, 45), ptr(at(2024, 1, 1, 9, 37, 0))},
		{"today with past clock", "сегодня в 08:00", now, ptr(at(2024, 1, 2, 8, 0, 0))},
		{"evening adds twelve", "в 7 вечера", now, ptr(at(2024, 1, 1, 19, 0, 0))},
		{"english evening", "tomorrow at 7 in the evening", now, ptr(at(2024, 1, 2, 19, 0, 0))},
		{"morning literal", "завтра в 8 утра", now, ptr(at(2024, 1, 2, 8, 0, 0))},
		{"night literal rolls", "в 2 ночи", now, ptr(at(2024, 1, 2, 2, 0, 0))},
		{"bare day part", "вечером обсудим", now, ptr(at(2024, 1, 1, 19, 0, 0))},
		{"three days is not a time", "через 3 дня", now, nil},
		{"nothing", "привет", now, nil},
		{"empty", "", now, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DueAt(tt.text, tt.now)
			if tt.want == nil {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.Truef(t, tt.want.Equal(*got), "DueAt() = %v, want %v", *got, *tt.want)
			require.Zero(t, got.Second())
			require.Zero(t, got.Nanosecond())
			_, offset := got.Zone()
			require.Equal(t, 3*3600, offset)
		})
	}
}

func TestDueAt_NeverInPast(t *testing.T) {
	texts := []string{"сегодня", "в 00:00", "в 23:59", "сегодня в 08:00", "today", "at night", "в 2 ночи"}
	for h := 0; h < 24; h++ {
		now := at(2024, 3, 10, h, 30, 59)
		floor := now.Truncate(time.Minute)
		for _, text := range texts {
			due := DueAt(text, now)
			require.NotNil(t, due, text)
			require.Falsef(t, due.Before(floor), "DueAt(%q, %v) = %v is in the past", text, now, *due)
		}
	}
}

func TestContent(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"first line", "  Купить бумагу \nи картриджи", "Купить бумагу"},
		{"leading blank lines", "\n\n  отчёт  ", "отчёт"},
		{"empty", "", PlaceholderContent},
		{"whitespace", "   ", PlaceholderContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Content(tt.text))
		})
	}
}

func TestContent_Ellipsized(t *testing.T) {
	long := strings.Repeat("я", 200)
	got := Content(long)

	require.Equal(t, MaxContentRunes, utf8.RuneCountInString(got))
	require.True(t, strings.HasSuffix(got, "…"))
	require.True(t, strings.HasPrefix(long, strings.TrimSuffix(got, "…")))

	exact := strings.Repeat("x", MaxContentRunes)
	require.Equal(t, exact, Content(exact))
}

func TestExtract(t *testing.T) {
	d := Extract("завтра в 10:00 созвонимся\nс подрядчиком", at(2024, 1, 1, 9, 0, 0))
	require.Equal(t, "завтра в 10:00 созвонимся", d.Content)
	require.NotNil(t, d.DueAt)
	require.True(t, at(2024, 1, 2, 10, 0, 0).Equal(*d.DueAt))
}

func TestTruncateRunes(t *testing.T) {
	require.Equal(t, "при", TruncateRunes("привет", 3))
	require.Equal(t, "hi", TruncateRunes("hi", 10))
	require.Equal(t, "", TruncateRunes("hi", 0))
}

func ptr(t time.Time) *time.Time { return &t }

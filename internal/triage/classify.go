// Package triage holds the pure heuristics that decide whether a chat
// message deserves a task draft and what that draft looks like.
package triage

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Reason tags why a message was (or was not) escalated.
type Reason string

const (
	ReasonEmpty        Reason = "empty"
	ReasonQuestion     Reason = "question"
	ReasonMoney        Reason = "money"
	ReasonDateTime     Reason = "date/time"
	ReasonLong         Reason = "long"
	ReasonVoice        Reason = "voice"
	ReasonNotImportant Reason = "not_important"

	keywordPrefix = "keyword:"
)

// LongMessageRunes is the length from which any message is escalated.
const LongMessageRunes = 280

// KeywordReason builds the reason tag for a keyword hit.
func KeywordReason(word string) Reason {
	return Reason(keywordPrefix + word)
}

// Keyword returns the matched word of a keyword reason.
func (r Reason) Keyword() (string, bool) {
	return strings.CutPrefix(string(r), keywordPrefix)
}

// Verdict is the classifier output.
type Verdict struct {
	Important bool   `json:"important"`
	Reason    Reason `json:"reason"`
}

// Keywords is the ordered substring list for the keyword rule. Entries are
// stems, so "задач" catches задача/задачу/задачи. Earlier entries win.
var Keywords = []string{
	"срочн", "важн", "задач", "дедлайн", "сделать", "сделай", "нужно", "надо",
	"напомн", "проверь", "позвони", "созвон", "встреч", "отправ",
	"купить", "купи", "заказ", "оплат", "оплач", "предоплат", "счёт", "счет", "инвойс",
	"договор", "доставк", "цена", "стоимост",
	"urgent", "asap", "important", "deadline", "task", "todo", "remind",
	"call", "meeting", "invoice", "payment", "pay", "order", "buy",
	"price", "contract", "delivery",
}

var (
	moneyPattern = regexp.MustCompile(`(?i)` +
		`\d[\d\s.,]*\s?(?:₽|\$|€|руб|р\.|rub\b|usd\b|eur\b|долл|dollar|евро|euro|тыс|k\b)` +
		`|(?:₽|\$|€|\brub|\busd|\beur)\s?\d`)

	shortDatePattern = regexp.MustCompile(`\b\d{1,2}[./-]\d{1,2}(?:[./-](?:\d{4}|\d{2}))?\b`)

	clockPattern = regexp.MustCompile(`(?:^|\D)([01]?\d|2[0-3]):([0-5]\d)(?:$|\D)`)

	// Cyrillic letters are not \w in RE2, so word edges are spelled out.
	dayPartPattern = regexp.MustCompile(`(?i)(?:^|[^\p{L}])` +
		`(утром|утра|днём|днем|вечером|вечера|ночью|ночи|in the morning|in the afternoon|in the evening|at night)` +
		`(?:$|[^\p{L}])`)

	relativeDayPattern = regexp.MustCompile(`(?i)(?:^|[^\p{L}])` +
		`(послезавтра|завтра|сегодня|day after tomorrow|tomorrow|today)` +
		`(?:$|[^\p{L}])`)
)

// rule is one step of the ordered classifier table.
type rule struct {
	name  string
	match func(text, folded string) (Reason, bool)
}

// rules run in order; the first match decides the verdict.
var rules = []rule{
	{"question", func(text, _ string) (Reason, bool) {
		return ReasonQuestion, strings.Contains(text, "?")
	}},
	{"money", func(text, _ string) (Reason, bool) {
		return ReasonMoney, moneyPattern.MatchString(text)
	}},
	{"date/time", func(text, _ string) (Reason, bool) {
		return ReasonDateTime, hasDateOrTime(text)
	}},
	{"keyword", func(_, folded string) (Reason, bool) {
		for _, kw := range Keywords {
			if strings.Contains(folded, kw) {
				return KeywordReason(kw), true
			}
		}
		return "", false
	}},
	{"long", func(text, _ string) (Reason, bool) {
		return ReasonLong, utf8.RuneCountInString(text) >= LongMessageRunes
	}},
}

// Classify decides whether a message is important. It is total and
// deterministic. Voice messages cannot be inspected, so one that no text
// rule escalates is escalated anyway.
func Classify(text string, isVoice bool) Verdict {
	if strings.TrimSpace(text) == "" && !isVoice {
		return Verdict{Important: false, Reason: ReasonEmpty}
	}

	folded := cases.Fold().String(text)
	for _, r := range rules {
		if reason, ok := r.match(text, folded); ok {
			return Verdict{Important: true, Reason: reason}
		}
	}

	if isVoice {
		return Verdict{Important: true, Reason: ReasonVoice}
	}
	return Verdict{Important: false, Reason: ReasonNotImportant}
}

func hasDateOrTime(text string) bool {
	return shortDatePattern.MatchString(text) ||
		clockPattern.MatchString(text) ||
		dayPartPattern.MatchString(text) ||
		relativeDayPattern.MatchString(text)
}
